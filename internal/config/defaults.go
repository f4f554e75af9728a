package config

import "github.com/Alias1177/SignalBot/models"

// Tier features
const (
	FeatureBasicSignals        = "basic_signals"
	FeatureTechnicalAnalysis   = "technical_analysis"
	FeatureFundamentalAnalysis = "fundamental_analysis"
	FeaturePrioritySupport     = "priority_support"
)

// DefaultTablesSpec returns the compiled-in production tables, with zero
// fields filled from their default tags. It panics on a malformed tag.
func DefaultTablesSpec() TablesSpec {
	spec := TablesSpec{
		Indicators: IndicatorSettings{
			Weights: map[string]float64{
				"MACD":       1.5,
				"RSI":        1.2,
				"EMA9":       1.0,
				"EMA21":      1.3,
				"EMA50":      1.5,
				"EMA100":     1.5,
				"EMA200":     1.5,
				"SMA":        0.8,
				"Bollinger":  1.1,
				"Volume":     1.0,
				"Pattern_":   0.8,
				"Stochastic": 0.9,
				"Williams":   0.7,
				"ATR":        0.5,
			},
			FamilyWeights: map[string]float64{
				"trend":       0.25,
				"momentum":    0.20,
				"volatility":  0.15,
				"volume":      0.15,
				"candlestick": 0.15,
			},
		},
		Categories: map[models.Category]CategoryPolicy{
			models.CategoryMajor: {
				DisplayName:          "Major",
				Members:              []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT", "SOLUSDT"},
				TechnicalWeight:      0.6,
				FundamentalWeight:    0.4,
				BaseRisk:             0,
				MinConfidence:        70,
				MaxRisk:              60,
				MinSignalStrength:    20,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 2,
				DirectionThreshold:   15,
				MaxLeverage:          10,
				RiskMultiplier:       1.0,
				MaxStopDistance:      0.08,
				MaxPositionPct:       0.15,
				ATRMultiplier:        1.5,
				RiskReward:           []float64{2.0, 3.5},
				MinVolume:            100_000_000,
			},
			models.CategoryDefi: {
				DisplayName:          "DeFi",
				Members:              []string{"LINKUSDT", "UNIUSDT", "AAVEUSDT", "MKRUSDT", "SUSHIUSDT", "CRVUSDT", "GRTUSDT", "COMPUSDT", "SNXUSDT", "YFIUSDT", "1INCHUSDT"},
				TechnicalWeight:      0.7,
				FundamentalWeight:    0.3,
				BaseRisk:             10,
				MinConfidence:        75,
				MaxRisk:              70,
				MinSignalStrength:    20,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 3,
				DirectionThreshold:   18,
				MaxLeverage:          5,
				RiskMultiplier:       0.8,
				MaxStopDistance:      0.10,
				MaxPositionPct:       0.12,
				ATRMultiplier:        2.0,
				RiskReward:           []float64{2.5, 4.0},
				MinVolume:            20_000_000,
			},
			models.CategoryLayer1: {
				DisplayName:          "Layer 1",
				Members:              []string{"DOTUSDT", "AVAXUSDT", "MATICUSDT", "FTMUSDT", "ATOMUSDT", "NEARUSDT", "APTUSDT", "SUIUSDT", "ALGOUSDT", "TRXUSDT", "EOSUSDT", "THETAUSDT", "XTZUSDT"},
				TechnicalWeight:      0.65,
				FundamentalWeight:    0.35,
				BaseRisk:             15,
				MinConfidence:        75,
				MaxRisk:              70,
				MinSignalStrength:    20,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 3,
				DirectionThreshold:   18,
				MaxLeverage:          5,
				RiskMultiplier:       0.8,
				MaxStopDistance:      0.10,
				MaxPositionPct:       0.12,
				ATRMultiplier:        2.0,
				RiskReward:           []float64{2.5, 4.0},
				MinVolume:            30_000_000,
			},
			models.CategoryMeme: {
				DisplayName:          "Meme",
				Members:              []string{"DOGEUSDT", "SHIBUSDT", "PEPEUSDT", "1000PEPEUSDT", "FLOKIUSDT"},
				TechnicalWeight:      0.8,
				FundamentalWeight:    0.2,
				BaseRisk:             40,
				MinConfidence:        85,
				MaxRisk:              80,
				MinSignalStrength:    25,
				VolatilityThreshold:  0.25,
				VolatilityNormalizer: 5,
				DirectionThreshold:   22,
				MaxLeverage:          3,
				RiskMultiplier:       0.5,
				MaxStopDistance:      0.15,
				MaxPositionPct:       0.08,
				ATRMultiplier:        3.0,
				RiskReward:           []float64{1.5, 2.5},
				MinVolume:            10_000_000,
				SwingHigh:            0.5,
				SwingHighRisk:        30,
				SwingMid:             0.3,
				SwingMidRisk:         15,
				Warning:              "Meme coin: extreme volatility, trade small",
			},
			models.CategoryGamingNFT: {
				DisplayName:          "Gaming/NFT",
				Members:              []string{"APEUSDT", "SANDUSDT", "MANAUSDT", "GALAUSDT", "ENJUSDT", "CHZUSDT", "AXSUSDT"},
				TechnicalWeight:      0.75,
				FundamentalWeight:    0.25,
				BaseRisk:             25,
				MinConfidence:        80,
				MaxRisk:              75,
				MinSignalStrength:    20,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 4,
				DirectionThreshold:   20,
				MaxLeverage:          5,
				RiskMultiplier:       0.7,
				MaxStopDistance:      0.12,
				MaxPositionPct:       0.10,
				ATRMultiplier:        2.5,
				RiskReward:           []float64{2.0, 3.0},
				MinVolume:            5_000_000,
				Warning:              "Gaming/NFT sector: news driven moves",
			},
			models.CategoryEmerging: {
				DisplayName:          "Emerging",
				Members:              []string{"CETUSUSDT", "SLERFUSDT", "SXTUSDT", "AUCTIONUSDT", "TIAUSDT", "FLMUSDT"},
				TechnicalWeight:      0.5,
				FundamentalWeight:    0.5,
				BaseRisk:             35,
				MinConfidence:        85,
				MaxRisk:              80,
				MinSignalStrength:    25,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 5,
				DirectionThreshold:   22,
				MaxLeverage:          2,
				RiskMultiplier:       0.4,
				MaxStopDistance:      0.15,
				MaxPositionPct:       0.06,
				ATRMultiplier:        3.0,
				RiskReward:           []float64{1.8, 3.0},
				MinVolume:            3_000_000,
				Warning:              "Emerging project: thin history, high risk",
			},
			models.CategoryAltcoins: {
				DisplayName:          "Altcoins",
				Members:              []string{"LTCUSDT", "BCHUSDT", "ETCUSDT", "XLMUSDT", "VETUSDT", "ICPUSDT", "FILUSDT", "INJUSDT", "RUNEUSDT", "LDOUSDT", "ARBUSDT", "OPUSDT"},
				TechnicalWeight:      0.7,
				FundamentalWeight:    0.3,
				BaseRisk:             20,
				MinConfidence:        75,
				MaxRisk:              70,
				MinSignalStrength:    20,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 3,
				DirectionThreshold:   18,
				MaxLeverage:          5,
				RiskMultiplier:       0.8,
				MaxStopDistance:      0.10,
				MaxPositionPct:       0.10,
				ATRMultiplier:        2.0,
				RiskReward:           []float64{2.0, 3.5},
				MinVolume:            10_000_000,
			},
			models.CategoryOther: {
				DisplayName:          "Other",
				TechnicalWeight:      0.7,
				FundamentalWeight:    0.3,
				BaseRisk:             20,
				MinConfidence:        75,
				MaxRisk:              70,
				MinSignalStrength:    20,
				VolatilityThreshold:  0.15,
				VolatilityNormalizer: 3,
				DirectionThreshold:   18,
				MaxLeverage:          5,
				RiskMultiplier:       0.8,
				MaxStopDistance:      0.10,
				MaxPositionPct:       0.10,
				ATRMultiplier:        2.0,
				RiskReward:           []float64{2.0, 3.5},
			},
		},
		Pairs: map[string]PairOverride{
			"DOGEUSDT":  {MaxLeverage: 3, MinConfidence: 80, VolatilityThreshold: 0.15},
			"SHIBUSDT":  {MaxLeverage: 3, MinConfidence: 80, VolatilityThreshold: 0.15},
			"PEPEUSDT":  {MaxLeverage: 2, MinConfidence: 85, VolatilityThreshold: 0.20},
			"LINKUSDT":  {MaxLeverage: 5, MinConfidence: 70, VolatilityThreshold: 0.08},
			"AAVEUSDT":  {MaxLeverage: 5, MinConfidence: 70, VolatilityThreshold: 0.08},
			"CETUSUSDT": {MaxLeverage: 2, MinConfidence: 85, VolatilityThreshold: 0.25, VolumeMultiplier: 2},
			"SLERFUSDT": {MaxLeverage: 2, MinConfidence: 85, VolatilityThreshold: 0.25, VolumeMultiplier: 2},
		},
		Tiers: map[models.Tier]TierPolicy{
			models.TierFree: {
				DisplayName:     "Free",
				SignalsPerDay:   5,
				Categories:      []models.Category{models.CategoryMajor},
				CooldownMinutes: 90,
				Features:        []string{FeatureBasicSignals},
			},
			models.TierBasic: {
				DisplayName:     "Basic",
				SignalsPerDay:   15,
				Categories:      []models.Category{models.CategoryMajor, models.CategoryDefi, models.CategoryLayer1, models.CategoryAltcoins},
				CooldownMinutes: 45,
				Features:        []string{FeatureBasicSignals, FeatureTechnicalAnalysis},
				PriceUSD:        19,
			},
			models.TierPremium: {
				DisplayName:     "Premium",
				SignalsPerDay:   30,
				Categories:      []models.Category{models.CategoryMajor, models.CategoryDefi, models.CategoryLayer1, models.CategoryGamingNFT, models.CategoryAltcoins},
				CooldownMinutes: 20,
				Features:        []string{FeatureBasicSignals, FeatureTechnicalAnalysis, FeatureFundamentalAnalysis},
				PriceUSD:        49,
			},
			models.TierVIP: {
				DisplayName:     "VIP",
				SignalsPerDay:   -1,
				Categories:      []models.Category{models.CategoryMajor, models.CategoryDefi, models.CategoryLayer1, models.CategoryMeme, models.CategoryGamingNFT, models.CategoryEmerging, models.CategoryAltcoins},
				CooldownMinutes: 10,
				Features:        []string{FeatureBasicSignals, FeatureTechnicalAnalysis, FeatureFundamentalAnalysis, FeaturePrioritySupport},
				PriceUSD:        99,
			},
		},
	}

	if err := fillDefaults(&spec); err != nil {
		panic(err)
	}
	return spec
}
