package signal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/SignalBot/internal/analysis/market"
	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/internal/category"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/trading/risk"
	"github.com/Alias1177/SignalBot/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Input is everything known about one symbol in one cycle
type Input struct {
	Symbol      string
	Candles     []models.Candle
	Ticker      *models.Ticker
	Technical   *models.TechnicalResult
	Fundamental *models.FundamentalResult
	Balance     float64 // zero uses the configured account balance
}

// Synthesizer combines technical and fundamental results into trade signals
type Synthesizer struct {
	tables     *config.Tables
	classifier *category.Classifier
	calc       *calculate.Calculator
	now        func() time.Time
	newID      func() string
	logger     zerolog.Logger
}

// NewSynthesizer creates a synthesizer over immutable tables
func NewSynthesizer(tables *config.Tables, classifier *category.Classifier, calc *calculate.Calculator) *Synthesizer {
	return &Synthesizer{
		tables:     tables,
		classifier: classifier,
		calc:       calc,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     log.With().Str("component", "synthesizer").Logger(),
	}
}

// Synthesize runs the gates and, when they all pass, derives the trade
func (s *Synthesizer) Synthesize(in Input) Decision {
	d := Decision{Symbol: in.Symbol}

	if in.Technical == nil || len(in.Technical.Signals) == 0 || in.Fundamental == nil || len(in.Candles) == 0 {
		return s.finish(d, StatusNoData, StageData, "technical or fundamental data missing")
	}
	if in.Ticker == nil {
		return s.finish(d, StatusNoData, StageData, "ticker missing")
	}

	cat, policy := s.classifier.Policy(in.Symbol)
	pair, hasPair := s.classifier.Override(in.Symbol)
	settings := s.tables.Risk()
	d.Metrics.Category = cat

	minVolume := s.classifier.MinVolume(in.Symbol)
	if in.Ticker.Turnover24h < minVolume {
		return s.finish(d, StatusRejected, StageVolume,
			fmt.Sprintf("turnover %.0f below minimum %.0f", in.Ticker.Turnover24h, minVolume))
	}

	tech, fund := in.Technical, in.Fundamental
	d.Metrics.TechnicalScore = TechnicalScore(tech.Signals, s.tables.Indicators().FamilyWeights)
	d.Metrics.FundamentalScore = FundamentalScore(fund.Signals)
	d.Metrics.CombinedScore = clampScore(d.Metrics.TechnicalScore*policy.TechnicalWeight + d.Metrics.FundamentalScore*policy.FundamentalWeight)
	d.Metrics.RiskScore = RiskScore(policy, settings, in.Ticker, tech.Confidence, fund)
	d.Metrics.VolatilityFactor = market.VolatilityFactor(in.Ticker, policy.VolatilityNormalizer)
	d.Metrics.MarketCondition = market.Condition(tech, in.Ticker, cat)

	maxConfidence := math.Max(tech.Confidence, fund.Confidence)
	minConfidence := policy.MinConfidence
	if hasPair && pair.MinConfidence > 0 {
		minConfidence = pair.MinConfidence
	}
	if maxConfidence < minConfidence {
		return s.finish(d, StatusRejected, StageConfidence,
			fmt.Sprintf("confidence %.1f below %.1f", maxConfidence, minConfidence))
	}
	if d.Metrics.RiskScore > policy.MaxRisk {
		return s.finish(d, StatusRejected, StageRisk,
			fmt.Sprintf("risk %.1f above %.1f", d.Metrics.RiskScore, policy.MaxRisk))
	}
	if math.Abs(d.Metrics.CombinedScore) < policy.MinSignalStrength {
		return s.finish(d, StatusRejected, StageStrength,
			fmt.Sprintf("combined score %.1f weaker than %.1f", d.Metrics.CombinedScore, policy.MinSignalStrength))
	}
	volThreshold := policy.VolatilityThreshold
	if hasPair && pair.VolatilityThreshold > 0 {
		volThreshold = pair.VolatilityThreshold
	}
	if d.Metrics.VolatilityFactor > volThreshold*100 {
		return s.finish(d, StatusRejected, StageVolatility,
			fmt.Sprintf("volatility factor %.1f above %.1f", d.Metrics.VolatilityFactor, volThreshold*100))
	}

	d.Metrics.Threshold = DirectionThreshold(policy, settings, maxConfidence)
	direction := models.Neutral
	switch {
	case d.Metrics.CombinedScore > d.Metrics.Threshold:
		direction = models.Buy
	case d.Metrics.CombinedScore < -d.Metrics.Threshold:
		direction = models.Sell
	}
	if direction == models.Neutral {
		return s.finish(d, StatusNeutral, StageDirection,
			fmt.Sprintf("combined score %.1f within ±%.1f", d.Metrics.CombinedScore, d.Metrics.Threshold))
	}

	entry := in.Ticker.LastPrice
	if entry <= 0 {
		entry = in.Candles[len(in.Candles)-1].Close
	}

	pairMaxLeverage := 0
	if hasPair {
		pairMaxLeverage = pair.MaxLeverage
	}
	leverage := risk.Leverage(d.Metrics.RiskScore, d.Metrics.VolatilityFactor, d.Metrics.CombinedScore,
		pairMaxLeverage, policy.MaxLeverage, settings.MaxLeverage)

	balance := in.Balance
	if balance <= 0 {
		balance = settings.AccountBalance
	}

	plan, err := risk.Plan(risk.PlanParams{
		Direction:      direction,
		Entry:          entry,
		ATR:            s.atr(in.Candles, entry, settings.FallbackATRPct),
		ATRMultiplier:  policy.ATRMultiplier,
		MaxStopPct:     policy.MaxStopDistance,
		RiskReward:     policy.RiskReward,
		Supports:       tech.SupportLevels,
		Resistances:    tech.ResistanceLevels,
		Balance:        balance,
		MaxRiskPct:     settings.MaxRiskPerTrade,
		RiskMultiplier: policy.RiskMultiplier,
		MaxPositionPct: policy.MaxPositionPct,
		Leverage:       leverage,
	})
	if err != nil {
		stage := StageTakeProfit
		if errors.Is(err, risk.ErrStopDistance) {
			stage = StageStopLoss
		}
		return s.finish(d, StatusRejected, stage, err.Error())
	}
	if plan.PureTargets {
		s.logger.Debug().Str("symbol", in.Symbol).Msg("level-clamped targets discarded, using risk/reward multiples")
	}

	confidence := tech.Confidence*policy.TechnicalWeight + fund.Confidence*policy.FundamentalWeight -
		d.Metrics.RiskScore*settings.RiskConfidencePenalty
	confidence = math.Max(confidence, settings.ConfidenceFloor)

	d.Signal = &models.TradingSignal{
		ID:                 s.newID(),
		Symbol:             in.Symbol,
		SignalType:         direction,
		EntryPrice:         plan.Entry,
		StopLoss:           plan.StopLoss,
		TakeProfit1:        plan.TakeProfit1,
		TakeProfit2:        plan.TakeProfit2,
		Leverage:           plan.Leverage,
		Confidence:         confidence,
		RiskScore:          d.Metrics.RiskScore,
		RiskAmount:         plan.RiskAmount,
		PositionSize:       plan.PositionSize,
		TechnicalSummary:   TechnicalSummary(tech, cat),
		FundamentalSummary: FundamentalSummary(fund, policy.DisplayName),
		RiskFactors:        riskFactors(fund, policy, d.Metrics),
		MarketCondition:    d.Metrics.MarketCondition,
		Timestamp:          s.now(),
		Category:           cat,
	}
	return s.finish(d, StatusEmitted, StageEmitted, "")
}

// atr is the ATR at the last bar, or a fraction of entry when history is short
func (s *Synthesizer) atr(candles []models.Candle, entry, fallbackPct float64) float64 {
	_, h, l, c, _ := calculate.Columns(candles)
	series, err := s.calc.ATR(h, l, c, s.tables.Indicators().ATRPeriod)
	if err == nil {
		if v, ok := calculate.Last(series, 0); ok && v > 0 {
			return v
		}
	}
	return entry * fallbackPct
}

func (s *Synthesizer) finish(d Decision, status Status, stage Stage, reason string) Decision {
	d.Status, d.Stage, d.Reason = status, stage, reason

	switch status {
	case StatusEmitted:
		s.logger.Info().
			Str("symbol", d.Symbol).
			Str("category", string(d.Metrics.Category)).
			Str("type", string(d.Signal.SignalType)).
			Float64("confidence", d.Signal.Confidence).
			Float64("combined", d.Metrics.CombinedScore).
			Msg("signal emitted")
	default:
		s.logger.Info().
			Str("symbol", d.Symbol).
			Str("status", string(status)).
			Str("stage", string(stage)).
			Str("reason", reason).
			Msg("no signal")
	}
	return d
}
