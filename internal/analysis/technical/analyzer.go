package technical

import (
	"errors"
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/internal/analysis/pattern"
	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInsufficientData means the series is too short for analysis
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidData means the series failed validation
	ErrInvalidData = errors.New("invalid OHLCV data")
)

// Analyzer turns an OHLCV series into indicator signals and an overall verdict
type Analyzer struct {
	calc     *calculate.Calculator
	settings config.IndicatorSettings
	logger   zerolog.Logger
}

// NewAnalyzer creates a technical analyzer
func NewAnalyzer(calc *calculate.Calculator, settings config.IndicatorSettings) *Analyzer {
	return &Analyzer{
		calc:     calc,
		settings: settings,
		logger:   log.With().Str("component", "technical").Logger(),
	}
}

// series is the column view of the candles under analysis
type series struct {
	opens, highs, lows, closes, volumes []float64
	price                               float64
}

// Analyze runs every indicator over candles. On short or invalid input it returns
// an empty NEUTRAL result with zero confidence together with the reason.
func (a *Analyzer) Analyze(symbol, timeframe string, candles []models.Candle) (*models.TechnicalResult, error) {
	if len(candles) < a.settings.MinCandles {
		return emptyResult(symbol, timeframe), fmt.Errorf("%w: %d candles, need %d", ErrInsufficientData, len(candles), a.settings.MinCandles)
	}
	if err := a.validate(candles); err != nil {
		return emptyResult(symbol, timeframe), err
	}

	o, h, l, c, v := calculate.Columns(candles)
	s := series{opens: o, highs: h, lows: l, closes: c, volumes: v, price: c[len(c)-1]}

	var signals []models.IndicatorSignal
	signals = append(signals, a.trendSignals(s)...)
	signals = append(signals, a.oscillatorSignals(s)...)
	signals = append(signals, a.volatilitySignals(s)...)
	if sig, ok := a.volumeSignal(s); ok {
		signals = append(signals, sig)
	}
	signals = append(signals, pattern.Detect(candles)...)

	supports, resistances := FindLevels(s.highs, s.lows, s.price, a.settings)
	overall, confidence := Score(signals, a.settings.Weights, a.settings.DefaultWeight)

	atr := a.currentATR(s)
	targets, stop := priceTargets(s.price, atr, overall, supports, resistances)

	return &models.TechnicalResult{
		Symbol:           symbol,
		Timeframe:        timeframe,
		Timestamp:        candles[len(candles)-1].Timestamp,
		Signals:          signals,
		OverallSignal:    overall,
		Confidence:       confidence,
		PriceTargets:     targets,
		StopLoss:         stop,
		SupportLevels:    supports,
		ResistanceLevels: resistances,
	}, nil
}

// validate rejects non-finite prices, bars violating low <= open,close <= high
// and timestamps that are not strictly ascending. Jumps over 50% are only logged.
func (a *Analyzer) validate(candles []models.Candle) error {
	for i, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value at bar %d", ErrInvalidData, i)
			}
		}
		if c.High < c.Low || c.Open > c.High || c.Open < c.Low || c.Close > c.High || c.Close < c.Low {
			return fmt.Errorf("%w: inconsistent prices at bar %d", ErrInvalidData, i)
		}
		if c.Close <= 0 {
			return fmt.Errorf("%w: non-positive close at bar %d", ErrInvalidData, i)
		}
		if i == 0 {
			continue
		}
		prev := candles[i-1]
		if !c.Timestamp.IsZero() && !c.Timestamp.After(prev.Timestamp) {
			return fmt.Errorf("%w: timestamps not ascending at bar %d", ErrInvalidData, i)
		}
		if math.Abs(c.Close-prev.Close)/prev.Close > 0.5 {
			a.logger.Warn().Int("bar", i).Msg("price jump above 50%")
		}
	}
	return nil
}

// currentATR is the last ATR value or 2% of price when unavailable
func (a *Analyzer) currentATR(s series) float64 {
	atr, err := a.calc.ATR(s.highs, s.lows, s.closes, a.settings.ATRPeriod)
	if err == nil {
		if v, ok := calculate.Last(atr, 0); ok && v > 0 {
			return v
		}
	}
	return s.price * 0.02
}

func emptyResult(symbol, timeframe string) *models.TechnicalResult {
	return &models.TechnicalResult{
		Symbol:        symbol,
		Timeframe:     timeframe,
		OverallSignal: models.Neutral,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
