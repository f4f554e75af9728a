package fundamental

import (
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/SignalBot/internal/category"
	"github.com/Alias1177/SignalBot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoTicker means there is no ticker snapshot to analyse
var ErrNoTicker = errors.New("ticker unavailable")

// Analyzer scores a pair from its ticker, funding rate and open interest
type Analyzer struct {
	classifier *category.Classifier
	now        func() time.Time
	logger     zerolog.Logger
}

// NewAnalyzer creates a fundamental analyzer
func NewAnalyzer(classifier *category.Classifier) *Analyzer {
	return &Analyzer{
		classifier: classifier,
		now:        time.Now,
		logger:     log.With().Str("component", "fundamental").Logger(),
	}
}

// Analyze produces fundamental signals and their aggregate. Funding and open
// interest are optional; without a ticker an empty NEUTRAL result is returned.
func (a *Analyzer) Analyze(symbol string, ticker *models.Ticker, funding *models.FundingRate, oi []models.OpenInterestPoint) (*models.FundamentalResult, error) {
	result := &models.FundamentalResult{
		Symbol:          symbol,
		Timestamp:       a.now(),
		OverallSignal:   models.Neutral,
		MarketSentiment: models.NeutralSentiment,
	}
	if ticker == nil || ticker.LastPrice <= 0 {
		return result, fmt.Errorf("%w: %s", ErrNoTicker, symbol)
	}

	minVolume := a.classifier.MinVolume(symbol)

	var signals []models.FundamentalSignal
	signals = append(signals, liquiditySignals(ticker, minVolume)...)
	if funding != nil {
		signals = append(signals, fundingSignal(funding.Rate))
	}
	signals = append(signals, openInterestSignals(symbol, oi)...)
	signals = append(signals, priceSignals(ticker)...)
	signals = append(signals, marketSignals(ticker)...)

	result.Signals = signals
	result.RiskFactors = riskFactors(signals, ticker, a.classifier.GlobalMinVolume())
	result.OverallSignal, result.Confidence = Score(signals)
	result.MarketSentiment = sentiment(signals)

	a.logger.Debug().
		Str("symbol", symbol).
		Int("signals", len(signals)).
		Str("overall", string(result.OverallSignal)).
		Float64("confidence", result.Confidence).
		Msg("fundamental analysis complete")
	return result, nil
}

func newSignal(name string, value float64, dir models.Direction, strength float64, impact models.Impact, desc string) models.FundamentalSignal {
	return models.FundamentalSignal{
		IndicatorSignal: models.IndicatorSignal{
			Name:        name,
			Value:       value,
			Direction:   dir,
			Strength:    strength,
			Description: desc,
		},
		Impact: impact,
	}
}
