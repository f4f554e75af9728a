package fundamental

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/models"
)

const (
	decisionMargin = 15
	maxConfidence  = 90
)

// ImpactWeight is the aggregation weight of an impact tier
func ImpactWeight(i models.Impact) float64 {
	switch i {
	case models.ImpactHigh:
		return 1.0
	case models.ImpactMedium:
		return 0.6
	}
	return 0.3
}

func weighted(signals []models.FundamentalSignal) (buy, sell, total float64) {
	for _, s := range signals {
		w := ImpactWeight(s.Impact)
		total += w
		switch s.Direction {
		case models.Buy:
			buy += s.Strength * w
		case models.Sell:
			sell += s.Strength * w
		}
	}
	return buy, sell, total
}

// Score aggregates fundamental signals. BUY and SELL scores are normalised to
// 100 by total impact weight and must differ by 15 points for a call.
func Score(signals []models.FundamentalSignal) (models.Direction, float64) {
	buy, sell, total := weighted(signals)
	if total == 0 {
		return models.Neutral, 0
	}
	buyPct, sellPct := buy/total*100, sell/total*100
	switch {
	case buyPct > sellPct+decisionMargin:
		return models.Buy, math.Min(100*buy/(buy+sell), maxConfidence)
	case sellPct > buyPct+decisionMargin:
		return models.Sell, math.Min(100*sell/(buy+sell), maxConfidence)
	}
	return models.Neutral, math.Max(50-math.Abs(buyPct-sellPct), 10)
}

// SignedScore is the impact weighted net direction in [-100, 100]
func SignedScore(signals []models.FundamentalSignal) float64 {
	buy, sell, total := weighted(signals)
	if total == 0 {
		return 0
	}
	return (buy - sell) / total * 100
}

// riskFactors lists conditions worth warning about regardless of direction.
// Liquidity is judged against the global floor, not the category minimum.
func riskFactors(signals []models.FundamentalSignal, t *models.Ticker, globalMinVolume float64) []string {
	var out []string
	if t.Turnover24h < globalMinVolume {
		out = append(out, fmt.Sprintf("Low liquidity: $%.0f", t.Turnover24h))
	}
	if vol, ok := dailyRange(t); ok && vol > 0.15 {
		out = append(out, fmt.Sprintf("Extreme volatility: %.1f%%", vol*100))
	}
	for _, s := range signals {
		switch {
		case s.Name == NameFundingRate && math.Abs(s.Value) > 0.002:
			out = append(out, fmt.Sprintf("Extreme funding rate: %.4f%%", s.Value*100))
		case s.Name == NameSpread && s.Value > 0.01:
			out = append(out, fmt.Sprintf("Wide spread: %.3f%%", s.Value*100))
		}
	}
	if math.Abs(t.Price24hPcnt) > 0.2 {
		out = append(out, fmt.Sprintf("Sharp price move: %.1f%%", t.Price24hPcnt*100))
	}
	return out
}

// sentiment comes from funding and the OI trend only
func sentiment(signals []models.FundamentalSignal) models.Sentiment {
	var bullish, bearish, neutral float64
	for _, s := range signals {
		if s.Name != NameFundingRate && s.Name != NameOpenInterest {
			continue
		}
		switch s.Direction {
		case models.Buy:
			bullish += s.Strength
		case models.Sell:
			bearish += s.Strength
		default:
			neutral += s.Strength
		}
	}
	switch {
	case bullish > 0.5 && bullish >= bearish && bullish >= neutral:
		return models.Bullish
	case bearish > 0.5 && bearish > bullish && bearish >= neutral:
		return models.Bearish
	}
	return models.NeutralSentiment
}
