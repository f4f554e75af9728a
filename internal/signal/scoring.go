package signal

import (
	"fmt"
	"math"
	"strings"

	"github.com/Alias1177/SignalBot/internal/analysis/fundamental"
	"github.com/Alias1177/SignalBot/internal/analysis/market"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
)

// Indicator families used to weight the technical score
const (
	FamilyTrend       = "trend"
	FamilyMomentum    = "momentum"
	FamilyVolatility  = "volatility"
	FamilyVolume      = "volume"
	FamilyCandlestick = "candlestick"
)

// Family maps an indicator name to its family; unknown names return ""
func Family(name string) string {
	switch {
	case strings.HasPrefix(name, "EMA"), strings.HasPrefix(name, "SMA"), strings.HasPrefix(name, "MACD"):
		return FamilyTrend
	case strings.HasPrefix(name, "RSI"), strings.HasPrefix(name, "Stochastic"), strings.HasPrefix(name, "Williams"):
		return FamilyMomentum
	case strings.HasPrefix(name, "Bollinger"), strings.HasPrefix(name, "ATR"):
		return FamilyVolatility
	case strings.HasPrefix(name, "Volume"):
		return FamilyVolume
	case strings.HasPrefix(name, "Pattern_"):
		return FamilyCandlestick
	}
	return ""
}

// TechnicalScore is the family weighted net direction in [-100, 100]
func TechnicalScore(signals []models.IndicatorSignal, familyWeights map[string]float64) float64 {
	var score, total float64
	for _, s := range signals {
		w, ok := familyWeights[Family(s.Name)]
		if !ok || w <= 0 {
			continue
		}
		score += s.Direction.Sign() * s.Strength * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return clampScore(score / total * 100)
}

// FundamentalScore is the impact weighted net direction in [-100, 100]
func FundamentalScore(signals []models.FundamentalSignal) float64 {
	return clampScore(fundamental.SignedScore(signals))
}

// RiskScore adds category base risk, the daily swing, daily range volatility,
// disagreement between the scorers and the fundamental risk factors
func RiskScore(policy config.CategoryPolicy, settings config.RiskSettings, t *models.Ticker, techConfidence float64, fund *models.FundamentalResult) float64 {
	score := policy.BaseRisk

	swing := math.Abs(t.Price24hPcnt)
	switch {
	case swing > policy.SwingHigh:
		score += policy.SwingHighRisk
	case swing > policy.SwingMid:
		score += policy.SwingMidRisk
	}

	if vol, ok := market.DailyRange(t); ok {
		switch {
		case vol > 0.1:
			score += vol * 50
		case vol > 0.05:
			score += vol * 25
		}
	}

	if techConfidence > 0 && fund.Confidence > 0 {
		if diff := math.Abs(techConfidence - fund.Confidence); diff > settings.DivergenceThreshold {
			score += diff * settings.DivergencePenalty
		}
	}

	score += float64(len(fund.RiskFactors)) * settings.RiskPerFactor
	return math.Min(score, settings.RiskCeiling)
}

// DirectionThreshold is the category threshold, lowered for high confidence
// and never below the configured floor
func DirectionThreshold(policy config.CategoryPolicy, settings config.RiskSettings, maxConfidence float64) float64 {
	threshold := policy.DirectionThreshold
	if maxConfidence >= settings.HighConfidence {
		threshold -= settings.HighConfidenceCut
	}
	return math.Max(threshold, settings.MinDirectionThreshold)
}

func riskFactors(fund *models.FundamentalResult, policy config.CategoryPolicy, m Metrics) []string {
	out := append([]string(nil), fund.RiskFactors...)
	if policy.Warning != "" {
		out = append(out, policy.Warning)
	}
	if m.VolatilityFactor > 15 {
		out = append(out, fmt.Sprintf("High volatility: %.1f", m.VolatilityFactor))
	}
	if m.RiskScore > 40 {
		out = append(out, fmt.Sprintf("Elevated risk score: %.0f", m.RiskScore))
	}
	return out
}

func clampScore(v float64) float64 {
	return math.Max(-100, math.Min(100, v))
}
