package market

import (
	"strings"

	"github.com/Alias1177/SignalBot/models"
)

// Market condition labels
const (
	TrendingUp       = "TRENDING_UP"
	TrendingDown     = "TRENDING_DOWN"
	Ranging          = "RANGING"
	Neutral          = "NEUTRAL"
	Volatile         = "VOLATILE"
	MemeVolatile     = "MEME_VOLATILE"
	MemeQuiet        = "MEME_QUIET"
	EmergingVolatile = "EMERGING_VOLATILE"
)

// DailyRange returns (high24h - low24h) / last, or false when the ticker lacks prices
func DailyRange(t *models.Ticker) (float64, bool) {
	if t == nil || t.HighPrice24h <= 0 || t.LowPrice24h <= 0 || t.LastPrice <= 0 {
		return 0, false
	}
	return (t.HighPrice24h - t.LowPrice24h) / t.LastPrice, true
}

// VolatilityFactor is the daily range in percent divided by the category
// normalizer, capped at 50. Without a usable ticker it is 5.
func VolatilityFactor(t *models.Ticker, normalizer float64) float64 {
	vol, ok := DailyRange(t)
	if !ok || normalizer <= 0 {
		return 5
	}
	return min(vol*100/normalizer, 50)
}

// Condition labels the market from EMA agreement, overridden by the daily range
func Condition(tech *models.TechnicalResult, t *models.Ticker, category models.Category) string {
	base := trendCondition(tech)

	vol, ok := DailyRange(t)
	if !ok {
		return base
	}
	switch category {
	case models.CategoryMeme:
		if vol > 0.3 {
			return MemeVolatile
		}
		if vol < 0.05 {
			return MemeQuiet
		}
	case models.CategoryEmerging:
		if vol > 0.2 {
			return EmergingVolatile
		}
	}
	switch {
	case vol > 0.15:
		return Volatile
	case vol < 0.03:
		return Ranging
	}
	return base
}

// trendCondition needs one side's EMA votes to exceed 1.5x the other's
func trendCondition(tech *models.TechnicalResult) string {
	if tech == nil {
		return Neutral
	}
	var buy, sell, n float64
	for _, s := range tech.Signals {
		if !strings.HasPrefix(s.Name, "EMA") {
			continue
		}
		n++
		switch s.Direction {
		case models.Buy:
			buy++
		case models.Sell:
			sell++
		}
	}
	switch {
	case n == 0:
		return Neutral
	case buy > sell*1.5:
		return TrendingUp
	case sell > buy*1.5:
		return TrendingDown
	}
	return Ranging
}
