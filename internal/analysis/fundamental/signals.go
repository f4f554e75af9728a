package fundamental

import (
	"fmt"
	"math"
	"strings"

	"github.com/Alias1177/SignalBot/models"
)

// Signal names
const (
	NameVolume          = "Volume_24h"
	NamePriceChange     = "Price_Change_24h"
	NameFundingRate     = "Funding_Rate"
	NameOpenInterest    = "Open_Interest_Trend"
	NameOpenInterestAbs = "Open_Interest_Size"
	NameSpread          = "Bid_Ask_Spread"
	NamePricePosition   = "Price_Position_24h"
	NameVolatility      = "Market_Volatility"
	NameEfficiency      = "Price_Efficiency"
)

const (
	minOIPoints   = 10
	oiTrendPoints = 24
)

// liquiditySignals scores turnover against the pair minimum and reads large
// daily moves contrarian
func liquiditySignals(t *models.Ticker, minVolume float64) []models.FundamentalSignal {
	var out []models.FundamentalSignal

	turnover := t.Turnover24h
	switch {
	case turnover >= minVolume*10:
		out = append(out, newSignal(NameVolume, turnover, models.Buy, 0.8, models.ImpactHigh, fmt.Sprintf("Very high volume: $%.0f", turnover)))
	case turnover >= minVolume*5:
		out = append(out, newSignal(NameVolume, turnover, models.Buy, 0.6, models.ImpactMedium, fmt.Sprintf("High volume: $%.0f", turnover)))
	case turnover >= minVolume:
		out = append(out, newSignal(NameVolume, turnover, models.Neutral, 0.3, models.ImpactLow, fmt.Sprintf("Sufficient volume: $%.0f", turnover)))
	default:
		out = append(out, newSignal(NameVolume, turnover, models.Sell, 0.7, models.ImpactHigh, fmt.Sprintf("Low volume: $%.0f", turnover)))
	}

	change := t.Price24hPcnt
	desc := fmt.Sprintf("24h change: %.2f%%", change*100)
	switch {
	case change > 0.1:
		out = append(out, newSignal(NamePriceChange, change, models.Sell, math.Min(change/0.2, 1), models.ImpactHigh, desc))
	case change < -0.1:
		out = append(out, newSignal(NamePriceChange, change, models.Buy, math.Min(-change/0.2, 1), models.ImpactHigh, desc))
	case math.Abs(change) > 0.05:
		out = append(out, newSignal(NamePriceChange, change, models.Neutral, 0.3, models.ImpactMedium, desc))
	default:
		out = append(out, newSignal(NamePriceChange, change, models.Neutral, 0.1, models.ImpactLow, desc))
	}
	return out
}

// fundingSignal reads positive funding as crowded longs
func fundingSignal(rate float64) models.FundamentalSignal {
	desc := fmt.Sprintf("Funding rate: %.4f%%", rate*100)
	switch {
	case rate > 0.001:
		return newSignal(NameFundingRate, rate, models.Sell, math.Min(rate/0.002, 1), models.ImpactHigh, desc)
	case rate > 0.0001:
		return newSignal(NameFundingRate, rate, models.Sell, math.Min(rate/0.001, 1), models.ImpactMedium, desc)
	case rate < -0.001:
		return newSignal(NameFundingRate, rate, models.Buy, math.Min(-rate/0.002, 1), models.ImpactHigh, desc)
	case rate < -0.0001:
		return newSignal(NameFundingRate, rate, models.Buy, math.Min(-rate/0.001, 1), models.ImpactMedium, desc)
	}
	return newSignal(NameFundingRate, rate, models.Neutral, 0.1, models.ImpactLow, desc)
}

// openInterestSignals scores the 24-point OI trend and the absolute OI size
func openInterestSignals(symbol string, oi []models.OpenInterestPoint) []models.FundamentalSignal {
	if len(oi) < minOIPoints {
		return nil
	}
	var out []models.FundamentalSignal
	current := oi[len(oi)-1].OpenInterest

	if len(oi) >= oiTrendPoints {
		past := oi[len(oi)-oiTrendPoints].OpenInterest
		if past > 0 {
			change := (current - past) / past
			desc := fmt.Sprintf("Open interest change: %.2f%%", change*100)
			switch {
			case change > 0.1:
				out = append(out, newSignal(NameOpenInterest, change, models.Buy, math.Min(change/0.3, 1), models.ImpactHigh, desc))
			case change < -0.1:
				out = append(out, newSignal(NameOpenInterest, change, models.Sell, math.Min(-change/0.3, 1), models.ImpactHigh, desc))
			default:
				out = append(out, newSignal(NameOpenInterest, change, models.Neutral, 0.2, models.ImpactMedium, desc))
			}
		}
	}

	if current > 0 {
		high, medium := oiThresholds(symbol)
		desc := fmt.Sprintf("Open interest: $%.0f", current)
		switch {
		case current > high:
			out = append(out, newSignal(NameOpenInterestAbs, current, models.Buy, 0.6, models.ImpactMedium, desc))
		case current > medium:
			out = append(out, newSignal(NameOpenInterestAbs, current, models.Neutral, 0.3, models.ImpactLow, desc))
		default:
			out = append(out, newSignal(NameOpenInterestAbs, current, models.Neutral, 0.1, models.ImpactLow, desc))
		}
	}
	return out
}

func oiThresholds(symbol string) (high, medium float64) {
	s := strings.ToUpper(symbol)
	switch {
	case strings.Contains(s, "BTC"):
		return 1_000_000_000, 500_000_000
	case strings.Contains(s, "ETH"):
		return 500_000_000, 200_000_000
	}
	return 100_000_000, 50_000_000
}

// priceSignals scores the bid-ask spread and where price sits in the daily range
func priceSignals(t *models.Ticker) []models.FundamentalSignal {
	var out []models.FundamentalSignal

	if t.Bid1Price > 0 && t.Ask1Price > 0 {
		spread := (t.Ask1Price - t.Bid1Price) / t.Bid1Price
		desc := fmt.Sprintf("Spread: %.3f%%", spread*100)
		switch {
		case spread < 0.001:
			out = append(out, newSignal(NameSpread, spread, models.Buy, 0.5, models.ImpactMedium, desc))
		case spread > 0.005:
			out = append(out, newSignal(NameSpread, spread, models.Sell, math.Min(spread/0.01, 1), models.ImpactHigh, desc))
		default:
			out = append(out, newSignal(NameSpread, spread, models.Neutral, 0.2, models.ImpactLow, desc))
		}
	}

	if t.HighPrice24h > t.LowPrice24h && t.LowPrice24h > 0 {
		pos := (t.LastPrice - t.LowPrice24h) / (t.HighPrice24h - t.LowPrice24h)
		desc := fmt.Sprintf("Position in daily range: %.1f%%", pos*100)
		switch {
		case pos > 0.8:
			out = append(out, newSignal(NamePricePosition, pos, models.Sell, math.Min((pos-0.8)/0.2, 1), models.ImpactMedium, desc))
		case pos < 0.2:
			out = append(out, newSignal(NamePricePosition, pos, models.Buy, math.Min((0.2-pos)/0.2, 1), models.ImpactMedium, desc))
		default:
			out = append(out, newSignal(NamePricePosition, pos, models.Neutral, 0.1, models.ImpactLow, desc))
		}
	}
	return out
}

// marketSignals uses the daily range as a volatility proxy and compares the
// last price with the volume weighted average
func marketSignals(t *models.Ticker) []models.FundamentalSignal {
	var out []models.FundamentalSignal

	if vol, ok := dailyRange(t); ok {
		desc := fmt.Sprintf("Daily range: %.2f%%", vol*100)
		switch {
		case vol > 0.1:
			out = append(out, newSignal(NameVolatility, vol, models.Sell, math.Min(vol/0.2, 1), models.ImpactHigh, desc))
		case vol < 0.02:
			out = append(out, newSignal(NameVolatility, vol, models.Neutral, 0.3, models.ImpactLow, desc))
		default:
			out = append(out, newSignal(NameVolatility, vol, models.Buy, 0.5, models.ImpactMedium, desc))
		}
	}

	if t.Volume24h > 0 && t.Turnover24h > 0 {
		vwap := t.Turnover24h / t.Volume24h
		eff := math.Abs(t.LastPrice-vwap) / vwap
		desc := fmt.Sprintf("Deviation from VWAP: %.3f%%", eff*100)
		switch {
		case eff < 0.01:
			out = append(out, newSignal(NameEfficiency, eff, models.Buy, 0.6, models.ImpactMedium, desc))
		case eff > 0.05:
			out = append(out, newSignal(NameEfficiency, eff, models.Sell, math.Min(eff/0.1, 1), models.ImpactHigh, desc))
		default:
			out = append(out, newSignal(NameEfficiency, eff, models.Neutral, 0.2, models.ImpactLow, desc))
		}
	}
	return out
}

// dailyRange is (high - low) / last
func dailyRange(t *models.Ticker) (float64, bool) {
	if t.HighPrice24h <= 0 || t.LowPrice24h <= 0 || t.LastPrice <= 0 {
		return 0, false
	}
	return (t.HighPrice24h - t.LowPrice24h) / t.LastPrice, true
}
