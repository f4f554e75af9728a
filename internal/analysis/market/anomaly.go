package market

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/models"
)

// Anomaly types
const (
	PriceSpike          = "PRICE_SPIKE"
	VolumeSpike         = "VOLUME_SPIKE"
	GapUp               = "GAP_UP"
	GapDown             = "GAP_DOWN"
	VolatilityExpansion = "VOLATILITY_EXPANSION"
)

// Anomaly is an unusual move on the last bar, relative to the bars before it
type Anomaly struct {
	Type    string   `json:"type"`
	Score   float64  `json:"score"`
	Details string   `json:"details"`
	Flags   []string `json:"flags"`
}

const minAnomalyBars = 20

// DetectAnomalies checks the last candle for price and volume spikes, gaps
// and an expanding ATR. Fewer than 20 candles yield nothing.
func DetectAnomalies(candles []models.Candle, calc *calculate.Calculator) []Anomaly {
	n := len(candles)
	if n < minAnomalyBars {
		return nil
	}
	_, highs, lows, closes, volumes := calculate.Columns(candles)
	current, prev := candles[n-1], candles[n-2]

	atr10, ok := lastATR(calc, highs, lows, closes, 10)
	if !ok || atr10 <= 0 {
		return nil
	}

	var out []Anomaly

	move := math.Abs(current.Close-prev.Close) / atr10
	if move > 3 {
		out = append(out, Anomaly{
			Type:    PriceSpike,
			Score:   math.Min(move/3, 1),
			Details: fmt.Sprintf("Price moved %.1f times the normal range", move),
			Flags:   []string{"REDUCE_POSITION_SIZE", "USE_WIDER_STOPS"},
		})
	}

	if avg := calculate.Mean(volumes[n-11 : n-1]); avg > 0 && current.Volume > 0 {
		if ratio := current.Volume / avg; ratio > 3 {
			out = append(out, Anomaly{
				Type:    VolumeSpike,
				Score:   math.Min(ratio/5, 1),
				Details: fmt.Sprintf("Volume %.1f times the average", ratio),
				Flags:   []string{"WAIT_FOR_CONFIRMATION"},
			})
		}
	}

	switch {
	case current.Low > prev.High:
		gap := (current.Low - prev.High) / atr10
		if gap > 0.5 {
			out = append(out, gapAnomaly(GapUp, gap))
		}
	case current.High < prev.Low:
		gap := (prev.Low - current.High) / atr10
		if gap > 0.5 {
			out = append(out, gapAnomaly(GapDown, gap))
		}
	}

	if n > 51 {
		if atr50, ok := lastATR(calc, highs, lows, closes, 50); ok && atr50 > 0 {
			if ratio := atr10 / atr50; ratio > 2 {
				out = append(out, Anomaly{
					Type:    VolatilityExpansion,
					Score:   math.Min(ratio/4, 1),
					Details: fmt.Sprintf("10-bar ATR is %.1f times the 50-bar ATR", ratio),
					Flags:   []string{"REDUCE_LEVERAGE"},
				})
			}
		}
	}

	return out
}

func gapAnomaly(typ string, size float64) Anomaly {
	return Anomaly{
		Type:    typ,
		Score:   math.Min(size, 1),
		Details: fmt.Sprintf("Gap of %.1f ATR", size),
		Flags:   []string{"WATCH_GAP_FILL"},
	}
}

// lastATR is the ATR up to the bar before the last one
func lastATR(calc *calculate.Calculator, highs, lows, closes []float64, period int) (float64, bool) {
	atr, err := calc.ATR(highs[:len(highs)-1], lows[:len(lows)-1], closes[:len(closes)-1], period)
	if err != nil {
		return 0, false
	}
	return calculate.Last(atr, 0)
}
