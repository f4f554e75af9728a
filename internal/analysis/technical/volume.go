package technical

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/models"
)

// volumeSignal compares the last bar's volume with its 10 and 20 bar means
// and lets a clear OBV trend confirm or create a direction.
func (a *Analyzer) volumeSignal(s series) (models.IndicatorSignal, bool) {
	long, short := a.settings.VolumeLong, a.settings.VolumeShort
	n := len(s.volumes)
	if n <= long {
		return models.IndicatorSignal{}, false
	}

	current := s.volumes[n-1]
	avgLong := calculate.Mean(s.volumes[n-long:])
	avgShort := calculate.Mean(s.volumes[n-short:])
	if avgLong <= 0 || avgShort <= 0 {
		return models.IndicatorSignal{}, false
	}
	ratioLong := current / avgLong
	ratioShort := current / avgShort
	priceChange := (s.closes[n-1] - s.closes[n-2]) / s.closes[n-2]

	sig := models.IndicatorSignal{Name: "Volume", Value: ratioLong}
	switch {
	case ratioLong > 2:
		sig.Strength = math.Min(ratioLong/5, 0.8)
		switch {
		case priceChange > 0.02:
			sig.Direction = models.Buy
		case priceChange < -0.02:
			sig.Direction = models.Sell
		default:
			sig.Direction, sig.Strength = models.Neutral, 0.4
		}
	case ratioLong > 1.5 && priceChange > 0:
		sig.Direction, sig.Strength = models.Buy, math.Min((ratioLong-1)/2, 0.6)
	case ratioLong > 1.5:
		sig.Direction, sig.Strength = models.Neutral, 0.2
	default:
		sig.Direction, sig.Strength = models.Neutral, 0.1
	}

	obvNote := ""
	if obv, err := a.calc.OBV(s.closes, s.volumes); err == nil {
		last, ok1 := calculate.Last(obv, 0)
		prev, ok2 := calculate.Last(obv, 4)
		if ok1 && ok2 && prev != 0 {
			trend := (last - prev) / math.Abs(prev)
			if math.Abs(trend) > 0.1 {
				dir := models.Buy
				if trend < 0 {
					dir = models.Sell
				}
				if sig.Direction == dir || sig.Direction == models.Neutral {
					sig.Direction = dir
					sig.Strength = math.Min(sig.Strength+math.Abs(trend), 0.9)
				}
				obvNote = fmt.Sprintf(", OBV trend %.1f%%", trend*100)
			}
		}
	}

	sig.Description = fmt.Sprintf("Volume: x%.2f of 20-bar mean, x%.2f of 10-bar mean%s", ratioLong, ratioShort, obvNote)
	return sig, true
}
