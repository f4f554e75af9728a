package technical

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/models"
)

func (a *Analyzer) volatilitySignals(s series) []models.IndicatorSignal {
	var out []models.IndicatorSignal
	if sig, ok := a.bollingerSignal(s); ok {
		out = append(out, sig)
	}
	if sig, ok := a.atrSignal(s); ok {
		out = append(out, sig)
	}
	return out
}

// bollingerSignal reads the position of the close inside the bands.
// Near the bands the strength grows continuously; a width change of more
// than 10% against five bars ago is reported as squeeze or expansion.
func (a *Analyzer) bollingerSignal(s series) (models.IndicatorSignal, bool) {
	if len(s.closes) <= a.settings.BBPeriod {
		return models.IndicatorSignal{}, false
	}
	bands, err := a.calc.Bollinger(s.closes, a.settings.BBPeriod, a.settings.BBStdDev)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Bollinger Bands omitted")
		return models.IndicatorSignal{}, false
	}
	upper, _ := calculate.Last(bands.Upper, 0)
	middle, _ := calculate.Last(bands.Middle, 0)
	lower, _ := calculate.Last(bands.Lower, 0)

	pos := 0.5
	if upper > lower {
		pos = (s.price - lower) / (upper - lower)
	}

	sig := models.IndicatorSignal{Name: "Bollinger Bands", Value: pos}
	switch {
	case pos > 0.9:
		sig.Direction, sig.Strength = models.Sell, math.Min(0.2+(pos-0.9)*5, 0.8)
	case pos < 0.1:
		sig.Direction, sig.Strength = models.Buy, math.Min(0.2+(0.1-pos)*5, 0.8)
	case pos > 0.8:
		sig.Direction, sig.Strength = models.Sell, (pos-0.8)*2
	case pos < 0.2:
		sig.Direction, sig.Strength = models.Buy, (0.2-pos)*2
	default:
		sig.Direction, sig.Strength = models.Neutral, 0.1
	}

	note := ""
	if middle > 0 {
		pu, ok1 := calculate.Last(bands.Upper, 5)
		pl, ok2 := calculate.Last(bands.Lower, 5)
		pm, ok3 := calculate.Last(bands.Middle, 5)
		if ok1 && ok2 && ok3 && pm > 0 && pu > pl {
			width := (upper - lower) / middle
			prevWidth := (pu - pl) / pm
			change := (width - prevWidth) / prevWidth
			switch {
			case change < -0.1:
				note = " (squeeze)"
			case change > 0.1:
				note = " (expansion)"
			}
		}
	}
	sig.Description = fmt.Sprintf("BB position: %.2f%s", pos, note)
	return sig, true
}

// atrSignal never takes a side; its strength reflects how unusual volatility is
func (a *Analyzer) atrSignal(s series) (models.IndicatorSignal, bool) {
	if len(s.closes) <= a.settings.ATRPeriod {
		return models.IndicatorSignal{}, false
	}
	atr, err := a.calc.ATR(s.highs, s.lows, s.closes, a.settings.ATRPeriod)
	if err != nil {
		a.logger.Warn().Err(err).Msg("ATR omitted")
		return models.IndicatorSignal{}, false
	}
	value, ok := calculate.Last(atr, 0)
	if !ok {
		return models.IndicatorSignal{}, false
	}
	pct := value / s.price * 100

	change := 0.0
	if prev, ok := calculate.Last(atr, 6); ok && prev > 0 {
		change = (value - prev) / prev
	}

	strength := 0.1
	switch {
	case pct > 5:
		strength = math.Min((pct-5)/10, 0.6)
	case pct < 1:
		strength = 0.3
	case change > 0.2:
		strength = math.Min(change*2, 0.5)
	}

	return models.IndicatorSignal{
		Name:        "ATR",
		Value:       value,
		Direction:   models.Neutral,
		Strength:    strength,
		Description: fmt.Sprintf("ATR: %.6f (%.2f%%)", value, pct),
	}, true
}
