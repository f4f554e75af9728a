package technical

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/models"
)

const divergenceLookback = 10

func (a *Analyzer) oscillatorSignals(s series) []models.IndicatorSignal {
	var out []models.IndicatorSignal
	if sig, ok := a.rsiSignal(s.closes); ok {
		out = append(out, sig)
	}
	if sig, ok := a.stochasticSignal(s); ok {
		out = append(out, sig)
	}
	if sig, ok := a.williamsSignal(s); ok {
		out = append(out, sig)
	}
	return out
}

// rsiSignal bands RSI at 30/40/60/70. A divergence over the last ten bars
// (RSI up 5% while price down 2%, or the mirror) adds 0.2 to an extreme reading.
func (a *Analyzer) rsiSignal(closes []float64) (models.IndicatorSignal, bool) {
	period := a.settings.RSIPeriod
	if len(closes) <= period {
		return models.IndicatorSignal{}, false
	}
	rsi, err := a.calc.RSI(closes, period)
	if err != nil {
		a.logger.Warn().Err(err).Msg("RSI omitted")
		return models.IndicatorSignal{}, false
	}
	r, _ := calculate.Last(rsi, 0)

	bullishDiv, bearishDiv := false, false
	if first, ok := calculate.Last(rsi, divergenceLookback-1); ok && first != 0 {
		firstPrice := closes[len(closes)-divergenceLookback]
		rsiTrend := (r - first) / first
		priceTrend := (closes[len(closes)-1] - firstPrice) / firstPrice
		bullishDiv = rsiTrend > 0.05 && priceTrend < -0.02
		bearishDiv = rsiTrend < -0.05 && priceTrend > 0.02
	}

	sig := models.IndicatorSignal{Name: "RSI", Value: r}
	switch {
	case r < 30:
		sig.Direction, sig.Strength = models.Buy, (30-r)/30*0.8
		if bullishDiv {
			sig.Strength = math.Min(sig.Strength+0.2, 0.9)
		}
	case r > 70:
		sig.Direction, sig.Strength = models.Sell, (r-70)/30*0.8
		if bearishDiv {
			sig.Strength = math.Min(sig.Strength+0.2, 0.9)
		}
	case r < 40:
		sig.Direction, sig.Strength = models.Buy, (40-r)/40*0.4
	case r > 60:
		sig.Direction, sig.Strength = models.Sell, (r-60)/40*0.4
	default:
		sig.Direction, sig.Strength = models.Neutral, 0.1
	}
	sig.Strength = math.Min(sig.Strength, 0.9)

	sig.Description = fmt.Sprintf("RSI: %.2f", r)
	if bullishDiv {
		sig.Description += " (bullish divergence)"
	} else if bearishDiv {
		sig.Description += " (bearish divergence)"
	}
	return sig, true
}

// stochasticSignal bands %K at 20/80; agreement of %D adds 0.2
func (a *Analyzer) stochasticSignal(s series) (models.IndicatorSignal, bool) {
	if len(s.closes) <= a.settings.StochPeriod {
		return models.IndicatorSignal{}, false
	}
	kSeries, dSeries, err := a.calc.Stochastic(s.highs, s.lows, s.closes, a.settings.StochPeriod, a.settings.StochSmooth)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Stochastic omitted")
		return models.IndicatorSignal{}, false
	}
	k, _ := calculate.Last(kSeries, 0)
	d, _ := calculate.Last(dSeries, 0)

	sig := models.IndicatorSignal{Name: "Stochastic", Value: k}
	switch {
	case k < 20:
		sig.Direction, sig.Strength = models.Buy, (20-k)/20*0.7
		if d < 20 {
			sig.Strength += 0.2
		}
	case k > 80:
		sig.Direction, sig.Strength = models.Sell, (k-80)/20*0.7
		if d > 80 {
			sig.Strength += 0.2
		}
	default:
		sig.Direction, sig.Strength = models.Neutral, 0.1
	}
	sig.Strength = math.Min(sig.Strength, 0.9)
	sig.Description = fmt.Sprintf("Stoch %%K: %.2f, %%D: %.2f", k, d)
	return sig, true
}

// williamsSignal bands %R at -80/-20
func (a *Analyzer) williamsSignal(s series) (models.IndicatorSignal, bool) {
	if len(s.closes) <= a.settings.WilliamsPeriod {
		return models.IndicatorSignal{}, false
	}
	wr, err := a.calc.WilliamsR(s.highs, s.lows, s.closes, a.settings.WilliamsPeriod)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Williams %R omitted")
		return models.IndicatorSignal{}, false
	}
	w, _ := calculate.Last(wr, 0)

	sig := models.IndicatorSignal{Name: "Williams %R", Value: w}
	switch {
	case w < -80:
		sig.Direction, sig.Strength = models.Buy, (-80-w)/20*0.6
	case w > -20:
		sig.Direction, sig.Strength = models.Sell, (w+20)/20*0.6
	default:
		sig.Direction, sig.Strength = models.Neutral, 0.1
	}
	sig.Strength = math.Min(sig.Strength, 0.9)
	sig.Description = fmt.Sprintf("Williams %%R: %.2f", w)
	return sig, true
}
