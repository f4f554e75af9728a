package technical

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/models"
)

func (a *Analyzer) trendSignals(s series) []models.IndicatorSignal {
	var out []models.IndicatorSignal
	for _, p := range a.settings.EMAPeriods {
		if sig, ok := a.emaSignal(s, p); ok {
			out = append(out, sig)
		}
	}
	for _, p := range a.settings.SMAPeriods {
		if sig, ok := a.smaSignal(s, p); ok {
			out = append(out, sig)
		}
	}
	if sig, ok := a.macdSignal(s); ok {
		out = append(out, sig)
	}
	return out
}

// emaSignal: price above a rising EMA is BUY, below a falling one SELL, mixed NEUTRAL
func (a *Analyzer) emaSignal(s series, period int) (models.IndicatorSignal, bool) {
	if len(s.closes) <= period {
		return models.IndicatorSignal{}, false
	}
	ema, err := a.calc.EMA(s.closes, period)
	if err != nil {
		a.logger.Warn().Err(err).Int("period", period).Msg("EMA omitted")
		return models.IndicatorSignal{}, false
	}

	value, _ := calculate.Last(ema, 0)
	distance := (s.price - value) / value
	sig := models.IndicatorSignal{Name: fmt.Sprintf("EMA%d", period), Value: value}

	prev, ok := calculate.Last(ema, 2)
	if !ok || prev == 0 {
		strength := math.Min(math.Abs(distance)*50, 0.8)
		sig.Direction = models.Buy
		if s.price < value {
			sig.Direction = models.Sell
		}
		sig.Strength = strength
		sig.Description = fmt.Sprintf("EMA%d: %.6f, distance %.2f%%", period, value, distance*100)
		return sig, true
	}

	slope := (value - prev) / prev
	switch {
	case s.price > value && slope >= 0:
		sig.Direction = models.Buy
		sig.Strength = math.Min(math.Abs(distance)*20+math.Abs(slope)*10, 0.9)
	case s.price < value && slope <= 0:
		sig.Direction = models.Sell
		sig.Strength = math.Min(math.Abs(distance)*20+math.Abs(slope)*10, 0.9)
	default:
		sig.Direction = models.Neutral
		sig.Strength = 0.2
	}
	sig.Description = fmt.Sprintf("EMA%d: %.6f, distance %.2f%%, slope %.3f%%", period, value, distance*100, slope*100)
	return sig, true
}

// smaSignal measures the slope over five bars and ignores slopes under 0.1%
func (a *Analyzer) smaSignal(s series, period int) (models.IndicatorSignal, bool) {
	if len(s.closes) <= period {
		return models.IndicatorSignal{}, false
	}
	sma, err := a.calc.SMA(s.closes, period)
	if err != nil {
		a.logger.Warn().Err(err).Int("period", period).Msg("SMA omitted")
		return models.IndicatorSignal{}, false
	}

	value, _ := calculate.Last(sma, 0)
	prev, ok := calculate.Last(sma, 4)
	if !ok || prev == 0 {
		prev = value
	}
	distance := (s.price - value) / value
	slope := (value - prev) / prev

	sig := models.IndicatorSignal{Name: fmt.Sprintf("SMA%d", period), Value: value}
	switch {
	case s.price > value && slope > 0.001:
		sig.Direction = models.Buy
		sig.Strength = math.Min(math.Abs(distance)*30+math.Abs(slope)*20, 0.7)
	case s.price < value && slope < -0.001:
		sig.Direction = models.Sell
		sig.Strength = math.Min(math.Abs(distance)*30+math.Abs(slope)*20, 0.7)
	default:
		sig.Direction = models.Neutral
		sig.Strength = 0.1
	}
	sig.Description = fmt.Sprintf("SMA%d: %.6f, slope %.3f%%", period, value, slope*100)
	return sig, true
}

// macdSignal: a signal-line crossing on the last bar is a strong call, otherwise
// the histogram sign gives a weaker one. A zero-line cross in the same direction adds 0.2.
func (a *Analyzer) macdSignal(s series) (models.IndicatorSignal, bool) {
	st := a.settings
	if len(s.closes) <= st.MACDSlow+st.MACDSignal {
		return models.IndicatorSignal{}, false
	}
	m, err := a.calc.MACD(s.closes, st.MACDFast, st.MACDSlow, st.MACDSignal)
	if err != nil {
		a.logger.Warn().Err(err).Msg("MACD omitted")
		return models.IndicatorSignal{}, false
	}

	macd, ok1 := calculate.Last(m.MACD, 0)
	signal, ok2 := calculate.Last(m.Signal, 0)
	prevMACD, ok3 := calculate.Last(m.MACD, 1)
	prevSignal, ok4 := calculate.Last(m.Signal, 1)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return models.IndicatorSignal{}, false
	}

	eps := s.price * 1e-9
	diff, prevDiff := macd-signal, prevMACD-prevSignal
	hist := diff

	sig := models.IndicatorSignal{Name: "MACD", Value: macd}
	note := ""
	switch {
	case prevDiff <= eps && diff > eps:
		sig.Direction, sig.Strength = models.Buy, 0.8
		note = " (bullish crossing)"
	case prevDiff >= -eps && diff < -eps:
		sig.Direction, sig.Strength = models.Sell, 0.8
		note = " (bearish crossing)"
	case diff > eps:
		sig.Direction = models.Buy
		sig.Strength = math.Min(math.Abs(hist)/s.price*1000+0.3, 0.6)
	case diff < -eps:
		sig.Direction = models.Sell
		sig.Strength = math.Min(math.Abs(hist)/s.price*1000+0.3, 0.6)
	default:
		sig.Direction, sig.Strength = models.Neutral, 0.1
	}

	if (sig.Direction == models.Buy && prevMACD <= 0 && macd > 0) ||
		(sig.Direction == models.Sell && prevMACD >= 0 && macd < 0) {
		sig.Strength = math.Min(sig.Strength+0.2, 0.9)
		note += " (zero line cross)"
	}
	if m.Fallback {
		note += " (fallback)"
	}

	sig.Description = fmt.Sprintf("MACD: %.6f, signal: %.6f, histogram: %.6f%s", macd, signal, hist, note)
	return sig, true
}
