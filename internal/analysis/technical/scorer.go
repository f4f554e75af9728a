package technical

import (
	"math"
	"strings"

	"github.com/Alias1177/SignalBot/models"
)

// WeightFor resolves an indicator weight by exact name, then by the longest
// matching name prefix, then def.
func WeightFor(name string, weights map[string]float64, def float64) float64 {
	if w, ok := weights[name]; ok {
		return w
	}
	best, bestLen := def, 0
	for prefix, w := range weights {
		if len(prefix) > bestLen && strings.HasPrefix(name, prefix) {
			best, bestLen = w, len(prefix)
		}
	}
	return best
}

// margin by which one side must lead; more signals need a smaller lead
func margin(n int) float64 {
	switch {
	case n >= 8:
		return 15
	case n <= 4:
		return 25
	}
	return 20
}

// Score aggregates indicator signals into an overall direction and confidence.
// Each side scores Σ strength·weight as a percentage of the total weight.
// A side wins when it leads the other by the margin; its confidence is its
// share of the directional score, capped at 95. Otherwise the result is
// NEUTRAL with a confidence that shrinks as the sides drift apart.
func Score(signals []models.IndicatorSignal, weights map[string]float64, def float64) (models.Direction, float64) {
	if len(signals) == 0 {
		return models.Neutral, 0
	}

	var buy, sell, total float64
	for _, s := range signals {
		w := WeightFor(s.Name, weights, def)
		total += w
		switch s.Direction {
		case models.Buy:
			buy += s.Strength * w
		case models.Sell:
			sell += s.Strength * w
		}
	}
	if total <= 0 {
		return models.Neutral, 0
	}

	buyPct, sellPct := buy/total*100, sell/total*100
	m := margin(len(signals))
	switch {
	case buyPct > sellPct+m:
		return models.Buy, math.Min(100*buy/(buy+sell), 95)
	case sellPct > buyPct+m:
		return models.Sell, math.Min(100*sell/(buy+sell), 95)
	}
	return models.Neutral, math.Max(60-math.Abs(buyPct-sellPct)/2, 30)
}
