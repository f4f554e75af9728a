package technical

import (
	"math"
	"sort"

	"github.com/Alias1177/SignalBot/internal/config"
)

const minLevelBars = 20

// FindLevels finds support and resistance levels around price.
// A level is a local extreme over ±SRWindow bars touched at least SRMinTouches
// times within SRTolerance. Supports lie below price ordered nearest first,
// resistances above price ordered nearest first, both within SRMaxDistance.
func FindLevels(highs, lows []float64, price float64, st config.IndicatorSettings) (supports, resistances []float64) {
	if len(lows) < minLevelBars || len(highs) != len(lows) || price <= 0 {
		return nil, nil
	}

	supportCandidates := pivots(lows, st.SRWindow, func(v, w float64) bool { return v <= w })
	resistanceCandidates := pivots(highs, st.SRWindow, func(v, w float64) bool { return v >= w })

	for _, level := range dedupe(supportCandidates) {
		if touches(lows, level, st.SRTolerance) < st.SRMinTouches {
			continue
		}
		if level < price && (price-level)/price <= st.SRMaxDistance {
			supports = append(supports, level)
		}
	}
	for _, level := range dedupe(resistanceCandidates) {
		if touches(highs, level, st.SRTolerance) < st.SRMinTouches {
			continue
		}
		if level > price && (level-price)/price <= st.SRMaxDistance {
			resistances = append(resistances, level)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(supports)))
	sort.Float64s(resistances)
	if len(supports) > st.SRMaxLevels {
		supports = supports[:st.SRMaxLevels]
	}
	if len(resistances) > st.SRMaxLevels {
		resistances = resistances[:st.SRMaxLevels]
	}
	return supports, resistances
}

// pivots returns values that dominate every neighbour within window bars
func pivots(values []float64, window int, dominates func(v, w float64) bool) []float64 {
	var out []float64
	for i := window; i < len(values)-window; i++ {
		ok := true
		for j := i - window; j <= i+window; j++ {
			if !dominates(values[i], values[j]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, values[i])
		}
	}
	return out
}

func touches(values []float64, level, tolerance float64) int {
	n := 0
	for _, v := range values {
		if math.Abs(v-level) <= level*tolerance {
			n++
		}
	}
	return n
}

func dedupe(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
