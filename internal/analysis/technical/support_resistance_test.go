package technical

import (
	"testing"

	"github.com/Alias1177/SignalBot/internal/config"
)

func TestFindLevels(t *testing.T) {
	st := config.DefaultTables().Indicators()

	n := 60
	lows := make([]float64, n)
	highs := make([]float64, n)
	for i := range lows {
		lows[i] = 105
		highs[i] = 115
	}
	lows[10], lows[22] = 100, 100
	lows[34], lows[46] = 80, 80 // too far below price
	highs[16], highs[28] = 120, 120

	supports, resistances := FindLevels(highs, lows, 110, st)

	wantSupports := []float64{105, 100}
	wantResistances := []float64{115, 120}
	if !equal(supports, wantSupports) {
		t.Errorf("supports = %v, want %v", supports, wantSupports)
	}
	if !equal(resistances, wantResistances) {
		t.Errorf("resistances = %v, want %v", resistances, wantResistances)
	}
}

func TestFindLevelsSingleTouchIgnored(t *testing.T) {
	st := config.DefaultTables().Indicators()
	lows := make([]float64, 30)
	highs := make([]float64, 30)
	for i := range lows {
		lows[i] = 100 + float64(i)
		highs[i] = 101 + float64(i)
	}
	lows[15] = 90
	supports, _ := FindLevels(highs, lows, 130, st)
	for _, s := range supports {
		if s == 90 {
			t.Errorf("single-touch level reported: %v", supports)
		}
	}
}

func TestFindLevelsShortSeries(t *testing.T) {
	st := config.DefaultTables().Indicators()
	s, r := FindLevels(make([]float64, 19), make([]float64, 19), 100, st)
	if s != nil || r != nil {
		t.Errorf("expected no levels, got %v %v", s, r)
	}
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
