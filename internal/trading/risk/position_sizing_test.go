package risk

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Alias1177/SignalBot/models"
)

func TestStopLoss(t *testing.T) {
	tests := []struct {
		name        string
		dir         models.Direction
		supports    []float64
		resistances []float64
		want        float64
	}{
		{"buy raw", models.Buy, nil, nil, 97},
		{"buy pulled to support", models.Buy, []float64{99}, nil, 98.5},
		{"buy far support ignored", models.Buy, []float64{90}, nil, 97},
		{"sell raw", models.Sell, nil, nil, 103},
		{"sell pulled to resistance", models.Sell, nil, []float64{101.5, 110}, 102},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StopLoss(tt.dir, 100, 1, 3, tt.supports, tt.resistances); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("StopLoss = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

func TestTakeProfits(t *testing.T) {
	ratios := []float64{2, 3.5}
	tests := []struct {
		name        string
		dir         models.Direction
		stop        float64
		supports    []float64
		resistances []float64
		tp1, tp2    float64
		pure        bool
	}{
		{"buy pure", models.Buy, 98, nil, nil, 104, 107, false},
		{"buy clamped to resistance", models.Buy, 98, nil, []float64{103, 200}, 103 * 0.995, 107, false},
		{"buy two resistances", models.Buy, 98, nil, []float64{106, 103}, 103 * 0.995, 106 * 0.995, false},
		{"sell pure", models.Sell, 102, nil, nil, 96, 93, false},
		{"sell clamped to support", models.Sell, 102, []float64{97}, nil, 97 * 1.005, 93, false},
		// resistance right above entry would put tp1 under entry
		{"buy clamp falls back", models.Buy, 98, nil, []float64{100.1}, 104, 107, true},
		{"sell clamp falls back", models.Sell, 102, []float64{99.9}, nil, 96, 93, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp1, tp2, pure, err := TakeProfits(tt.dir, 100, tt.stop, ratios, tt.supports, tt.resistances)
			if err != nil {
				t.Fatalf("TakeProfits: %v", err)
			}
			if math.Abs(tp1-tt.tp1) > 1e-9 || math.Abs(tp2-tt.tp2) > 1e-9 || pure != tt.pure {
				t.Errorf("got %.4f/%.4f pure=%v, want %.4f/%.4f pure=%v", tp1, tp2, pure, tt.tp1, tt.tp2, tt.pure)
			}
			if !ValidOrdering(tt.dir, 100, tt.stop, tp1, tp2) {
				t.Errorf("ordering violated: stop %.4f tp1 %.4f tp2 %.4f", tt.stop, tp1, tp2)
			}
		})
	}
}

func TestTakeProfitsRejectsImpossibleLayout(t *testing.T) {
	if _, _, _, err := TakeProfits(models.Buy, 100, 100, []float64{2, 3}, nil, nil); !errors.Is(err, ErrTargetOrdering) {
		t.Errorf("zero distance: expected ErrTargetOrdering, got %v", err)
	}
	if _, _, _, err := TakeProfits(models.Buy, 100, 98, []float64{2}, nil, nil); !errors.Is(err, ErrTargetOrdering) {
		t.Errorf("one ratio: expected ErrTargetOrdering, got %v", err)
	}
}

func TestPlanOrderingFuzz(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	ratioSets := [][]float64{{2, 3.5}, {2.5, 4}, {1.5, 2.5}, {2, 3}, {1.8, 3}}
	mults := []float64{1.5, 2, 2.5, 3}

	for i := 0; i < 5000; i++ {
		entry := 0.001 + r.Float64()*50000
		atr := entry * (0.001 + r.Float64()*0.06)
		dir := models.Buy
		if r.Intn(2) == 0 {
			dir = models.Sell
		}
		levels := func() []float64 {
			var out []float64
			for j := r.Intn(6); j > 0; j-- {
				out = append(out, entry*(0.85+r.Float64()*0.3))
			}
			return out
		}

		plan, err := Plan(PlanParams{
			Direction:      dir,
			Entry:          entry,
			ATR:            atr,
			ATRMultiplier:  mults[r.Intn(len(mults))],
			MaxStopPct:     0.15,
			RiskReward:     ratioSets[r.Intn(len(ratioSets))],
			Supports:       levels(),
			Resistances:    levels(),
			Balance:        1000,
			MaxRiskPct:     2,
			RiskMultiplier: 1,
			MaxPositionPct: 0.1,
			Leverage:       1 + r.Intn(5),
		})
		if err != nil {
			if !errors.Is(err, ErrStopDistance) && !errors.Is(err, ErrTargetOrdering) {
				t.Fatalf("unexpected error: %v", err)
			}
			continue
		}
		if !ValidOrdering(dir, plan.Entry, plan.StopLoss, plan.TakeProfit1, plan.TakeProfit2) {
			t.Fatalf("%s plan violates ordering: %+v", dir, plan)
		}
		if plan.StopPct <= 0 || plan.StopPct > 0.15 {
			t.Fatalf("stop pct %.4f out of bounds", plan.StopPct)
		}
	}
}

func TestPlanRejectsWideStop(t *testing.T) {
	_, err := Plan(PlanParams{
		Direction: models.Buy, Entry: 100, ATR: 10, ATRMultiplier: 1.5, MaxStopPct: 0.08,
		RiskReward: []float64{2, 3.5}, Balance: 1000, MaxRiskPct: 2, RiskMultiplier: 1, MaxPositionPct: 0.15, Leverage: 2,
	})
	if !errors.Is(err, ErrStopDistance) {
		t.Errorf("expected ErrStopDistance, got %v", err)
	}
}

func TestLeverage(t *testing.T) {
	tests := []struct {
		name            string
		risk, vol, comb float64
		caps            []int
		want            int
	}{
		{"low risk", 10, 5, 30, nil, 3},
		{"medium risk", 40, 5, 30, nil, 2},
		{"high risk", 60, 5, 30, nil, 1},
		{"volatile", 10, 20, 30, nil, 2},
		{"volatile high risk floors at 1", 60, 20, 30, nil, 1},
		{"strong signal", 10, 5, 70, nil, 4},
		{"capped by pair", 10, 5, 70, []int{2, 10, 5}, 2},
		{"zero cap ignored", 10, 5, 30, []int{0, 5}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Leverage(tt.risk, tt.vol, tt.comb, tt.caps...); got != tt.want {
				t.Errorf("Leverage = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPositionSize(t *testing.T) {
	riskAmount, size := PositionSize(1000, 2, 0.5, 0.05, 2, 0.5)
	if riskAmount != 10 {
		t.Errorf("risk amount = %.2f, want 10", riskAmount)
	}
	if math.Abs(size-400) > 1e-9 {
		t.Errorf("size = %.2f, want 400", size)
	}
	// capped at balance * leverage * pct
	if _, size := PositionSize(1000, 2, 1, 0.01, 3, 0.15); math.Abs(size-450) > 1e-9 {
		t.Errorf("capped size = %.2f, want 450", size)
	}
}
