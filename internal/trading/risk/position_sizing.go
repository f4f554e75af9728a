package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Alias1177/SignalBot/models"
)

var (
	// ErrStopDistance means the stop is on the wrong side or too far away
	ErrStopDistance = errors.New("stop distance out of bounds")
	// ErrTargetOrdering means no take-profit layout satisfies stop < entry < tp1 < tp2
	ErrTargetOrdering = errors.New("take-profit ordering violated")
)

const (
	levelBuffer   = 0.005
	supportBuffer = 0.5 // in ATR
)

// PlanParams are the inputs of a trade plan
type PlanParams struct {
	Direction      models.Direction
	Entry          float64
	ATR            float64
	ATRMultiplier  float64
	MaxStopPct     float64
	RiskReward     []float64
	Supports       []float64
	Resistances    []float64
	Balance        float64
	MaxRiskPct     float64 // percent of balance risked per trade
	RiskMultiplier float64
	MaxPositionPct float64
	Leverage       int
}

// TradePlan holds the derived trade parameters
type TradePlan struct {
	Entry        float64 `json:"entry"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit1  float64 `json:"take_profit_1"`
	TakeProfit2  float64 `json:"take_profit_2"`
	StopPct      float64 `json:"stop_pct"`
	Leverage     int     `json:"leverage"`
	RiskAmount   float64 `json:"risk_amount"`
	PositionSize float64 `json:"position_size"`
	PureTargets  bool    `json:"pure_targets"` // level clamping was discarded
}

// Plan derives stop, targets and size for a directional trade
func Plan(p PlanParams) (*TradePlan, error) {
	if p.Direction != models.Buy && p.Direction != models.Sell {
		return nil, fmt.Errorf("plan for %s: %w", p.Direction, ErrTargetOrdering)
	}

	stop := StopLoss(p.Direction, p.Entry, p.ATR, p.ATRMultiplier, p.Supports, p.Resistances)
	distance := math.Abs(p.Entry - stop)
	stopPct := distance / p.Entry
	if (p.Direction == models.Buy && stop >= p.Entry) || (p.Direction == models.Sell && stop <= p.Entry) ||
		stopPct <= 0 || stopPct > p.MaxStopPct {
		return nil, fmt.Errorf("%w: %.2f%% (max %.2f%%)", ErrStopDistance, stopPct*100, p.MaxStopPct*100)
	}

	tp1, tp2, pure, err := TakeProfits(p.Direction, p.Entry, stop, p.RiskReward, p.Supports, p.Resistances)
	if err != nil {
		return nil, err
	}

	riskAmount, size := PositionSize(p.Balance, p.MaxRiskPct, p.RiskMultiplier, stopPct, p.Leverage, p.MaxPositionPct)

	return &TradePlan{
		Entry:        p.Entry,
		StopLoss:     stop,
		TakeProfit1:  tp1,
		TakeProfit2:  tp2,
		StopPct:      stopPct,
		Leverage:     p.Leverage,
		RiskAmount:   riskAmount,
		PositionSize: size,
		PureTargets:  pure,
	}, nil
}

// StopLoss places the stop atrMult ATRs from entry and pulls it in to half an
// ATR beyond the nearest support (BUY) or resistance (SELL) when that is tighter
func StopLoss(dir models.Direction, entry, atr, atrMult float64, supports, resistances []float64) float64 {
	if dir == models.Buy {
		stop := entry - atr*atrMult
		if s, ok := nearestBelow(supports, entry); ok {
			stop = math.Max(stop, s-atr*supportBuffer)
		}
		return stop
	}
	stop := entry + atr*atrMult
	if r, ok := nearestAbove(resistances, entry); ok {
		stop = math.Min(stop, r+atr*supportBuffer)
	}
	return stop
}

// TakeProfits places two targets at the risk/reward multiples of the stop
// distance and clamps them just short of the next levels on the profit side.
// If the clamped layout breaks stop < entry < tp1 < tp2 (mirrored for SELL)
// the pure multiples are used instead; pure reports that fallback.
func TakeProfits(dir models.Direction, entry, stop float64, ratios []float64, supports, resistances []float64) (tp1, tp2 float64, pure bool, err error) {
	if len(ratios) < 2 {
		return 0, 0, false, fmt.Errorf("%w: need two risk/reward ratios", ErrTargetOrdering)
	}
	distance := math.Abs(entry - stop)
	sign := dir.Sign()
	raw1 := entry + sign*distance*ratios[0]
	raw2 := entry + sign*distance*ratios[1]

	tp1, tp2 = raw1, raw2
	if dir == models.Buy {
		levels := above(resistances, entry)
		if len(levels) > 0 {
			tp1 = math.Min(tp1, levels[0]*(1-levelBuffer))
		}
		if len(levels) > 1 {
			tp2 = math.Min(tp2, levels[1]*(1-levelBuffer))
		}
	} else {
		levels := below(supports, entry)
		if len(levels) > 0 {
			tp1 = math.Max(tp1, levels[0]*(1+levelBuffer))
		}
		if len(levels) > 1 {
			tp2 = math.Max(tp2, levels[1]*(1+levelBuffer))
		}
	}

	if ValidOrdering(dir, entry, stop, tp1, tp2) {
		return tp1, tp2, false, nil
	}
	if ValidOrdering(dir, entry, stop, raw1, raw2) {
		return raw1, raw2, true, nil
	}
	return 0, 0, true, fmt.Errorf("%w: entry %.6f stop %.6f", ErrTargetOrdering, entry, stop)
}

// ValidOrdering checks stop < entry < tp1 < tp2 for BUY and the mirror for SELL
func ValidOrdering(dir models.Direction, entry, stop, tp1, tp2 float64) bool {
	switch dir {
	case models.Buy:
		return stop < entry && entry < tp1 && tp1 < tp2
	case models.Sell:
		return stop > entry && entry > tp1 && tp1 > tp2
	}
	return false
}

// Leverage picks 1-3x from the risk score, lowers it in high volatility and
// raises it for strong signals, then applies every cap
func Leverage(riskScore, volatilityFactor, combinedScore float64, caps ...int) int {
	lev := 3
	switch {
	case riskScore > 50:
		lev = 1
	case riskScore > 30:
		lev = 2
	}
	if volatilityFactor > 15 {
		lev = max(1, lev-1)
	}
	if math.Abs(combinedScore) > 60 {
		lev = min(5, lev+1)
	}
	for _, c := range caps {
		if c > 0 && c < lev {
			lev = c
		}
	}
	return max(lev, 1)
}

// PositionSize risks balance*maxRiskPct%*multiplier over the stop distance,
// levered, and capped at maxPositionPct of the levered balance
func PositionSize(balance, maxRiskPct, multiplier, stopPct float64, leverage int, maxPositionPct float64) (riskAmount, size float64) {
	riskAmount = balance * maxRiskPct / 100 * multiplier
	if stopPct <= 0 {
		return riskAmount, 0
	}
	size = riskAmount / stopPct * float64(leverage)
	if limit := balance * float64(leverage) * maxPositionPct; size > limit {
		size = limit
	}
	return riskAmount, size
}

func nearestBelow(levels []float64, price float64) (float64, bool) {
	l := below(levels, price)
	if len(l) == 0 {
		return 0, false
	}
	return l[0], true
}

func nearestAbove(levels []float64, price float64) (float64, bool) {
	l := above(levels, price)
	if len(l) == 0 {
		return 0, false
	}
	return l[0], true
}

// above returns levels over price, nearest first
func above(levels []float64, price float64) []float64 {
	var out []float64
	for _, l := range levels {
		if l > price {
			out = append(out, l)
		}
	}
	sort.Float64s(out)
	return out
}

// below returns levels under price, nearest first
func below(levels []float64, price float64) []float64 {
	var out []float64
	for _, l := range levels {
		if l < price && l > 0 {
			out = append(out, l)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
