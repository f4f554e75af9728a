package technical

import (
	"github.com/Alias1177/SignalBot/models"
)

// priceTargets derives the stop and two targets from ATR, snapping them to
// the nearest support and resistance levels
func priceTargets(price, atr float64, dir models.Direction, supports, resistances []float64) (models.PriceTargets, float64) {
	volatility := atr / price
	stopMult, t1Mult, t2Mult := 2.0, 2.5, 4.0
	switch {
	case volatility > 0.05:
		stopMult, t1Mult, t2Mult = 2.5, 2.0, 3.5
	case volatility < 0.02:
		stopMult = 1.5
	}

	switch dir {
	case models.Buy:
		stop := price - atr*stopMult
		if len(supports) > 0 {
			stop = max(stop, supports[0]-atr*0.5)
		}
		t1, t2 := price+atr*t1Mult, price+atr*t2Mult
		if len(resistances) > 0 {
			t1 = min(t1, resistances[0]*0.995)
		}
		if len(resistances) >= 2 {
			t2 = min(t2, resistances[1]*0.995)
		} else if len(resistances) == 1 {
			t2 = min(t2, resistances[0]*1.02)
		}
		return models.PriceTargets{Target1: max(t1, price+atr), Target2: max(t2, price+atr*2)}, stop

	case models.Sell:
		stop := price + atr*stopMult
		if len(resistances) > 0 {
			stop = min(stop, resistances[0]+atr*0.5)
		}
		t1, t2 := price-atr*t1Mult, price-atr*t2Mult
		if len(supports) > 0 {
			t1 = max(t1, supports[0]*1.005)
		}
		if len(supports) >= 2 {
			t2 = max(t2, supports[1]*1.005)
		} else if len(supports) == 1 {
			t2 = max(t2, supports[0]*0.98)
		}
		return models.PriceTargets{Target1: min(t1, price-atr), Target2: min(t2, price-atr*2)}, stop
	}

	return models.PriceTargets{Target1: price, Target2: price}, price
}
