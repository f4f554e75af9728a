package calculate

// nativeStochastic returns the slow %K (fast %K smoothed) and its %D
func nativeStochastic(highs, lows, closes []float64, kPeriod, smooth int) ([]float64, []float64) {
	fastK := nanSeries(len(closes))
	for i := kPeriod - 1; i < len(closes); i++ {
		highest, lowest := windowRange(highs, lows, i-kPeriod+1, i)
		if highest-lowest > 0 {
			fastK[i] = (closes[i] - lowest) / (highest - lowest) * 100
		} else {
			fastK[i] = 50.0
		}
	}

	start := kPeriod - 1
	slowK := nanSeries(len(closes))
	copy(slowK[start:], nativeSMA(fastK[start:], smooth))

	start += smooth - 1
	slowD := nanSeries(len(closes))
	if start < len(closes) {
		copy(slowD[start:], nativeSMA(slowK[start:], smooth))
	}
	return slowK, slowD
}

// nativeWilliamsR is (highest - close) / (highest - lowest) * -100
func nativeWilliamsR(highs, lows, closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period - 1; i < len(closes); i++ {
		highest, lowest := windowRange(highs, lows, i-period+1, i)
		if highest-lowest > 0 {
			out[i] = (highest - closes[i]) / (highest - lowest) * -100
		} else {
			out[i] = -50.0
		}
	}
	return out
}

func windowRange(highs, lows []float64, from, to int) (float64, float64) {
	highest, lowest := highs[from], lows[from]
	for j := from + 1; j <= to; j++ {
		if highs[j] > highest {
			highest = highs[j]
		}
		if lows[j] < lowest {
			lowest = lows[j]
		}
	}
	return highest, lowest
}
