package calculate

import "math"

// nativeBollinger uses the population standard deviation, as the library does
func nativeBollinger(closes []float64, period int, stdDev float64) BandSeries {
	b := BandSeries{
		Upper:  nanSeries(len(closes)),
		Middle: nativeSMA(closes, period),
		Lower:  nanSeries(len(closes)),
	}

	for i := period - 1; i < len(closes); i++ {
		middle := b.Middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			variance += math.Pow(closes[j]-middle, 2)
		}
		sd := math.Sqrt(variance / float64(period))
		b.Upper[i] = middle + sd*stdDev
		b.Lower[i] = middle - sd*stdDev
	}
	return b
}
