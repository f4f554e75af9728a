package calculate

import "fmt"

// nativeMACD is the dual EMA difference with an EMA signal line
func nativeMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (MACDSeries, error) {
	if len(closes) < slowPeriod+signalPeriod-1 {
		return MACDSeries{}, fmt.Errorf("%w: MACD needs %d closes", ErrNotEnoughData, slowPeriod+signalPeriod-1)
	}

	fastEMA := nativeEMA(closes, fastPeriod)
	slowEMA := nativeEMA(closes, slowPeriod)

	start := slowPeriod - 1
	if fastPeriod > slowPeriod {
		start = fastPeriod - 1
	}

	macd := nanSeries(len(closes))
	for i := start; i < len(closes); i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signal := nanSeries(len(closes))
	copy(signal[start:], nativeEMA(macd[start:], signalPeriod))

	hist := nanSeries(len(closes))
	for i := start + signalPeriod - 1; i < len(closes); i++ {
		hist[i] = macd[i] - signal[i]
	}

	series := MACDSeries{MACD: macd, Signal: signal, Hist: hist}
	if !finiteTail(series.MACD) || !finiteTail(series.Signal) {
		return MACDSeries{}, fmt.Errorf("%w: MACD produced non-finite values", ErrComputation)
	}
	return series, nil
}
