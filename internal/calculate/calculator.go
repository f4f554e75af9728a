package calculate

import (
	"errors"
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/models"
	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotEnoughData means the series is shorter than the indicator warm-up
	ErrNotEnoughData = errors.New("not enough data")
	// ErrComputation means the indicator produced no usable value
	ErrComputation = errors.New("indicator computation failed")
)

// Calculator computes indicator series. Values inside the warm-up window are NaN.
// With the library enabled go-talib is used and any panic it raises becomes ErrComputation;
// otherwise the native implementations in this package are used.
type Calculator struct {
	useLibrary bool
	logger     zerolog.Logger
}

// MACDSeries holds the three MACD lines
type MACDSeries struct {
	MACD     []float64
	Signal   []float64
	Hist     []float64
	Fallback bool // computed from a plain dual-EMA difference
}

// BandSeries holds Bollinger Bands
type BandSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// New creates a calculator
func New(useLibrary bool) *Calculator {
	return &Calculator{
		useLibrary: useLibrary,
		logger:     log.With().Str("component", "calculate").Logger(),
	}
}

// UsesLibrary reports whether go-talib backs the calculator
func (c *Calculator) UsesLibrary() bool { return c.useLibrary }

// EMA returns the exponential moving average seeded with the SMA of the first period values
func (c *Calculator) EMA(values []float64, period int) ([]float64, error) {
	if err := need(len(values), period); err != nil {
		return nil, err
	}
	if !c.useLibrary {
		return checked(nativeEMA(values, period))
	}
	out, err := guard("EMA", len(values), func() []float64 { return talib.Ema(values, period) })
	if err != nil {
		return nil, err
	}
	return checked(mask(out, period-1))
}

// SMA returns the simple moving average
func (c *Calculator) SMA(values []float64, period int) ([]float64, error) {
	if err := need(len(values), period); err != nil {
		return nil, err
	}
	if !c.useLibrary {
		return checked(nativeSMA(values, period))
	}
	out, err := guard("SMA", len(values), func() []float64 { return talib.Sma(values, period) })
	if err != nil {
		return nil, err
	}
	return checked(mask(out, period-1))
}

// RSI returns Wilder's relative strength index
func (c *Calculator) RSI(closes []float64, period int) ([]float64, error) {
	if err := need(len(closes), period+1); err != nil {
		return nil, err
	}
	if !c.useLibrary {
		return checked(nativeRSI(closes, period))
	}
	out, err := guard("RSI", len(closes), func() []float64 { return talib.Rsi(closes, period) })
	if err != nil {
		return nil, err
	}
	return checked(mask(out, period))
}

// MACD returns the MACD, signal and histogram lines. When the library fails,
// or is disabled, the lines come from a plain fast/slow EMA difference.
func (c *Calculator) MACD(closes []float64, fast, slow, signal int) (MACDSeries, error) {
	lookback := slow - 1 + signal - 1
	if err := need(len(closes), lookback+1); err != nil {
		return MACDSeries{}, err
	}

	if c.useLibrary {
		var m, s, h []float64
		_, err := guard("MACD", len(closes), func() []float64 {
			m, s, h = talib.Macd(closes, fast, slow, signal)
			return m
		})
		if err == nil && len(s) == len(closes) && len(h) == len(closes) {
			series := MACDSeries{MACD: mask(m, lookback), Signal: mask(s, lookback), Hist: mask(h, lookback)}
			if finiteTail(series.MACD) && finiteTail(series.Signal) {
				return series, nil
			}
			err = fmt.Errorf("%w: MACD produced non-finite values", ErrComputation)
		}
		c.logger.Warn().Err(err).Msg("MACD library call failed, using dual EMA fallback")
	}

	series, err := nativeMACD(closes, fast, slow, signal)
	if err != nil {
		return MACDSeries{}, err
	}
	series.Fallback = true
	return series, nil
}

// Bollinger returns Bollinger Bands around an SMA
func (c *Calculator) Bollinger(closes []float64, period int, k float64) (BandSeries, error) {
	if err := need(len(closes), period); err != nil {
		return BandSeries{}, err
	}
	if !c.useLibrary {
		b := nativeBollinger(closes, period, k)
		if !finiteTail(b.Upper) || !finiteTail(b.Lower) {
			return BandSeries{}, fmt.Errorf("%w: bollinger bands", ErrComputation)
		}
		return b, nil
	}

	var u, m, l []float64
	if _, err := guard("BBANDS", len(closes), func() []float64 {
		u, m, l = talib.BBands(closes, period, k, k, talib.SMA)
		return u
	}); err != nil {
		return BandSeries{}, err
	}
	b := BandSeries{Upper: mask(u, period-1), Middle: mask(m, period-1), Lower: mask(l, period-1)}
	if !finiteTail(b.Upper) || !finiteTail(b.Lower) {
		return BandSeries{}, fmt.Errorf("%w: bollinger bands", ErrComputation)
	}
	return b, nil
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|); the first value is NaN
func (c *Calculator) TrueRange(highs, lows, closes []float64) ([]float64, error) {
	if err := need(len(closes), 2); err != nil {
		return nil, err
	}
	if !c.useLibrary {
		return checked(nativeTrueRange(highs, lows, closes))
	}
	out, err := guard("TRANGE", len(closes), func() []float64 { return talib.TRange(highs, lows, closes) })
	if err != nil {
		return nil, err
	}
	return checked(mask(out, 1))
}

// ATR returns the rolling mean of the true range over period bars
func (c *Calculator) ATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := need(len(closes), period+1); err != nil {
		return nil, err
	}
	tr, err := c.TrueRange(highs, lows, closes)
	if err != nil {
		return nil, err
	}
	avg, err := c.SMA(tr[1:], period)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(closes))
	out[0] = math.NaN()
	copy(out[1:], avg)
	return out, nil
}

// Stochastic returns the slow stochastic %K and %D
func (c *Calculator) Stochastic(highs, lows, closes []float64, period, smooth int) ([]float64, []float64, error) {
	lookback := period - 1 + 2*(smooth-1)
	if err := need(len(closes), lookback+1); err != nil {
		return nil, nil, err
	}
	if !c.useLibrary {
		k, d := nativeStochastic(highs, lows, closes, period, smooth)
		if !finiteTail(k) || !finiteTail(d) {
			return nil, nil, fmt.Errorf("%w: stochastic", ErrComputation)
		}
		return k, d, nil
	}

	var k, d []float64
	if _, err := guard("STOCH", len(closes), func() []float64 {
		k, d = talib.Stoch(highs, lows, closes, period, smooth, talib.SMA, smooth, talib.SMA)
		return k
	}); err != nil {
		return nil, nil, err
	}
	k, d = mask(k, lookback), mask(d, lookback)
	if !finiteTail(k) || !finiteTail(d) {
		return nil, nil, fmt.Errorf("%w: stochastic", ErrComputation)
	}
	return k, d, nil
}

// WilliamsR returns Williams %R in [-100, 0]
func (c *Calculator) WilliamsR(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := need(len(closes), period); err != nil {
		return nil, err
	}
	if !c.useLibrary {
		return checked(nativeWilliamsR(highs, lows, closes, period))
	}
	out, err := guard("WILLR", len(closes), func() []float64 { return talib.WillR(highs, lows, closes, period) })
	if err != nil {
		return nil, err
	}
	return checked(mask(out, period-1))
}

// OBV returns on-balance volume
func (c *Calculator) OBV(closes, volumes []float64) ([]float64, error) {
	if err := need(len(closes), 2); err != nil {
		return nil, err
	}
	if !c.useLibrary {
		return checked(nativeOBV(closes, volumes))
	}
	return guard("OBV", len(closes), func() []float64 { return talib.Obv(closes, volumes) })
}

// Columns splits candles into OHLCV columns
func Columns(candles []models.Candle) (opens, highs, lows, closes, volumes []float64) {
	n := len(candles)
	opens, highs, lows = make([]float64, n), make([]float64, n), make([]float64, n)
	closes, volumes = make([]float64, n), make([]float64, n)
	for i, c := range candles {
		opens[i], highs[i], lows[i], closes[i], volumes[i] = c.Open, c.High, c.Low, c.Close, c.Volume
	}
	return
}

// Last returns the value n positions from the end (0 = last) and whether it is usable
func Last(series []float64, n int) (float64, bool) {
	i := len(series) - 1 - n
	if i < 0 {
		return 0, false
	}
	v := series[i]
	return v, !math.IsNaN(v) && !math.IsInf(v, 0)
}

func guard(name string, n int, fn func() []float64) (out []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrComputation, name, r)
		}
	}()
	out = fn()
	if len(out) != n {
		return nil, fmt.Errorf("%w: %s returned %d values for %d inputs", ErrComputation, name, len(out), n)
	}
	return out, nil
}

func need(have, want int) error {
	if want < 1 || have < want {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughData, have, want)
	}
	return nil
}

func mask(out []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

func checked(out []float64) ([]float64, error) {
	if !finiteTail(out) {
		return nil, fmt.Errorf("%w: non-finite result", ErrComputation)
	}
	return out, nil
}

func finiteTail(series []float64) bool {
	_, ok := Last(series, 0)
	return ok
}
