package technical

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(calculate.New(false), config.DefaultTables().Indicators())
}

// uptrend rises 0.5% per bar with small wicks and flat volume
func uptrend(n int) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	prev := 100 / 1.005
	for i := 0; i < n; i++ {
		c := 100 * math.Pow(1.005, float64(i))
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * 4 * time.Hour),
			Open:      prev,
			High:      c * 1.001,
			Low:       prev * 0.999,
			Close:     c,
			Volume:    1000,
		}
		prev = c
	}
	return candles
}

func randomWalk(r *rand.Rand, n int) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	price := 50 + r.Float64()*100
	for i := 0; i < n; i++ {
		open := price
		price *= 1 + (r.Float64()-0.5)*0.06
		hi := math.Max(open, price) * (1 + r.Float64()*0.01)
		lo := math.Min(open, price) * (1 - r.Float64()*0.01)
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     price,
			Volume:    100 + r.Float64()*1000,
		}
	}
	return candles
}

func closesOf(candles []models.Candle) []float64 {
	_, _, _, c, _ := calculate.Columns(candles)
	return c
}

func TestAnalyzeInsufficientData(t *testing.T) {
	a := newTestAnalyzer()
	res, err := a.Analyze("BTCUSDT", "4h", uptrend(49))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if res.OverallSignal != models.Neutral || res.Confidence != 0 || len(res.Signals) != 0 {
		t.Errorf("expected empty neutral result, got %+v", res)
	}
}

func TestAnalyzeRejectsInvalidData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]models.Candle)
	}{
		{"high below low", func(c []models.Candle) { c[10].High = c[10].Low - 1 }},
		{"close above high", func(c []models.Candle) { c[20].Close = c[20].High * 1.1 }},
		{"open below low", func(c []models.Candle) { c[5].Open = c[5].Low * 0.9 }},
		{"nan volume", func(c []models.Candle) { c[30].Volume = math.NaN() }},
		{"infinite close", func(c []models.Candle) { c[30].Close = math.Inf(1) }},
		{"duplicate timestamp", func(c []models.Candle) { c[40].Timestamp = c[39].Timestamp }},
		{"descending timestamp", func(c []models.Candle) { c[40].Timestamp = c[38].Timestamp }},
	}

	a := newTestAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := uptrend(60)
			tt.mutate(candles)
			res, err := a.Analyze("BTCUSDT", "4h", candles)
			if !errors.Is(err, ErrInvalidData) {
				t.Fatalf("expected ErrInvalidData, got %v", err)
			}
			if res.OverallSignal != models.Neutral || res.Confidence != 0 {
				t.Errorf("expected neutral zero-confidence result, got %+v", res)
			}
		})
	}
}

func TestAnalyzeUptrend(t *testing.T) {
	a := newTestAnalyzer()
	candles := uptrend(60)
	res, err := a.Analyze("BTCUSDT", "4h", candles)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.OverallSignal != models.Buy {
		t.Fatalf("expected BUY, got %s (%.1f)", res.OverallSignal, res.Confidence)
	}
	if res.Confidence < 55 || res.Confidence > 95 {
		t.Errorf("confidence %.1f out of expected range", res.Confidence)
	}

	byName := make(map[string]models.IndicatorSignal)
	for _, s := range res.Signals {
		byName[s.Name] = s
	}
	for _, name := range []string{"EMA9", "EMA21", "EMA50", "SMA20", "SMA50"} {
		if byName[name].Direction != models.Buy {
			t.Errorf("%s = %s, want BUY", name, byName[name].Direction)
		}
	}
	for _, name := range []string{"EMA100", "EMA200", "SMA100"} {
		if _, ok := byName[name]; ok {
			t.Errorf("%s should be omitted for 60 bars", name)
		}
	}
	if byName["RSI"].Direction != models.Sell {
		t.Errorf("RSI = %s, want SELL on an overbought series", byName["RSI"].Direction)
	}
	if byName["ATR"].Direction != models.Neutral {
		t.Errorf("ATR must be neutral, got %s", byName["ATR"].Direction)
	}

	price := candles[len(candles)-1].Close
	if !(res.StopLoss < price && price < res.PriceTargets.Target1 && res.PriceTargets.Target1 < res.PriceTargets.Target2) {
		t.Errorf("bad targets: stop %.4f price %.4f t1 %.4f t2 %.4f", res.StopLoss, price, res.PriceTargets.Target1, res.PriceTargets.Target2)
	}
	if len(res.SupportLevels) != 0 || len(res.ResistanceLevels) != 0 {
		t.Errorf("expected no levels on a monotonic series, got %v %v", res.SupportLevels, res.ResistanceLevels)
	}
	if !res.Timestamp.Equal(candles[len(candles)-1].Timestamp) {
		t.Errorf("timestamp = %v", res.Timestamp)
	}
}

func TestSignalsStayInRange(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, lib := range []bool{false, true} {
		a := NewAnalyzer(calculate.New(lib), config.DefaultTables().Indicators())
		for run := 0; run < 25; run++ {
			res, err := a.Analyze("ETHUSDT", "1h", randomWalk(r, 120+run*5))
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			for _, s := range res.Signals {
				if s.Strength < 0 || s.Strength > 1 || math.IsNaN(s.Strength) {
					t.Errorf("%s strength %.3f outside [0,1]", s.Name, s.Strength)
				}
				switch s.Direction {
				case models.Buy, models.Sell, models.Neutral:
				default:
					t.Errorf("%s has direction %q", s.Name, s.Direction)
				}
			}
			if res.Confidence < 0 || res.Confidence > 100 {
				t.Errorf("confidence %.2f outside [0,100]", res.Confidence)
			}
		}
	}
}

func TestRSISignalOnDecline(t *testing.T) {
	a := newTestAnalyzer()
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	sig, ok := a.rsiSignal(closes)
	if !ok {
		t.Fatal("RSI omitted")
	}
	if sig.Direction != models.Buy || sig.Strength <= 0.5 {
		t.Errorf("RSI = %s/%.2f, want strong BUY", sig.Direction, sig.Strength)
	}
	if math.Abs(sig.Strength-0.8) > 1e-9 {
		t.Errorf("strength = %.4f, want 0.8 at RSI 0", sig.Strength)
	}
}

func TestMACDBullishCrossing(t *testing.T) {
	a := newTestAnalyzer()
	closes := make([]float64, 0, 60)
	for i := 0; i < 59; i++ {
		closes = append(closes, 100-0.01*float64(i*i))
	}
	closes = append(closes, 100)

	sig, ok := a.macdSignal(series{closes: closes, price: closes[len(closes)-1]})
	if !ok {
		t.Fatal("MACD omitted")
	}
	if sig.Direction != models.Buy {
		t.Fatalf("MACD = %s, want BUY", sig.Direction)
	}
	if math.Abs(sig.Strength-0.8) > 0.05 {
		t.Errorf("strength = %.3f, want about 0.8", sig.Strength)
	}
	if !strings.Contains(sig.Description, "crossing") {
		t.Errorf("description %q should mention the crossing", sig.Description)
	}
}

func TestPriceTargetsNeutral(t *testing.T) {
	targets, stop := priceTargets(100, 2, models.Neutral, nil, nil)
	if stop != 100 || targets.Target1 != 100 || targets.Target2 != 100 {
		t.Errorf("neutral targets should equal price, got %+v stop %.2f", targets, stop)
	}
}

func TestPriceTargetsSnapToLevels(t *testing.T) {
	// vol 3%: stop 2 ATR, targets 2.5 and 4 ATR
	targets, stop := priceTargets(100, 3, models.Buy, []float64{97}, []float64{105, 120})
	if want := 97 - 1.5; stop != want {
		t.Errorf("stop = %.2f, want %.2f", stop, want)
	}
	if want := 105 * 0.995; math.Abs(targets.Target1-want) > 1e-9 {
		t.Errorf("t1 = %.4f, want %.4f", targets.Target1, want)
	}
	if targets.Target2 != 112 {
		t.Errorf("t2 = %.4f, want 112", targets.Target2)
	}

	targets, stop = priceTargets(100, 3, models.Sell, []float64{99}, []float64{102})
	if want := 102 + 1.5; stop != want {
		t.Errorf("stop = %.2f, want %.2f", stop, want)
	}
	// the snapped target is too close so the 1 ATR minimum applies
	if targets.Target1 != 97 {
		t.Errorf("t1 = %.4f, want 97", targets.Target1)
	}
	if targets.Target2 != 94 {
		t.Errorf("t2 = %.4f, want 94", targets.Target2)
	}
}
