package market

import (
	"math"
	"testing"

	"github.com/Alias1177/SignalBot/models"
)

func emaResult(dirs ...models.Direction) *models.TechnicalResult {
	res := &models.TechnicalResult{}
	for i, d := range dirs {
		res.Signals = append(res.Signals, models.IndicatorSignal{Name: "EMA" + string(rune('1'+i)), Direction: d})
	}
	res.Signals = append(res.Signals, models.IndicatorSignal{Name: "RSI", Direction: models.Sell})
	return res
}

func ticker(high, low, last float64) *models.Ticker {
	return &models.Ticker{HighPrice24h: high, LowPrice24h: low, LastPrice: last}
}

func TestCondition(t *testing.T) {
	up := emaResult(models.Buy, models.Buy, models.Sell)
	mixed := emaResult(models.Buy, models.Sell)
	down := emaResult(models.Sell, models.Sell, models.Neutral)

	tests := []struct {
		name     string
		tech     *models.TechnicalResult
		ticker   *models.Ticker
		category models.Category
		want     string
	}{
		{"trending up", up, ticker(105, 100, 102), models.CategoryMajor, TrendingUp},
		{"trending down", down, ticker(105, 100, 102), models.CategoryMajor, TrendingDown},
		{"mixed emas range", mixed, ticker(105, 100, 102), models.CategoryMajor, Ranging},
		{"no emas", &models.TechnicalResult{}, ticker(105, 100, 102), models.CategoryMajor, Neutral},
		{"wide range volatile", up, ticker(120, 100, 110), models.CategoryMajor, Volatile},
		{"narrow range ranging", up, ticker(101, 100, 100.5), models.CategoryMajor, Ranging},
		{"meme volatile", up, ticker(140, 100, 120), models.CategoryMeme, MemeVolatile},
		{"meme quiet", up, ticker(104, 100, 102), models.CategoryMeme, MemeQuiet},
		{"emerging volatile", up, ticker(130, 100, 120), models.CategoryEmerging, EmergingVolatile},
		{"no ticker keeps trend", up, nil, models.CategoryMajor, TrendingUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Condition(tt.tech, tt.ticker, tt.category); got != tt.want {
				t.Errorf("Condition = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVolatilityFactor(t *testing.T) {
	if got := VolatilityFactor(ticker(106, 100, 100), 2); math.Abs(got-3) > 1e-9 {
		t.Errorf("factor = %.2f, want 3", got)
	}
	if got := VolatilityFactor(ticker(300, 100, 100), 2); got != 50 {
		t.Errorf("factor = %.2f, want capped 50", got)
	}
	if got := VolatilityFactor(nil, 2); got != 5 {
		t.Errorf("factor = %.2f, want 5 without ticker", got)
	}
}
