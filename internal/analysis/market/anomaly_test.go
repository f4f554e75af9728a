package market

import (
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/models"
)

func flatCandles(n int) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1000,
		}
	}
	return out
}

func types(as []Anomaly) map[string]bool {
	m := make(map[string]bool)
	for _, a := range as {
		m[a.Type] = true
	}
	return m
}

func TestDetectAnomalies(t *testing.T) {
	calc := calculate.New(false)

	tests := []struct {
		name string
		last models.Candle
		want []string
	}{
		{name: "quiet", last: models.Candle{Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1100}},
		{name: "spike with volume", last: models.Candle{Open: 100, High: 109, Low: 100, Close: 108, Volume: 5000}, want: []string{PriceSpike, VolumeSpike}},
		{name: "gap down", last: models.Candle{Open: 97, High: 97.5, Low: 96, Close: 97, Volume: 900}, want: []string{GapDown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := flatCandles(30)
			tt.last.Timestamp = candles[29].Timestamp
			candles[29] = tt.last

			got := types(DetectAnomalies(candles, calc))
			if len(got) != len(tt.want) {
				t.Fatalf("anomalies = %v, want %v", got, tt.want)
			}
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("missing %s in %v", w, got)
				}
			}
		})
	}

	if got := DetectAnomalies(flatCandles(10), calc); got != nil {
		t.Errorf("short series = %v", got)
	}
}
