package pattern

import (
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/models"
)

// Prefix of every candlestick signal name
const Prefix = "Pattern_"

type found struct {
	name      string
	direction models.Direction
	strength  float64
}

// candle geometry
type shape struct {
	body, total, upper, lower float64
	bullish, bearish          bool
}

func measure(c models.Candle) shape {
	return shape{
		body:    math.Abs(c.Close - c.Open),
		total:   c.High - c.Low,
		upper:   c.High - math.Max(c.Open, c.Close),
		lower:   math.Min(c.Open, c.Close) - c.Low,
		bullish: c.Close > c.Open,
		bearish: c.Close < c.Open,
	}
}

// Detect identifies candlestick patterns on the last three candles.
// At most one single-candle pattern, one engulfing pattern and one star
// pattern are reported.
func Detect(candles []models.Candle) []models.IndicatorSignal {
	if len(candles) < 3 {
		return nil
	}

	cur := candles[len(candles)-1]
	prev1 := candles[len(candles)-2]
	prev2 := candles[len(candles)-3]
	c, p1, p2 := measure(cur), measure(prev1), measure(prev2)

	var patterns []found

	if c.total > 0 {
		longLower := c.lower > c.body*2 && c.upper < c.body*0.5
		longUpper := c.upper > c.body*2 && c.lower < c.body*0.5
		switch {
		case longLower && c.body > c.total*0.1:
			patterns = append(patterns, found{"Hammer", models.Buy, 0.6})
		case longLower && cur.Close < prev1.Close:
			patterns = append(patterns, found{"Hanging Man", models.Sell, 0.5})
		case longUpper && c.body > c.total*0.1:
			patterns = append(patterns, found{"Shooting Star", models.Sell, 0.6})
		case longUpper && cur.Close > prev1.Close:
			patterns = append(patterns, found{"Inverted Hammer", models.Buy, 0.5})
		case c.body < c.total*0.1:
			if c.upper > c.total*0.4 && c.lower > c.total*0.4 {
				patterns = append(patterns, found{"Doji", models.Neutral, 0.4})
			}
		}

		if p1.total > 0 && c.body > p1.body*1.2 {
			switch {
			case c.bullish && p1.bearish && cur.Close > prev1.Open && cur.Open < prev1.Close:
				patterns = append(patterns, found{"Bullish Engulfing", models.Buy, 0.7})
			case c.bearish && p1.bullish && cur.Close < prev1.Open && cur.Open > prev1.Close:
				patterns = append(patterns, found{"Bearish Engulfing", models.Sell, 0.7})
			}
		}
	}

	mid2 := (prev2.Open + prev2.Close) / 2
	smallMiddle := p1.body < p2.body*0.5
	switch {
	case p2.bearish && smallMiddle && c.bullish && cur.Close > mid2:
		patterns = append(patterns, found{"Morning Star", models.Buy, 0.8})
	case p2.bullish && smallMiddle && c.bearish && cur.Close < mid2:
		patterns = append(patterns, found{"Evening Star", models.Sell, 0.8})
	}

	signals := make([]models.IndicatorSignal, 0, len(patterns))
	for _, p := range patterns {
		signals = append(signals, models.IndicatorSignal{
			Name:        Prefix + p.name,
			Value:       1,
			Direction:   p.direction,
			Strength:    p.strength,
			Description: fmt.Sprintf("Candlestick pattern: %s", p.name),
		})
	}
	return signals
}
