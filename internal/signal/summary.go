package signal

import (
	"fmt"
	"strings"

	"github.com/Alias1177/SignalBot/internal/analysis/fundamental"
	"github.com/Alias1177/SignalBot/models"
)

var categoryNotes = map[models.Category]string{
	models.CategoryMeme:      "volatile asset",
	models.CategoryEmerging:  "new project",
	models.CategoryDefi:      "DeFi protocol",
	models.CategoryGamingNFT: "gaming token",
}

// TechnicalSummary describes the strong technical signals in one line
func TechnicalSummary(tech *models.TechnicalResult, cat models.Category) string {
	var trend, momentum, patterns []models.IndicatorSignal
	for _, s := range tech.Signals {
		if s.Strength <= 0.6 {
			continue
		}
		switch Family(s.Name) {
		case FamilyTrend:
			trend = append(trend, s)
		case FamilyMomentum:
			momentum = append(momentum, s)
		case FamilyCandlestick:
			patterns = append(patterns, s)
		}
	}

	var parts []string
	if len(trend) > 0 {
		if trend[0].Direction == models.Buy {
			parts = append(parts, "bullish trend")
		} else {
			parts = append(parts, "bearish trend")
		}
	}
	directional := 0
	for _, s := range momentum {
		if s.Direction != models.Neutral {
			directional++
		}
	}
	if directional > 0 {
		parts = append(parts, fmt.Sprintf("momentum (%d indicators)", directional))
	}
	if len(patterns) > 0 {
		parts = append(parts, "candlestick patterns")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Weak technical signals (%s)", cat)
	}
	if note, ok := categoryNotes[cat]; ok {
		parts = append(parts, note)
	}
	return strings.Join(parts, "; ")
}

// FundamentalSummary names up to three strong fundamental drivers
func FundamentalSummary(fund *models.FundamentalResult, categoryName string) string {
	var parts []string
	n := 0
	for _, s := range fund.Signals {
		if s.Strength <= 0.5 {
			continue
		}
		if n == 3 {
			break
		}
		n++
		switch {
		case strings.HasPrefix(s.Name, "Volume"):
			parts = append(parts, "volume")
		case s.Name == fundamental.NameFundingRate:
			if s.Direction == models.Buy {
				parts = append(parts, "negative funding")
			} else {
				parts = append(parts, "positive funding")
			}
		case strings.HasPrefix(s.Name, "Open_Interest"):
			if s.Direction == models.Buy {
				parts = append(parts, "rising OI")
			} else {
				parts = append(parts, "falling OI")
			}
		case s.Name == fundamental.NameSpread:
			parts = append(parts, "liquidity")
		}
	}
	if fund.MarketSentiment != "" && fund.MarketSentiment != models.NeutralSentiment {
		parts = append(parts, strings.ToLower(string(fund.MarketSentiment))+" sentiment")
	}

	body := "neutral fundamentals"
	if len(parts) > 0 {
		body = strings.Join(parts, "; ")
	}
	if categoryName == "" {
		return body
	}
	return categoryName + " | " + body
}
