package notification

import (
	"fmt"
	"html"
	"strings"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
	"github.com/shopspring/decimal"
)

// MaxMessageLength is the Telegram limit for one message
const MaxMessageLength = 4096

const disclaimer = "<i>Not financial advice. Trade at your own risk.</i>"

// Formatter renders signals according to the features of a tier
type Formatter struct {
	tables *config.Tables
}

// NewFormatter creates a formatter over the tier tables
func NewFormatter(tables *config.Tables) *Formatter {
	return &Formatter{tables: tables}
}

// Format renders sig for a chat and splits it into sendable chunks
func (f *Formatter) Format(sig *models.TradingSignal, tier models.Tier, admin bool) []string {
	return Split(f.render(sig, tier, admin), MaxMessageLength)
}

func (f *Formatter) render(sig *models.TradingSignal, tier models.Tier, admin bool) string {
	policy, _ := f.tables.Tier(tier)
	technical := admin || policy.HasFeature(config.FeatureTechnicalAnalysis)
	fundamental := admin || policy.HasFeature(config.FeatureFundamentalAnalysis)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s %s</b>\n\n", directionMark(sig.SignalType), sig.SignalType, html.EscapeString(sig.Symbol))
	fmt.Fprintf(&b, "Entry: <code>%s</code>\n", Price(sig.EntryPrice))
	fmt.Fprintf(&b, "Stop loss: <code>%s</code> (%.2f%%)\n", Price(sig.StopLoss), sig.StopDistance()*100)
	fmt.Fprintf(&b, "Take profit 1: <code>%s</code>\n", Price(sig.TakeProfit1))
	if sig.TakeProfit2 > 0 {
		fmt.Fprintf(&b, "Take profit 2: <code>%s</code>\n", Price(sig.TakeProfit2))
	}
	fmt.Fprintf(&b, "Leverage: %dx\n", sig.Leverage)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", sig.Confidence)

	if technical {
		fmt.Fprintf(&b, "\nCategory: %s\n", f.categoryName(sig.Category))
		fmt.Fprintf(&b, "Position: $%s, risk $%s\n", Money(sig.PositionSize), Money(sig.RiskAmount))
		if sig.MarketCondition != "" {
			fmt.Fprintf(&b, "Market: %s\n", sig.MarketCondition)
		}
		fmt.Fprintf(&b, "\n<b>Technical</b>\n%s\n", html.EscapeString(sig.TechnicalSummary))
	}

	if fundamental {
		fmt.Fprintf(&b, "\n<b>Fundamental</b>\n%s\n", html.EscapeString(sig.FundamentalSummary))
		if len(sig.RiskFactors) > 0 {
			b.WriteString("\n<b>Risk factors</b>\n")
			for i, r := range sig.RiskFactors {
				if i == 3 {
					break
				}
				fmt.Fprintf(&b, "• %s\n", html.EscapeString(r))
			}
		}
	}

	if !technical {
		b.WriteString("\n<i>Upgrade with /plans for full analysis.</i>\n")
	}

	fmt.Fprintf(&b, "\n%s UTC\n\n%s", sig.Timestamp.UTC().Format("15:04 02.01.2006"), disclaimer)
	return b.String()
}

func (f *Formatter) categoryName(c models.Category) string {
	if name := f.tables.Policy(c).DisplayName; name != "" {
		return name
	}
	return string(c)
}

// FormatAnalysis renders a one-off analysis of a symbol
func FormatAnalysis(symbol string, tech *models.TechnicalResult, fund *models.FundamentalResult) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Analysis: %s</b>\n\n", html.EscapeString(symbol))

	if tech != nil {
		fmt.Fprintf(&b, "<b>Technical</b>: %s, %.1f%%\n", tech.OverallSignal, tech.Confidence)
		if len(tech.SupportLevels) > 0 {
			fmt.Fprintf(&b, "Support: %s\n", priceList(tech.SupportLevels, 2))
		}
		if len(tech.ResistanceLevels) > 0 {
			fmt.Fprintf(&b, "Resistance: %s\n", priceList(tech.ResistanceLevels, 2))
		}
		for _, s := range tech.Signals {
			fmt.Fprintf(&b, "• %s %s %.2f: %s\n", html.EscapeString(s.Name), s.Direction, s.Strength, html.EscapeString(s.Description))
		}
	}
	if fund != nil {
		fmt.Fprintf(&b, "\n<b>Fundamental</b>: %s, %.1f%%, sentiment %s\n", fund.OverallSignal, fund.Confidence, fund.MarketSentiment)
		for _, s := range fund.Signals {
			fmt.Fprintf(&b, "• %s %s %.2f [%s]: %s\n", html.EscapeString(s.Name), s.Direction, s.Strength, s.Impact, html.EscapeString(s.Description))
		}
		for _, r := range fund.RiskFactors {
			fmt.Fprintf(&b, "⚠ %s\n", html.EscapeString(r))
		}
	}
	b.WriteString("\n" + disclaimer)
	return Split(b.String(), MaxMessageLength)
}

func priceList(levels []float64, n int) string {
	parts := make([]string, 0, n)
	for i, l := range levels {
		if i == n {
			break
		}
		parts = append(parts, Price(l))
	}
	return strings.Join(parts, ", ")
}

func directionMark(d models.Direction) string {
	switch d {
	case models.Buy:
		return "🟢"
	case models.Sell:
		return "🔴"
	}
	return "⚪"
}

// Price rounds to a precision that suits the magnitude of p
func Price(p float64) string {
	d := decimal.NewFromFloat(p)
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return d.StringFixed(2)
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return d.StringFixed(4)
	case abs.GreaterThanOrEqual(decimal.NewFromFloat(0.01)):
		return d.StringFixed(6)
	}
	return d.StringFixed(8)
}

// Money formats a USD amount with cents
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
