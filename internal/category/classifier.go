package category

import (
	"strings"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
)

// Classifier maps trading pairs to their category
type Classifier struct {
	tables *config.Tables
}

// NewClassifier creates a classifier over the given tables
func NewClassifier(tables *config.Tables) *Classifier {
	return &Classifier{tables: tables}
}

// Classify returns the category of symbol; unlisted pairs are "other".
// A bare base asset ("BTC") is looked up as its USDT pair.
func (c *Classifier) Classify(symbol string) models.Category {
	s := config.NormalizeSymbol(symbol)
	if cat, ok := c.tables.MemberOf(s); ok {
		return cat
	}
	if !strings.HasSuffix(s, "USDT") {
		if cat, ok := c.tables.MemberOf(s + "USDT"); ok {
			return cat
		}
	}
	return models.CategoryOther
}

// Policy returns the category and its policy for symbol
func (c *Classifier) Policy(symbol string) (models.Category, config.CategoryPolicy) {
	cat := c.Classify(symbol)
	return cat, c.tables.Policy(cat)
}

// Override returns the pair overrides of symbol, resolving a bare base
// asset to its USDT pair the way Classify does
func (c *Classifier) Override(symbol string) (config.PairOverride, bool) {
	s := config.NormalizeSymbol(symbol)
	if o, ok := c.tables.PairOverride(s); ok {
		return o, true
	}
	if !strings.HasSuffix(s, "USDT") {
		return c.tables.PairOverride(s + "USDT")
	}
	return config.PairOverride{}, false
}

// MinVolume is the category minimum scaled by any pair multiplier
func (c *Classifier) MinVolume(symbol string) float64 {
	v := c.tables.MinVolume(c.Classify(symbol))
	if o, ok := c.Override(symbol); ok && o.VolumeMultiplier > 0 {
		v *= o.VolumeMultiplier
	}
	return v
}

// GlobalMinVolume is the market-wide liquidity floor, independent of category
func (c *Classifier) GlobalMinVolume() float64 {
	return c.tables.Risk().MinVolumeUSDT
}
