package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/SignalBot/models"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTables is returned when a tables spec fails validation
var ErrInvalidTables = errors.New("invalid tables")

// TablesSpec is the serialisable form of the static lookup tables.
// A category, pair or tier entry in a TABLES_FILE replaces the compiled-in entry as a whole.
type TablesSpec struct {
	Indicators IndicatorSettings                  `yaml:"indicators"`
	Risk       RiskSettings                       `yaml:"risk"`
	Categories map[models.Category]CategoryPolicy `yaml:"categories" validate:"required,dive"`
	Pairs      map[string]PairOverride            `yaml:"pairs" validate:"dive"`
	Tiers      map[models.Tier]TierPolicy         `yaml:"tiers" validate:"required,dive"`
}

// IndicatorSettings are the periods and weights of the technical analysis
type IndicatorSettings struct {
	MinCandles     int     `yaml:"min_candles" default:"50" validate:"gte=30"`
	EMAPeriods     []int   `yaml:"ema_periods" default:"[9,21,50,100,200]" validate:"min=1,dive,gte=2"`
	SMAPeriods     []int   `yaml:"sma_periods" default:"[20,50,100]" validate:"dive,gte=2"`
	RSIPeriod      int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	MACDFast       int     `yaml:"macd_fast" default:"12" validate:"gte=2,ltfield=MACDSlow"`
	MACDSlow       int     `yaml:"macd_slow" default:"26" validate:"gte=3"`
	MACDSignal     int     `yaml:"macd_signal" default:"9" validate:"gte=2"`
	BBPeriod       int     `yaml:"bb_period" default:"20" validate:"gte=2"`
	BBStdDev       float64 `yaml:"bb_std_dev" default:"2" validate:"gt=0"`
	StochPeriod    int     `yaml:"stoch_period" default:"14" validate:"gte=2"`
	StochSmooth    int     `yaml:"stoch_smooth" default:"3" validate:"gte=1"`
	WilliamsPeriod int     `yaml:"williams_period" default:"14" validate:"gte=2"`
	ATRPeriod      int     `yaml:"atr_period" default:"14" validate:"gte=2"`
	VolumeShort    int     `yaml:"volume_short" default:"10" validate:"gte=2"`
	VolumeLong     int     `yaml:"volume_long" default:"20" validate:"gtfield=VolumeShort"`

	SRWindow      int     `yaml:"sr_window" default:"5" validate:"gte=1"`
	SRTolerance   float64 `yaml:"sr_tolerance" default:"0.005" validate:"gt=0,lt=0.1"`
	SRMinTouches  int     `yaml:"sr_min_touches" default:"2" validate:"gte=1"`
	SRMaxDistance float64 `yaml:"sr_max_distance" default:"0.15" validate:"gt=0,lte=1"`
	SRMaxLevels   int     `yaml:"sr_max_levels" default:"5" validate:"gte=1"`

	// Weights of the technical scorer, keyed by indicator name or name prefix
	Weights       map[string]float64 `yaml:"weights" validate:"dive,gte=0"`
	DefaultWeight float64            `yaml:"default_weight" default:"0.5" validate:"gte=0"`
	// FamilyWeights of the synthesizer's signed technical score
	FamilyWeights map[string]float64 `yaml:"family_weights" validate:"dive,gte=0"`
}

// RiskSettings are the global risk and confidence knobs
type RiskSettings struct {
	AccountBalance        float64 `yaml:"account_balance" default:"1000" validate:"gt=0"`
	MaxRiskPerTrade       float64 `yaml:"max_risk_per_trade" default:"2" validate:"gt=0,lte=10"`
	MaxLeverage           int     `yaml:"max_leverage" default:"5" validate:"gte=1,lte=125"`
	MinConfidence         float64 `yaml:"min_confidence" default:"70" validate:"gte=0,lte=100"`
	MinVolumeUSDT         float64 `yaml:"min_volume_usdt" default:"50000000" validate:"gte=0"`
	RiskCeiling           float64 `yaml:"risk_ceiling" default:"100" validate:"gt=0,lte=100"`
	RiskPerFactor         float64 `yaml:"risk_per_factor" default:"8" validate:"gte=0"`
	DivergenceThreshold   float64 `yaml:"divergence_threshold" default:"30" validate:"gte=0"`
	DivergencePenalty     float64 `yaml:"divergence_penalty" default:"0.5" validate:"gte=0"`
	RiskConfidencePenalty float64 `yaml:"risk_confidence_penalty" default:"0.2" validate:"gte=0"`
	ConfidenceFloor       float64 `yaml:"confidence_floor" default:"50" validate:"gte=0,lte=100"`
	HighConfidence        float64 `yaml:"high_confidence" default:"85" validate:"gte=0,lte=100"`
	HighConfidenceCut     float64 `yaml:"high_confidence_cut" default:"3" validate:"gte=0"`
	MinDirectionThreshold float64 `yaml:"min_direction_threshold" default:"12" validate:"gte=0"`
	FallbackATRPct        float64 `yaml:"fallback_atr_pct" default:"0.02" validate:"gt=0,lt=1"`
	OtherCategoryMinTier  string  `yaml:"other_category_min_tier" default:"BASIC" validate:"oneof=FREE BASIC PREMIUM VIP"`
	DefaultCooldownMin    int     `yaml:"default_cooldown_minutes" default:"45" validate:"gte=0"`
}

// CategoryPolicy is the per-category risk policy
type CategoryPolicy struct {
	DisplayName          string    `yaml:"display_name"`
	Members              []string  `yaml:"members"`
	TechnicalWeight      float64   `yaml:"technical_weight" default:"0.7" validate:"gte=0,lte=1"`
	FundamentalWeight    float64   `yaml:"fundamental_weight" default:"0.3" validate:"gte=0,lte=1"`
	BaseRisk             float64   `yaml:"base_risk" validate:"gte=0,lte=100"`
	MinConfidence        float64   `yaml:"min_confidence" default:"75" validate:"gte=0,lte=100"`
	MaxRisk              float64   `yaml:"max_risk" default:"70" validate:"gte=0,lte=100"`
	MinSignalStrength    float64   `yaml:"min_signal_strength" default:"20" validate:"gte=0,lte=100"`
	VolatilityThreshold  float64   `yaml:"volatility_threshold" default:"0.15" validate:"gt=0,lte=1"`
	VolatilityNormalizer float64   `yaml:"volatility_normalizer" default:"3" validate:"gt=0"`
	DirectionThreshold   float64   `yaml:"direction_threshold" default:"18" validate:"gte=0,lte=100"`
	MaxLeverage          int       `yaml:"max_leverage" default:"5" validate:"gte=1"`
	RiskMultiplier       float64   `yaml:"risk_multiplier" default:"0.8" validate:"gt=0,lte=2"`
	MaxStopDistance      float64   `yaml:"max_stop_distance" default:"0.10" validate:"gt=0,lt=1"`
	MaxPositionPct       float64   `yaml:"max_position_pct" default:"0.10" validate:"gt=0,lte=1"`
	ATRMultiplier        float64   `yaml:"atr_multiplier" default:"2" validate:"gt=0"`
	RiskReward           []float64 `yaml:"risk_reward" default:"[2.0,3.5]" validate:"len=2,dive,gt=0"`
	MinVolume            float64   `yaml:"min_volume" validate:"gte=0"`
	SwingHigh            float64   `yaml:"swing_high" default:"0.2" validate:"gt=0"`
	SwingHighRisk        float64   `yaml:"swing_high_risk" default:"25" validate:"gte=0"`
	SwingMid             float64   `yaml:"swing_mid" default:"0.1" validate:"gt=0,ltfield=SwingHigh"`
	SwingMidRisk         float64   `yaml:"swing_mid_risk" default:"10" validate:"gte=0"`
	Warning              string    `yaml:"warning"`
}

// PairOverride tightens the category policy for a single pair
type PairOverride struct {
	MaxLeverage         int     `yaml:"max_leverage" validate:"gte=0"`
	MinConfidence       float64 `yaml:"min_confidence" validate:"gte=0,lte=100"`
	VolatilityThreshold float64 `yaml:"volatility_threshold" validate:"gte=0,lte=1"`
	VolumeMultiplier    float64 `yaml:"min_volume_multiplier" default:"1" validate:"gt=0"`
}

// TierPolicy describes what a subscription tier may receive
type TierPolicy struct {
	DisplayName     string            `yaml:"display_name"`
	SignalsPerDay   int               `yaml:"signals_per_day" validate:"gte=-1"`
	Categories      []models.Category `yaml:"categories"`
	CooldownMinutes int               `yaml:"cooldown_minutes" validate:"gte=0"`
	Features        []string          `yaml:"features"`
	PriceUSD        float64           `yaml:"price_usd" validate:"gte=0"`
}

// Unlimited reports whether the tier has no daily cap
func (p TierPolicy) Unlimited() bool { return p.SignalsPerDay < 0 }

// Cooldown returns the duplicate suppression window
func (p TierPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownMinutes) * time.Minute
}

// Allows reports whether category is in the tier's allowed set
func (p TierPolicy) Allows(c models.Category) bool {
	return slices.Contains(p.Categories, c)
}

// HasFeature reports whether the tier includes a named feature
func (p TierPolicy) HasFeature(f string) bool {
	return slices.Contains(p.Features, f)
}

// Tables is the immutable view over a validated TablesSpec
type Tables struct {
	indicators IndicatorSettings
	risk       RiskSettings
	categories map[models.Category]CategoryPolicy
	members    map[string]models.Category
	pairs      map[string]PairOverride
	tiers      map[models.Tier]TierPolicy
}

// LoadTablesSpec returns the compiled-in tables, overridden by the YAML file at path when set
func LoadTablesSpec(path string) (TablesSpec, error) {
	spec := DefaultTablesSpec()
	if path == "" {
		return spec, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("reading tables file: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parsing tables file: %w", err)
	}
	if err := fillDefaults(&spec); err != nil {
		return spec, err
	}
	return spec, nil
}

func fillDefaults(spec *TablesSpec) error {
	if err := defaults.Set(&spec.Indicators); err != nil {
		return fmt.Errorf("indicator defaults: %w", err)
	}
	if err := defaults.Set(&spec.Risk); err != nil {
		return fmt.Errorf("risk defaults: %w", err)
	}
	for name, policy := range spec.Categories {
		if err := defaults.Set(&policy); err != nil {
			return fmt.Errorf("category %s defaults: %w", name, err)
		}
		spec.Categories[name] = policy
	}
	for symbol, override := range spec.Pairs {
		if err := defaults.Set(&override); err != nil {
			return fmt.Errorf("pair %s defaults: %w", symbol, err)
		}
		spec.Pairs[symbol] = override
	}
	return nil
}

// NewTables validates spec and freezes it. In test mode confidence minimums
// drop by 20 (floor 40), risk maxima rise by 15 and volume minimums shrink tenfold.
func NewTables(spec TablesSpec, testMode bool) (*Tables, error) {
	if err := validator.New().Struct(spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTables, err)
	}

	t := &Tables{
		indicators: spec.Indicators,
		risk:       spec.Risk,
		categories: make(map[models.Category]CategoryPolicy, len(spec.Categories)),
		members:    make(map[string]models.Category),
		pairs:      make(map[string]PairOverride, len(spec.Pairs)),
		tiers:      make(map[models.Tier]TierPolicy, len(spec.Tiers)),
	}

	for _, c := range models.Categories {
		if _, ok := spec.Categories[c]; !ok {
			return nil, fmt.Errorf("%w: category %q missing", ErrInvalidTables, c)
		}
	}

	for name, p := range spec.Categories {
		if math.Abs(p.TechnicalWeight+p.FundamentalWeight-1) > 0.001 {
			return nil, fmt.Errorf("%w: category %s weights must sum to 1", ErrInvalidTables, name)
		}
		if p.RiskReward[0] >= p.RiskReward[1] {
			return nil, fmt.Errorf("%w: category %s risk/reward must increase", ErrInvalidTables, name)
		}
		p.Members = slices.Clone(p.Members)
		p.RiskReward = slices.Clone(p.RiskReward)
		if testMode {
			p.MinConfidence = math.Max(p.MinConfidence-20, 40)
			p.MaxRisk = math.Min(p.MaxRisk+15, 100)
			p.MinVolume *= 0.1
		}
		t.categories[name] = p

		for _, m := range p.Members {
			symbol := NormalizeSymbol(m)
			if prev, dup := t.members[symbol]; dup && prev != name {
				return nil, fmt.Errorf("%w: %s listed in %s and %s", ErrInvalidTables, symbol, prev, name)
			}
			t.members[symbol] = name
		}
	}

	if testMode {
		t.risk.MinConfidence = math.Max(t.risk.MinConfidence-20, 40)
		t.risk.MinVolumeUSDT *= 0.1
	}

	for symbol, o := range spec.Pairs {
		if testMode && o.MinConfidence > 0 {
			o.MinConfidence = math.Max(o.MinConfidence-20, 40)
		}
		t.pairs[NormalizeSymbol(symbol)] = o
	}

	for _, tier := range models.Tiers {
		p, ok := spec.Tiers[tier]
		if !ok {
			return nil, fmt.Errorf("%w: tier %q missing", ErrInvalidTables, tier)
		}
		for _, c := range p.Categories {
			if _, ok := spec.Categories[c]; !ok {
				return nil, fmt.Errorf("%w: tier %s references unknown category %q", ErrInvalidTables, tier, c)
			}
		}
		p.Categories = slices.Clone(p.Categories)
		p.Features = slices.Clone(p.Features)
		t.tiers[tier] = p
	}

	t.indicators.EMAPeriods = slices.Clone(spec.Indicators.EMAPeriods)
	t.indicators.SMAPeriods = slices.Clone(spec.Indicators.SMAPeriods)
	t.indicators.Weights = cloneWeights(spec.Indicators.Weights)
	t.indicators.FamilyWeights = cloneWeights(spec.Indicators.FamilyWeights)

	return t, nil
}

// DefaultTables returns the compiled-in tables. It panics if they are invalid.
func DefaultTables() *Tables {
	t, err := NewTables(DefaultTablesSpec(), false)
	if err != nil {
		panic(err)
	}
	return t
}

// NormalizeSymbol upper-cases a pair and strips separators: "btc/usdt" -> "BTCUSDT"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "", "-", "", "_", "", ":", "").Replace(s)
}

// Indicators returns a copy of the indicator settings
func (t *Tables) Indicators() IndicatorSettings {
	s := t.indicators
	s.EMAPeriods = slices.Clone(s.EMAPeriods)
	s.SMAPeriods = slices.Clone(s.SMAPeriods)
	s.Weights = cloneWeights(s.Weights)
	s.FamilyWeights = cloneWeights(s.FamilyWeights)
	return s
}

// Risk returns the global risk settings
func (t *Tables) Risk() RiskSettings { return t.risk }

// Policy returns the policy of a category, falling back to other
func (t *Tables) Policy(c models.Category) CategoryPolicy {
	p, ok := t.categories[c]
	if !ok {
		p = t.categories[models.CategoryOther]
	}
	p.Members = slices.Clone(p.Members)
	p.RiskReward = slices.Clone(p.RiskReward)
	return p
}

// MemberOf looks up the category a pair is listed under
func (t *Tables) MemberOf(symbol string) (models.Category, bool) {
	c, ok := t.members[NormalizeSymbol(symbol)]
	return c, ok
}

// MinVolume returns the minimum 24h turnover of a category
func (t *Tables) MinVolume(c models.Category) float64 {
	if v := t.Policy(c).MinVolume; v > 0 {
		return v
	}
	return t.risk.MinVolumeUSDT
}

// PairOverride returns pair specific settings if any
func (t *Tables) PairOverride(symbol string) (PairOverride, bool) {
	o, ok := t.pairs[NormalizeSymbol(symbol)]
	return o, ok
}

// Tier returns the policy of a subscription tier
func (t *Tables) Tier(tier models.Tier) (TierPolicy, bool) {
	p, ok := t.tiers[tier]
	if !ok {
		return TierPolicy{}, false
	}
	p.Categories = slices.Clone(p.Categories)
	p.Features = slices.Clone(p.Features)
	return p, true
}

// OtherCategoryMinTier is the lowest tier allowed to receive "other" signals
func (t *Tables) OtherCategoryMinTier() models.Tier {
	return models.Tier(t.risk.OtherCategoryMinTier)
}

// Symbols returns every listed pair of a category, sorted
func (t *Tables) Symbols(c models.Category) []string {
	var out []string
	for s, cat := range t.members {
		if cat == c {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func cloneWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
