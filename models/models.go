package models

import (
	"time"
)

// Candle represents a single OHLCV bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Ticker is a 24h snapshot of a linear perpetual contract.
// Absent fields are left at zero by the market data client.
type Ticker struct {
	Symbol        string    `json:"symbol"`
	LastPrice     float64   `json:"lastPrice"`
	HighPrice24h  float64   `json:"highPrice24h"`
	LowPrice24h   float64   `json:"lowPrice24h"`
	Turnover24h   float64   `json:"turnover24h"`
	Volume24h     float64   `json:"volume24h"`
	Price24hPcnt  float64   `json:"price24hPcnt"`
	Bid1Price     float64   `json:"bid1Price"`
	Ask1Price     float64   `json:"ask1Price"`
	FundingRate   float64   `json:"fundingRate"`
	OpenInterest  float64   `json:"openInterest"`
	NextFundingAt time.Time `json:"nextFundingTime,omitempty"`
}

// FundingRate is the latest settled funding rate
type FundingRate struct {
	Symbol    string    `json:"symbol"`
	Rate      float64   `json:"fundingRate"`
	Timestamp time.Time `json:"fundingRateTimestamp"`
}

// OpenInterestPoint is one sample of an open-interest series
type OpenInterestPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	OpenInterest float64   `json:"openInterest"`
}

// MarketSnapshot bundles everything fetched for one symbol in one cycle
type MarketSnapshot struct {
	Symbol       string
	Timeframe    string
	Candles      []Candle
	Ticker       *Ticker
	Funding      *FundingRate
	OpenInterest []OpenInterestPoint
	FetchedAt    time.Time
}

// Direction of a signal
type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Neutral Direction = "NEUTRAL"
)

// Sign returns +1 for BUY, -1 for SELL and 0 otherwise
func (d Direction) Sign() float64 {
	switch d {
	case Buy:
		return 1
	case Sell:
		return -1
	}
	return 0
}

// Impact is the aggregation weight tier of a fundamental signal
type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// IndicatorSignal is the verdict of one technical indicator
type IndicatorSignal struct {
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	Direction   Direction `json:"signal"`
	Strength    float64   `json:"strength"`
	Description string    `json:"description"`
}

// FundamentalSignal is an IndicatorSignal with an impact tier
type FundamentalSignal struct {
	IndicatorSignal
	Impact Impact `json:"impact"`
}

// PriceTargets are the volatility based targets of a technical result
type PriceTargets struct {
	Target1 float64 `json:"target_1"`
	Target2 float64 `json:"target_2"`
}

// TechnicalResult is the aggregated output of the technical scorer
type TechnicalResult struct {
	Symbol           string            `json:"symbol"`
	Timeframe        string            `json:"timeframe"`
	Timestamp        time.Time         `json:"timestamp"`
	Signals          []IndicatorSignal `json:"signals"`
	OverallSignal    Direction         `json:"overall_signal"`
	Confidence       float64           `json:"confidence"`
	PriceTargets     PriceTargets      `json:"price_targets"`
	StopLoss         float64           `json:"stop_loss"`
	SupportLevels    []float64         `json:"support_levels"`
	ResistanceLevels []float64         `json:"resistance_levels"`
}

// Sentiment of the derivatives market
type Sentiment string

const (
	Bullish          Sentiment = "BULLISH"
	Bearish          Sentiment = "BEARISH"
	NeutralSentiment Sentiment = "NEUTRAL"
)

// FundamentalResult is the aggregated output of the fundamental scorer
type FundamentalResult struct {
	Symbol          string              `json:"symbol"`
	Timestamp       time.Time           `json:"timestamp"`
	Signals         []FundamentalSignal `json:"signals"`
	OverallSignal   Direction           `json:"overall_signal"`
	Confidence      float64             `json:"confidence"`
	RiskFactors     []string            `json:"risk_factors"`
	MarketSentiment Sentiment           `json:"market_sentiment"`
}

// Category groups trading pairs that share a risk policy
type Category string

const (
	CategoryMajor     Category = "major"
	CategoryDefi      Category = "defi"
	CategoryLayer1    Category = "layer1"
	CategoryMeme      Category = "meme"
	CategoryGamingNFT Category = "gaming_nft"
	CategoryEmerging  Category = "emerging"
	CategoryAltcoins  Category = "altcoins"
	CategoryOther     Category = "other"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryMajor, CategoryDefi, CategoryLayer1, CategoryMeme,
	CategoryGamingNFT, CategoryEmerging, CategoryAltcoins, CategoryOther,
}

// TradingSignal is the emitted, immutable trade proposal
type TradingSignal struct {
	ID                 string    `json:"id"`
	Symbol             string    `json:"symbol"`
	SignalType         Direction `json:"signal_type"`
	EntryPrice         float64   `json:"entry_price"`
	StopLoss           float64   `json:"stop_loss"`
	TakeProfit1        float64   `json:"take_profit_1"`
	TakeProfit2        float64   `json:"take_profit_2,omitempty"`
	Leverage           int       `json:"leverage"`
	Confidence         float64   `json:"confidence"`
	RiskScore          float64   `json:"risk_score"`
	RiskAmount         float64   `json:"risk_amount"`
	PositionSize       float64   `json:"position_size"`
	TechnicalSummary   string    `json:"technical_summary"`
	FundamentalSummary string    `json:"fundamental_summary"`
	RiskFactors        []string  `json:"risk_factors"`
	MarketCondition    string    `json:"market_condition"`
	Timestamp          time.Time `json:"timestamp"`
	Category           Category  `json:"category"`
}

// StopDistance returns |entry - stop| / entry
func (s *TradingSignal) StopDistance() float64 {
	if s.EntryPrice == 0 {
		return 0
	}
	d := s.EntryPrice - s.StopLoss
	if d < 0 {
		d = -d
	}
	return d / s.EntryPrice
}

// Tier is a subscription level
type Tier string

const (
	TierFree    Tier = "FREE"
	TierBasic   Tier = "BASIC"
	TierPremium Tier = "PREMIUM"
	TierVIP     Tier = "VIP"
)

// Tiers lists every tier from lowest to highest
var Tiers = []Tier{TierFree, TierBasic, TierPremium, TierVIP}

// Rank orders tiers, unknown tiers rank below FREE
func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// Subscription is the persisted state of a chat receiving signals
type Subscription struct {
	ChatID               int64      `json:"chat_id"`
	Username             string     `json:"username"`
	Tier                 Tier       `json:"tier"`
	IsAdmin              bool       `json:"is_admin"`
	Active               bool       `json:"active"`
	SignalsSentToday     int        `json:"signals_sent_today"`
	LastSignalAt         *time.Time `json:"last_signal_at,omitempty"`
	LastReset            string     `json:"last_reset"`
	SubscribedAt         time.Time  `json:"subscribed_at"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
}

// TPResult is the outcome of a tracked signal
type TPResult string

const (
	TPPending TPResult = "PENDING"
	TPHitTP1  TPResult = "TP1_HIT"
	TPHitTP2  TPResult = "TP2_HIT"
	TPHitSL   TPResult = "SL_HIT"
	TPExpired TPResult = "EXPIRED"
)

// TPTracking follows an emitted signal until a target, the stop or expiry
type TPTracking struct {
	ID           string     `json:"id"`
	SignalID     string     `json:"signal_id"`
	Symbol       string     `json:"symbol"`
	SignalType   Direction  `json:"signal_type"`
	EntryPrice   float64    `json:"entry_price"`
	TakeProfit1  float64    `json:"tp1_price"`
	TakeProfit2  float64    `json:"tp2_price"`
	StopLoss     float64    `json:"stop_loss"`
	Confidence   float64    `json:"confidence"`
	StartedAt    time.Time  `json:"signal_time"`
	TP1Reached   bool       `json:"tp1_reached"`
	TP1At        *time.Time `json:"tp1_time,omitempty"`
	TP2Reached   bool       `json:"tp2_reached"`
	TP2At        *time.Time `json:"tp2_time,omitempty"`
	SLReached    bool       `json:"sl_reached"`
	SLAt         *time.Time `json:"sl_time,omitempty"`
	MaxProfitPct float64    `json:"max_profit_pct"`
	MaxLossPct   float64    `json:"max_loss_pct"`
	Active       bool       `json:"is_active"`
	Result       TPResult   `json:"final_result"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// TPStats summarises closed trackings
type TPStats struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	Closed        int     `json:"closed"`
	TP1Hits       int     `json:"tp1_hits"`
	TP2Hits       int     `json:"tp2_hits"`
	SLHits        int     `json:"sl_hits"`
	Expired       int     `json:"expired"`
	SuccessRate   float64 `json:"success_rate"`
	AvgMinutesTP1 float64 `json:"avg_minutes_tp1"`
	FastestTP1    float64 `json:"fastest_tp1_minutes"`
	SlowestTP1    float64 `json:"slowest_tp1_minutes"`
}
