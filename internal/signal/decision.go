package signal

import (
	"github.com/Alias1177/SignalBot/models"
)

// Status is the terminal state of one synthesis
type Status string

const (
	StatusNoData   Status = "NO_DATA"
	StatusRejected Status = "REJECTED"
	StatusNeutral  Status = "NEUTRAL"
	StatusEmitted  Status = "EMITTED"
)

// Stage names the step that produced a non-emitted decision
type Stage string

const (
	StageData       Stage = "data"
	StageVolume     Stage = "volume"
	StageConfidence Stage = "confidence"
	StageRisk       Stage = "risk"
	StageStrength   Stage = "strength"
	StageVolatility Stage = "volatility"
	StageDirection  Stage = "direction"
	StageStopLoss   Stage = "stop_loss"
	StageTakeProfit Stage = "take_profit"
	StageEmitted    Stage = "emitted"
)

// Metrics are the intermediate scores of a synthesis
type Metrics struct {
	Category         models.Category `json:"category"`
	TechnicalScore   float64         `json:"technical_score"`
	FundamentalScore float64         `json:"fundamental_score"`
	CombinedScore    float64         `json:"combined_score"`
	RiskScore        float64         `json:"risk_score"`
	VolatilityFactor float64         `json:"volatility_factor"`
	Threshold        float64         `json:"threshold"`
	MarketCondition  string          `json:"market_condition"`
}

// Decision is the outcome of one synthesis. Signal is set only when Emitted.
type Decision struct {
	Symbol  string                `json:"symbol"`
	Status  Status                `json:"status"`
	Stage   Stage                 `json:"stage"`
	Reason  string                `json:"reason,omitempty"`
	Metrics Metrics               `json:"metrics"`
	Signal  *models.TradingSignal `json:"signal,omitempty"`
}

// Emitted reports whether a trading signal was produced
func (d Decision) Emitted() bool {
	return d.Status == StatusEmitted && d.Signal != nil
}
