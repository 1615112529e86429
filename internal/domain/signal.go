package domain

import "time"

// SignalDirection is the trade side derived from a pattern direction.
type SignalDirection string

const (
	Long  SignalDirection = "long"
	Short SignalDirection = "short"
)

// SignalDirectionFor maps a pattern bias to a trade side.
func SignalDirectionFor(d Direction) SignalDirection {
	if d == Bullish {
		return Long
	}
	return Short
}

// SignalStatus advances pending -> notified exactly once.
type SignalStatus string

const (
	SignalPending  SignalStatus = "pending"
	SignalNotified SignalStatus = "notified"
)

// TradingLevels are the risk-managed trade levels computed for a pattern.
// Derived on demand from zone geometry plus ATR/swing context, never stored
// as authoritative state.
type TradingLevels struct {
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stopLoss"`
	TakeProfit1 float64 `json:"takeProfit1"`
	TakeProfit2 float64 `json:"takeProfit2"`
	TakeProfit3 float64 `json:"takeProfit3"`
	Risk        float64 `json:"risk"`
	RiskReward1 float64 `json:"riskReward1"`
	RiskReward2 float64 `json:"riskReward2"`
	RiskReward3 float64 `json:"riskReward3"`
}

// Signal is a persisted, risk-managed trade signal produced by a qualifying
// confluence event.
type Signal struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Direction         SignalDirection `json:"direction"`
	Entry             float64         `json:"entry"`
	StopLoss          float64         `json:"stopLoss"`
	TakeProfit1       float64         `json:"takeProfit1"`
	TakeProfit2       float64         `json:"takeProfit2"`
	TakeProfit3       float64         `json:"takeProfit3"`
	RiskReward        float64         `json:"riskReward"`
	ConfluenceScore   int             `json:"confluenceScore"`
	AlignedTimeframes string          `json:"alignedTimeframes"` // JSON-encoded ordered list
	PatternID         string          `json:"patternId"`
	Status            SignalStatus    `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	NotifiedAt        *time.Time      `json:"notifiedAt,omitempty"`
}
