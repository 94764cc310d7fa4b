package model

import "time"

const (
	SignalActionBuy  = "BUY"
	SignalActionSell = "SELL"
)

const (
	SignalOriginDiscord     = "DISCORD"
	SignalOriginTradingView = "TRADINGVIEW"
	SignalOriginManual      = "MANUAL"
	SignalOriginTest        = "TEST"
)

const (
	SignalStatusPending = "pending"
	SignalStatusPlaced  = "placed"
	SignalStatusFailed  = "failed"
	SignalStatusSkipped = "skipped"
)

// Signal is a parsed trade instruction waiting for (or done with) execution.
// SourceID is the dedup key: one row per raw message or webhook delivery.
type Signal struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SourceID    string     `gorm:"size:100;uniqueIndex;not null" json:"source_id"`
	Symbol      string     `gorm:"size:20;not null" json:"symbol"`
	Action      string     `gorm:"size:10;not null" json:"action"`
	EntryPrice  *float64   `json:"entry_price,omitempty"`
	StopLoss    *float64   `json:"stop_loss,omitempty"`
	TakeProfit  *float64   `json:"take_profit,omitempty"`
	LotSize     float64    `json:"lot_size"`
	Origin      string     `gorm:"size:20;index;not null" json:"origin"`
	Confidence  *float64   `json:"confidence,omitempty"` // stored as 0..1 fraction
	RawMessage  string     `gorm:"type:text" json:"raw_message"`
	ReceivedAt  time.Time  `json:"received_at"`
	Processed   bool       `gorm:"index;not null;default:false" json:"processed"`
	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	Status      string     `gorm:"size:20;not null;default:pending" json:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Signal) TableName() string {
	return "signals"
}
