package model

import "time"

const (
	TradeStatusOpen      = "OPEN"
	TradeStatusClosed    = "CLOSED"
	TradeStatusCancelled = "CANCELLED"
)

// Trade mirrors a broker-confirmed position. Units are signed by direction
// (negative for SELL). Price/PnL fields are refreshed by the reconciler;
// status only ever moves OPEN -> CLOSED.
type Trade struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	BrokerTradeID string     `gorm:"size:50;uniqueIndex;not null" json:"broker_trade_id"`
	SignalID      *uint      `gorm:"index" json:"signal_id,omitempty"`
	Symbol        string     `gorm:"size:20;index;not null" json:"symbol"`
	Action        string     `gorm:"size:10;not null" json:"action"`
	Units         int        `gorm:"not null" json:"units"`
	EntryPrice    float64    `gorm:"not null" json:"entry_price"`
	StopLoss      *float64   `json:"stop_loss,omitempty"`
	TakeProfit    *float64   `json:"take_profit,omitempty"`
	CurrentPrice  *float64   `json:"current_price,omitempty"`
	Pnl           float64    `gorm:"not null;default:0" json:"pnl"`
	PnlPercentage float64    `gorm:"not null;default:0" json:"pnl_percentage"`
	Status        string     `gorm:"size:20;index;not null;default:OPEN" json:"status"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ClosePrice    *float64   `json:"close_price,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}
