package model

import "time"

// Position is a snapshot of broker-side net exposure per instrument. The
// whole table is replaced on every reconciliation pass; rows never update in
// place.
type Position struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Symbol        string    `gorm:"size:20;index;not null" json:"symbol"`
	LongUnits     int       `gorm:"not null;default:0" json:"long_units"`
	ShortUnits    int       `gorm:"not null;default:0" json:"short_units"`
	LongAvgPrice  *float64  `json:"long_avg_price,omitempty"`
	ShortAvgPrice *float64  `json:"short_avg_price,omitempty"`
	UnrealizedPnl float64   `gorm:"not null;default:0" json:"unrealized_pnl"`
	MarginUsed    float64   `gorm:"not null;default:0" json:"margin_used"`
	CapturedAt    time.Time `json:"captured_at"`
}

func (Position) TableName() string {
	return "positions"
}
