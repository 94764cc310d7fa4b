package model

import "time"

// Account is the single broker account snapshot, upserted on every refresh.
type Account struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BrokerAccountID string    `gorm:"size:50;uniqueIndex;not null" json:"broker_account_id"`
	Balance         float64   `gorm:"not null" json:"balance"`
	UnrealizedPnl   float64   `gorm:"not null;default:0" json:"unrealized_pnl"`
	RealizedPnl     float64   `gorm:"not null;default:0" json:"realized_pnl"`
	MarginUsed      float64   `gorm:"not null;default:0" json:"margin_used"`
	MarginAvailable float64   `gorm:"not null;default:0" json:"margin_available"`
	Currency        string    `gorm:"size:10;default:USD" json:"currency"`
	CapturedAt      time.Time `json:"captured_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
