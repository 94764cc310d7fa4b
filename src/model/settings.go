package model

import "time"

// TradingSettings is a singleton row read at the top of every scheduler cycle.
// It is never cached in process so dashboard toggles take effect on the next
// cycle.
type TradingSettings struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	AutoTradingEnabled  bool      `gorm:"not null;default:true" json:"auto_trading_enabled"`
	MaxConcurrentTrades int       `gorm:"not null;default:5" json:"max_concurrent_trades"`
	RiskPerTrade        float64   `gorm:"not null;default:2.0" json:"risk_per_trade"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (TradingSettings) TableName() string {
	return "trading_settings"
}
