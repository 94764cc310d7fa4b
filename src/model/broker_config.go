package model

import "time"

// BrokerConfig stores broker credentials at rest. APIKeyHash is the
// secretbox-encrypted API key, never the plaintext.
type BrokerConfig struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BrokerAccountID string     `gorm:"size:50;uniqueIndex;not null" json:"broker_account_id"`
	APIKeyHash      string     `gorm:"type:text;not null" json:"-"`
	Environment     string     `gorm:"size:20;not null;default:practice" json:"environment"` // practice or live
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (BrokerConfig) TableName() string {
	return "broker_configs"
}
