package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fxexecutor/src/database"
	"fxexecutor/src/model"
)

// SettingsRepository manages the singleton trading settings row.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new repository instance using the main
// read/write database.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *SettingsRepository) WithDB(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrCreate fetches the settings row, seeding the defaults on first call.
func (r *SettingsRepository) GetOrCreate(ctx context.Context) (*model.TradingSettings, error) {
	var settings model.TradingSettings

	err := r.db.WithContext(ctx).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithFields(map[string]interface{}{
			"repo": "SettingsRepository",
			"op":   "GetOrCreate",
		}).WithError(err).Error("Failed to fetch trading settings")

		return nil, err
	}

	settings = model.TradingSettings{
		AutoTradingEnabled:  true,
		MaxConcurrentTrades: 5,
		RiskPerTrade:        2.0,
	}

	if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SettingsRepository",
			"op":   "GetOrCreate",
		}).WithError(err).Error("Failed to seed trading settings")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "SettingsRepository",
		"op":   "GetOrCreate",
	}).Info("Seeded default trading settings")

	return &settings, nil
}

// SetAutoTrading flips the kill switch. The scheduler reads it at the top of
// every cycle, so the change takes effect within one period.
func (r *SettingsRepository) SetAutoTrading(ctx context.Context, enabled bool) error {
	settings, err := r.GetOrCreate(ctx)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).
		Model(&model.TradingSettings{}).
		Where("id = ?", settings.ID).
		Update("auto_trading_enabled", enabled).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "SettingsRepository",
			"op":      "SetAutoTrading",
			"enabled": enabled,
		}).WithError(err).Error("Failed to update auto trading flag")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "SettingsRepository",
		"op":      "SetAutoTrading",
		"enabled": enabled,
	}).Info("Auto trading flag updated")

	return nil
}
