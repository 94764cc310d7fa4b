package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fxexecutor/src/database"
	"fxexecutor/src/model"
)

// BrokerConfigRepository stores encrypted broker credentials.
type BrokerConfigRepository struct {
	db *gorm.DB
}

// NewBrokerConfigRepository creates a new repository instance using the main
// read/write database.
func NewBrokerConfigRepository() *BrokerConfigRepository {
	return &BrokerConfigRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *BrokerConfigRepository) WithDB(db *gorm.DB) *BrokerConfigRepository {
	return &BrokerConfigRepository{db: db}
}

// Upsert inserts or replaces the stored credentials for a broker account.
func (r *BrokerConfigRepository) Upsert(ctx context.Context, config *model.BrokerConfig) error {
	logger.WithFields(map[string]interface{}{
		"repo":              "BrokerConfigRepository",
		"op":                "Upsert",
		"broker_account_id": config.BrokerAccountID,
		"environment":       config.Environment,
	}).Debug("Upserting broker config")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "broker_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"api_key_hash",
				"environment",
				"is_active",
				"updated_at",
			}),
		}).
		Create(config).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":              "BrokerConfigRepository",
			"op":                "Upsert",
			"broker_account_id": config.BrokerAccountID,
		}).WithError(err).Error("Failed to upsert broker config")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":              "BrokerConfigRepository",
		"op":                "Upsert",
		"broker_account_id": config.BrokerAccountID,
	}).Info("Broker config stored")

	return nil
}

// FindActive returns the active credential row.
// Returns (nil, nil) when none is configured.
func (r *BrokerConfigRepository) FindActive(ctx context.Context) (*model.BrokerConfig, error) {
	var config model.BrokerConfig

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("updated_at DESC").
		First(&config).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "BrokerConfigRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active broker config")

		return nil, err
	}

	return &config, nil
}

// TouchLastUsed stamps the credential row after a successful broker call.
func (r *BrokerConfigRepository) TouchLastUsed(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&model.BrokerConfig{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now().UTC()).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "BrokerConfigRepository",
			"op":        "TouchLastUsed",
			"config_id": id,
		}).WithError(err).Error("Failed to stamp broker config usage")

		return err
	}

	return nil
}
