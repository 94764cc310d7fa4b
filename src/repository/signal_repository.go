package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fxexecutor/src/database"
	"fxexecutor/src/model"
)

// SignalRepository handles read/write operations for parsed trade signals.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository instance using the main
// read/write database.
func NewSignalRepository() *SignalRepository {
	return &SignalRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a new signal. A duplicate source id surfaces as
// gorm.ErrDuplicatedKey (TranslateError is on), which callers treat as
// idempotent success.
func (r *SignalRepository) Create(ctx context.Context, signal *model.Signal) error {
	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "Create",
		"source_id": signal.SourceID,
		"symbol":    signal.Symbol,
		"action":    signal.Action,
	}).Debug("Creating new signal")

	err := r.db.WithContext(ctx).Create(signal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "Create",
			"source_id": signal.SourceID,
		}).WithError(err).Error("Failed to create signal")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "Create",
		"signal_id": signal.ID,
	}).Info("Signal created successfully")

	return nil
}

// FindBySourceID fetches a signal by its dedup key.
// Returns (nil, nil) if not found.
func (r *SignalRepository) FindBySourceID(ctx context.Context, sourceID string) (*model.Signal, error) {
	var signal model.Signal

	err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		First(&signal).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "FindBySourceID",
			"source_id": sourceID,
		}).WithError(err).Error("Failed to fetch signal by source ID")

		return nil, err
	}

	return &signal, nil
}

// FindUnprocessed returns pending signals ordered oldest first so placement
// follows arrival order.
func (r *SignalRepository) FindUnprocessed(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 100
	}

	var signals []model.Signal

	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SignalRepository",
			"op":    "FindUnprocessed",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch unprocessed signals")

		return nil, err
	}

	return signals, nil
}

// FindLatest returns the latest signals ordered from newest to oldest.
func (r *SignalRepository) FindLatest(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 50
	}

	var signals []model.Signal

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SignalRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest signals")

		return nil, err
	}

	return signals, nil
}

// MarkProcessed flips the processed flag exactly once and records the final
// status (placed, skipped or failed).
func (r *SignalRepository) MarkProcessed(ctx context.Context, id uint, status string) error {
	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "MarkProcessed",
		"signal_id": id,
		"status":    status,
	}).Debug("Marking signal processed")

	now := time.Now().UTC()

	err := r.db.WithContext(ctx).
		Model(&model.Signal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":    true,
			"status":       status,
			"processed_at": now,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "MarkProcessed",
			"signal_id": id,
		}).WithError(err).Error("Failed to mark signal processed")

		return err
	}

	return nil
}

// RecordFailedAttempt bumps the retry counter after a failed placement,
// leaving the signal unprocessed so the next cycle retries it.
func (r *SignalRepository) RecordFailedAttempt(ctx context.Context, id uint, retryCount int) error {
	err := r.db.WithContext(ctx).
		Model(&model.Signal{}).
		Where("id = ?", id).
		Update("retry_count", retryCount).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "SignalRepository",
			"op":          "RecordFailedAttempt",
			"signal_id":   id,
			"retry_count": retryCount,
		}).WithError(err).Error("Failed to record placement attempt")

		return err
	}

	return nil
}
