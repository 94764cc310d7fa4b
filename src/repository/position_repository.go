package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fxexecutor/src/database"
	"fxexecutor/src/model"
)

// PositionRepository stores broker position snapshots.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main
// read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// ReplaceAll swaps the whole snapshot in one transaction: delete every row,
// then insert the new set. Readers never observe a half-replaced table.
func (r *PositionRepository) ReplaceAll(ctx context.Context, positions []model.Position) error {
	logger.WithFields(map[string]interface{}{
		"repo":  "PositionRepository",
		"op":    "ReplaceAll",
		"count": len(positions),
	}).Debug("Replacing position snapshot")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Position{}).Error; err != nil {
			return err
		}
		if len(positions) == 0 {
			return nil
		}
		return tx.Create(&positions).Error
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ReplaceAll",
		}).WithError(err).Error("Failed to replace position snapshot")

		return err
	}

	return nil
}

// FindAll returns the current snapshot ordered by symbol.
func (r *PositionRepository) FindAll(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Order("symbol ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindAll",
		}).WithError(err).Error("Failed to fetch positions")

		return nil, err
	}

	return positions, nil
}
