package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fxexecutor/src/database"
	"fxexecutor/src/model"
)

// AccountRepository stores the broker account snapshot.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new repository instance using the main
// read/write database.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *AccountRepository) WithDB(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert inserts the snapshot or, when a row for the broker account already
// exists, overwrites its figures in place.
func (r *AccountRepository) Upsert(ctx context.Context, account *model.Account) error {
	logger.WithFields(map[string]interface{}{
		"repo":              "AccountRepository",
		"op":                "Upsert",
		"broker_account_id": account.BrokerAccountID,
	}).Debug("Upserting account snapshot")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "broker_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"balance",
				"unrealized_pnl",
				"realized_pnl",
				"margin_used",
				"margin_available",
				"currency",
				"captured_at",
				"updated_at",
			}),
		}).
		Create(account).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":              "AccountRepository",
			"op":                "Upsert",
			"broker_account_id": account.BrokerAccountID,
		}).WithError(err).Error("Failed to upsert account snapshot")

		return err
	}

	return nil
}

// FindLatest returns the most recently captured snapshot.
// Returns (nil, nil) when no snapshot has been stored yet.
func (r *AccountRepository) FindLatest(ctx context.Context) (*model.Account, error) {
	var account model.Account

	err := r.db.WithContext(ctx).
		Order("captured_at DESC").
		First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "AccountRepository",
			"op":   "FindLatest",
		}).WithError(err).Error("Failed to fetch account snapshot")

		return nil, err
	}

	return &account, nil
}
