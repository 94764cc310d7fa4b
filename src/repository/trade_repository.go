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

// TradeRepository handles read/write operations for broker-confirmed trades.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main
// read/write database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade record after the broker confirmed a fill.
func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	logger.WithFields(map[string]interface{}{
		"repo":            "TradeRepository",
		"op":              "Create",
		"broker_trade_id": trade.BrokerTradeID,
		"symbol":          trade.Symbol,
		"units":           trade.Units,
	}).Debug("Creating new trade")

	err := r.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":            "TradeRepository",
			"op":              "Create",
			"broker_trade_id": trade.BrokerTradeID,
		}).WithError(err).Error("Failed to create trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"trade_id": trade.ID,
	}).Info("Trade created successfully")

	return nil
}

// FindByID fetches a trade by primary key. Returns (nil, nil) if not found.
func (r *TradeRepository) FindByID(ctx context.Context, id uint) (*model.Trade, error) {
	var trade model.Trade

	err := r.db.WithContext(ctx).First(&trade, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "FindByID",
			"trade_id": id,
		}).WithError(err).Error("Failed to fetch trade by ID")

		return nil, err
	}

	return &trade, nil
}

// FindByBrokerTradeID fetches a trade by the broker-assigned identifier.
// Returns (nil, nil) if not found.
func (r *TradeRepository) FindByBrokerTradeID(ctx context.Context, brokerTradeID string) (*model.Trade, error) {
	var trade model.Trade

	err := r.db.WithContext(ctx).
		Where("broker_trade_id = ?", brokerTradeID).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":            "TradeRepository",
			"op":              "FindByBrokerTradeID",
			"broker_trade_id": brokerTradeID,
		}).WithError(err).Error("Failed to fetch trade by broker trade ID")

		return nil, err
	}

	return &trade, nil
}

// FindOpen returns all trades still open at the broker.
func (r *TradeRepository) FindOpen(ctx context.Context) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("status = ?", model.TradeStatusOpen).
		Order("id ASC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindOpen",
		}).WithError(err).Error("Failed to fetch open trades")

		return nil, err
	}

	return trades, nil
}

// FindLatest returns the latest trades in any status, newest first.
func (r *TradeRepository) FindLatest(ctx context.Context, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest trades")

		return nil, err
	}

	return trades, nil
}

// CountOpen counts trades still open, used to enforce the concurrent trade
// limit before placement.
func (r *TradeRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("status = ?", model.TradeStatusOpen).
		Count(&count).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "CountOpen",
		}).WithError(err).Error("Failed to count open trades")

		return 0, err
	}

	return count, nil
}

// UpdatePrice stores the latest mark price and derived PnL for an open trade.
func (r *TradeRepository) UpdatePrice(ctx context.Context, id uint, currentPrice, pnl, pnlPercentage float64) error {
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_price":  currentPrice,
			"pnl":            pnl,
			"pnl_percentage": pnlPercentage,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "UpdatePrice",
			"trade_id": id,
		}).WithError(err).Error("Failed to update trade price")

		return err
	}

	return nil
}

// UpdateProtection stores backfilled stop-loss and take-profit levels.
func (r *TradeRepository) UpdateProtection(ctx context.Context, id uint, stopLoss, takeProfit *float64) error {
	updates := map[string]interface{}{}
	if stopLoss != nil {
		updates["stop_loss"] = *stopLoss
	}
	if takeProfit != nil {
		updates["take_profit"] = *takeProfit
	}
	if len(updates) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Updates(updates).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "UpdateProtection",
			"trade_id": id,
		}).WithError(err).Error("Failed to update trade protection")

		return err
	}

	return nil
}

// MarkClosed transitions a trade to CLOSED and records the close price,
// realized PnL and close time.
func (r *TradeRepository) MarkClosed(ctx context.Context, id uint, closePrice, realizedPnl float64, closedAt time.Time) error {
	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "MarkClosed",
		"trade_id":    id,
		"close_price": closePrice,
	}).Debug("Marking trade closed")

	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.TradeStatusClosed,
			"close_price": closePrice,
			"pnl":         realizedPnl,
			"closed_at":   closedAt,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "MarkClosed",
			"trade_id": id,
		}).WithError(err).Error("Failed to mark trade closed")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "MarkClosed",
		"trade_id": id,
	}).Info("Trade closed successfully")

	return nil
}
