package controller

import (
	"context"
	"time"

	"fxexecutor/src/connectors"
	"fxexecutor/src/model"
)

// Broker is the slice of the OANDA client the controllers need. Declared on
// the consumer side so tests can stub the broker without HTTP.
type Broker interface {
	GetPrice(ctx context.Context, symbol string) (*connectors.Price, error)
	PlaceMarketOrder(ctx context.Context, symbol string, units int, stopLoss, takeProfit *float64) (*connectors.OrderFill, error)
	CloseTrade(ctx context.Context, tradeID string) (*connectors.CloseResult, error)
	SetTradeProtection(ctx context.Context, tradeID, symbol string, stopLoss, takeProfit *float64) error
	GetAccount(ctx context.Context) (*connectors.AccountSummary, error)
	ListOpenTrades(ctx context.Context) ([]connectors.BrokerTrade, error)
	ListPositions(ctx context.Context) ([]connectors.BrokerPosition, error)
}

// SignalStore is the signal repository surface used during placement.
type SignalStore interface {
	FindUnprocessed(ctx context.Context, limit int) ([]model.Signal, error)
	MarkProcessed(ctx context.Context, id uint, status string) error
	RecordFailedAttempt(ctx context.Context, id uint, retryCount int) error
}

// TradeStore is the trade repository surface used by placement and
// reconciliation.
type TradeStore interface {
	Create(ctx context.Context, trade *model.Trade) error
	FindByID(ctx context.Context, id uint) (*model.Trade, error)
	FindByBrokerTradeID(ctx context.Context, brokerTradeID string) (*model.Trade, error)
	FindOpen(ctx context.Context) ([]model.Trade, error)
	CountOpen(ctx context.Context) (int64, error)
	UpdatePrice(ctx context.Context, id uint, currentPrice, pnl, pnlPercentage float64) error
	UpdateProtection(ctx context.Context, id uint, stopLoss, takeProfit *float64) error
	MarkClosed(ctx context.Context, id uint, closePrice, realizedPnl float64, closedAt time.Time) error
}

// PositionStore replaces the position snapshot wholesale.
type PositionStore interface {
	ReplaceAll(ctx context.Context, positions []model.Position) error
}

// AccountStore upserts the account snapshot.
type AccountStore interface {
	Upsert(ctx context.Context, account *model.Account) error
}
