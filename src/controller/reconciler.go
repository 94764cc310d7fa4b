package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fxexecutor/src/connectors"
	"fxexecutor/src/model"
	"fxexecutor/src/risk"
)

// Reconciler keeps the local mirror in step with the broker: trade marks,
// protective levels, the account snapshot and the position table.
type Reconciler struct {
	logger     *logrus.Entry
	broker     Broker
	trades     TradeStore
	positions  PositionStore
	accounts   AccountStore
	protection risk.ProtectionConfig
	now        func() time.Time
}

func NewReconciler(logger *logrus.Entry, broker Broker, trades TradeStore, positions PositionStore, accounts AccountStore) *Reconciler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Reconciler{
		logger:     logger,
		broker:     broker,
		trades:     trades,
		positions:  positions,
		accounts:   accounts,
		protection: risk.DefaultProtectionConfig(),
		now:        time.Now,
	}
}

// RefreshTradePrices re-marks every locally open trade against the broker.
// Broker trades with no local row are adopted into the mirror first; trades
// the broker no longer lists were closed out of band (stop-loss, take-profit
// or manual close on the platform) and get closed locally at the last known
// price.
func (r *Reconciler) RefreshTradePrices(ctx context.Context) error {
	brokerTrades, err := r.broker.ListOpenTrades(ctx)
	if err != nil {
		return err
	}

	stillOpen := map[string]bool{}
	for i := range brokerTrades {
		stillOpen[brokerTrades[i].TradeID] = true
		if err := r.adoptBrokerTrade(ctx, &brokerTrades[i]); err != nil {
			return err
		}
	}

	open, err := r.trades.FindOpen(ctx)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	quotes := map[string]float64{}

	for i := range open {
		trade := &open[i]

		live, ok := quotes[trade.Symbol]
		if !ok {
			price, err := r.broker.GetPrice(ctx, trade.Symbol)
			if err != nil {
				r.logger.WithError(err).WithField("symbol", trade.Symbol).Error("Price fetch failed during refresh")
				continue
			}
			live = price.Mid
			quotes[trade.Symbol] = live
		}

		pnl, pnlPct := markToMarket(trade, live)

		if !stillOpen[trade.BrokerTradeID] {
			r.logger.WithFields(logrus.Fields{
				"trade_id":        trade.ID,
				"broker_trade_id": trade.BrokerTradeID,
			}).Info("Trade closed at broker, closing local mirror")

			if err := r.trades.MarkClosed(ctx, trade.ID, live, pnl, r.now().UTC()); err != nil {
				return err
			}
			continue
		}

		if err := r.trades.UpdatePrice(ctx, trade.ID, live, pnl, pnlPct); err != nil {
			return err
		}
	}

	return nil
}

// adoptBrokerTrade mirrors a broker trade that has no local row, so trades
// opened outside this system, or whose local write failed after the fill,
// still get marked, protected and closable here.
func (r *Reconciler) adoptBrokerTrade(ctx context.Context, bt *connectors.BrokerTrade) error {
	known, err := r.trades.FindByBrokerTradeID(ctx, bt.TradeID)
	if err != nil || known != nil {
		return err
	}

	action := model.SignalActionBuy
	if bt.Units < 0 {
		action = model.SignalActionSell
	}

	openedAt := bt.OpenedAt
	if openedAt.IsZero() {
		openedAt = r.now().UTC()
	}

	r.logger.WithFields(logrus.Fields{
		"broker_trade_id": bt.TradeID,
		"symbol":          bt.Symbol,
		"units":           bt.Units,
	}).Info("Adopting broker trade with no local mirror")

	return r.trades.Create(ctx, &model.Trade{
		BrokerTradeID: bt.TradeID,
		Symbol:        bt.Symbol,
		Action:        action,
		Units:         bt.Units,
		EntryPrice:    bt.EntryPrice,
		StopLoss:      bt.StopLoss,
		TakeProfit:    bt.TakeProfit,
		Status:        model.TradeStatusOpen,
		OpenedAt:      openedAt,
	})
}

// markToMarket computes unrealized PnL against a live price. Long trades gain
// as price rises, short trades as it falls; the percentage is relative to the
// position's entry notional.
func markToMarket(trade *model.Trade, live float64) (pnl, pnlPct float64) {
	size := float64(trade.Units)
	if size < 0 {
		size = -size
	}
	if size == 0 || trade.EntryPrice == 0 {
		return 0, 0
	}

	if trade.Units > 0 {
		pnl = (live - trade.EntryPrice) * size
	} else {
		pnl = (trade.EntryPrice - live) * size
	}
	pnlPct = pnl / (trade.EntryPrice * size) * 100

	return pnl, pnlPct
}

// BackfillProtection finds open trades missing a stop-loss or take-profit and
// attaches defaults derived from the current mid, both locally and at the
// broker. Covers trades opened outside this system.
func (r *Reconciler) BackfillProtection(ctx context.Context) error {
	open, err := r.trades.FindOpen(ctx)
	if err != nil {
		return err
	}

	for i := range open {
		trade := &open[i]

		if trade.StopLoss != nil && trade.TakeProfit != nil {
			continue
		}

		price, err := r.broker.GetPrice(ctx, trade.Symbol)
		if err != nil {
			r.logger.WithError(err).WithField("symbol", trade.Symbol).Error("Price fetch failed during backfill")
			continue
		}

		action := trade.Action
		if action == "" {
			action = model.SignalActionBuy
			if trade.Units < 0 {
				action = model.SignalActionSell
			}
		}

		stopLoss, takeProfit, changed := risk.ApplyDefaults(
			action, trade.Symbol, price.Mid,
			trade.StopLoss, trade.TakeProfit, r.protection,
		)
		if !changed {
			continue
		}

		if err := r.broker.SetTradeProtection(ctx, trade.BrokerTradeID, trade.Symbol, stopLoss, takeProfit); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"trade_id":        trade.ID,
				"broker_trade_id": trade.BrokerTradeID,
			}).Error("Failed to amend protection at broker")
			continue
		}
		if err := r.trades.UpdateProtection(ctx, trade.ID, stopLoss, takeProfit); err != nil {
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"trade_id": trade.ID,
			"symbol":   trade.Symbol,
		}).Info("Backfilled protective levels")
	}

	return nil
}

// RefreshAccount upserts the broker account snapshot.
func (r *Reconciler) RefreshAccount(ctx context.Context) error {
	summary, err := r.broker.GetAccount(ctx)
	if err != nil {
		return err
	}

	return r.accounts.Upsert(ctx, &model.Account{
		BrokerAccountID: summary.AccountID,
		Balance:         summary.Balance,
		UnrealizedPnl:   summary.UnrealizedPnl,
		RealizedPnl:     summary.RealizedPnl,
		MarginUsed:      summary.MarginUsed,
		MarginAvailable: summary.MarginAvailable,
		Currency:        summary.Currency,
		CapturedAt:      r.now().UTC(),
	})
}

// SyncPositions replaces the local position table with the broker's view.
func (r *Reconciler) SyncPositions(ctx context.Context) error {
	brokerPositions, err := r.broker.ListPositions(ctx)
	if err != nil {
		return err
	}

	capturedAt := r.now().UTC()
	positions := make([]model.Position, 0, len(brokerPositions))
	for _, bp := range brokerPositions {
		positions = append(positions, model.Position{
			Symbol:        bp.Symbol,
			LongUnits:     bp.LongUnits,
			ShortUnits:    bp.ShortUnits,
			LongAvgPrice:  bp.LongAvgPrice,
			ShortAvgPrice: bp.ShortAvgPrice,
			UnrealizedPnl: bp.UnrealizedPnl,
			MarginUsed:    bp.MarginUsed,
			CapturedAt:    capturedAt,
		})
	}

	return r.positions.ReplaceAll(ctx, positions)
}

// CloseTrade closes one locally tracked open trade at the broker and mirrors
// the result.
func (r *Reconciler) CloseTrade(ctx context.Context, id uint) (*model.Trade, error) {
	trade, err := r.trades.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %d not found", id)
	}
	if trade.Status != model.TradeStatusOpen {
		return nil, fmt.Errorf("trade %d is not open", id)
	}

	result, err := r.broker.CloseTrade(ctx, trade.BrokerTradeID)
	if err != nil {
		return nil, err
	}

	closedAt := r.now().UTC()
	if err := r.trades.MarkClosed(ctx, trade.ID, result.ClosePrice, result.RealizedPnl, closedAt); err != nil {
		return nil, err
	}

	trade.Status = model.TradeStatusClosed
	trade.ClosePrice = &result.ClosePrice
	trade.Pnl = result.RealizedPnl
	trade.ClosedAt = &closedAt

	return trade, nil
}

// CloseAllResult reports a bulk close: how many closed and how many failed.
type CloseAllResult struct {
	Closed int
	Failed int
}

// CloseAllTrades closes every open trade, continuing past individual
// failures so one stuck trade cannot block the rest.
func (r *Reconciler) CloseAllTrades(ctx context.Context) (CloseAllResult, error) {
	result := CloseAllResult{}

	open, err := r.trades.FindOpen(ctx)
	if err != nil {
		return result, err
	}

	for i := range open {
		if _, err := r.CloseTrade(ctx, open[i].ID); err != nil {
			r.logger.WithError(err).WithField("trade_id", open[i].ID).Error("Failed to close trade")
			result.Failed++
			continue
		}
		result.Closed++
	}

	return result, nil
}
