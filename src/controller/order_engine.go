package controller

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"fxexecutor/src/connectors"
	"fxexecutor/src/model"
	"fxexecutor/src/risk"
)

// OrderEngine turns pending signals into broker orders. One signal becomes at
// most one trade: the signal is marked processed exactly once, whatever the
// outcome.
type OrderEngine struct {
	logger      *logrus.Entry
	broker      Broker
	signals     SignalStore
	trades      TradeStore
	protection  risk.ProtectionConfig
	maxRetries  int
	unitsPerLot int
	now         func() time.Time
}

func NewOrderEngine(logger *logrus.Entry, broker Broker, signals SignalStore, trades TradeStore) *OrderEngine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	config := GetConfig()

	return &OrderEngine{
		logger:      logger,
		broker:      broker,
		signals:     signals,
		trades:      trades,
		protection:  risk.DefaultProtectionConfig(),
		maxRetries:  config.MaxPlaceRetries,
		unitsPerLot: config.UnitsPerLot,
		now:         time.Now,
	}
}

// PlacementResult summarizes one placement pass.
type PlacementResult struct {
	Placed  int
	Skipped int
	Failed  int
	Errors  []error
}

// PlacePending processes the pending queue oldest first. A failure on one
// signal never blocks the rest; maxConcurrent caps how many trades may be
// open at once, and signals beyond the cap stay pending for the next cycle.
func (e *OrderEngine) PlacePending(ctx context.Context, maxConcurrent int) PlacementResult {
	result := PlacementResult{}

	pending, err := e.signals.FindUnprocessed(ctx, 0)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	if len(pending) == 0 {
		return result
	}

	openCount, err := e.trades.CountOpen(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	for i := range pending {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, ctx.Err())
			return result
		default:
		}

		if maxConcurrent > 0 && openCount >= int64(maxConcurrent) {
			e.logger.WithFields(logrus.Fields{
				"open_trades":    openCount,
				"max_concurrent": maxConcurrent,
				"still_pending":  len(pending) - i,
			}).Info("Concurrent trade limit reached, deferring remaining signals")
			break
		}

		signal := &pending[i]

		placed, err := e.placeOne(ctx, signal)
		switch {
		case placed:
			result.Placed++
			openCount++
			// A fill with a failed local write still surfaces its error.
			if err != nil {
				result.Errors = append(result.Errors, err)
			}
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, err)
		default:
			result.Skipped++
		}
	}

	return result
}

// placeOne attempts a single signal. Returns (true, nil) on a fill,
// (false, nil) on a definitive skip or a deferred retry, (false, err) when
// the signal exhausted its attempts, and (true, err) when the order filled
// but a local write failed afterwards.
func (e *OrderEngine) placeOne(ctx context.Context, signal *model.Signal) (bool, error) {
	log := e.logger.WithFields(logrus.Fields{
		"signal_id": signal.ID,
		"symbol":    signal.Symbol,
		"action":    signal.Action,
	})

	units := int(math.Round(signal.LotSize * float64(e.unitsPerLot)))
	if signal.Action == model.SignalActionSell {
		units = -units
	}
	if units == 0 {
		log.Warn("Signal resolves to zero units, skipping")
		return false, e.signals.MarkProcessed(ctx, signal.ID, model.SignalStatusSkipped)
	}

	price, err := e.broker.GetPrice(ctx, signal.Symbol)
	if err != nil {
		log.WithError(err).Error("Price fetch failed")
		return false, e.recordFailure(ctx, signal, err)
	}

	stopLoss, takeProfit, _ := risk.ApplyDefaults(
		signal.Action, signal.Symbol, price.Mid,
		signal.StopLoss, signal.TakeProfit, e.protection,
	)

	fill, err := e.broker.PlaceMarketOrder(ctx, signal.Symbol, units, stopLoss, takeProfit)
	if err != nil {
		// A rejection can clear up between cycles (margin freed, market
		// reopened), so it burns a retry attempt like any other failure.
		var rejection *connectors.RejectionError
		if errors.As(err, &rejection) {
			log.WithField("reason", rejection.Reason).Warn("Order rejected by broker")
		} else {
			log.WithError(err).Error("Order placement failed")
		}
		return false, e.recordFailure(ctx, signal, err)
	}

	signalID := signal.ID
	trade := &model.Trade{
		BrokerTradeID: fill.TradeID,
		SignalID:      &signalID,
		Symbol:        signal.Symbol,
		Action:        signal.Action,
		Units:         fill.Units,
		EntryPrice:    fill.FillPrice,
		StopLoss:      stopLoss,
		TakeProfit:    takeProfit,
		Status:        model.TradeStatusOpen,
		OpenedAt:      e.now().UTC(),
	}
	if trade.Units == 0 {
		trade.Units = units
	}

	// Once the fill exists the signal is spent, whatever happens to the
	// local writes below: re-running it would open a second position.
	createErr := e.trades.Create(ctx, trade)
	if createErr != nil {
		log.WithError(createErr).WithField("broker_trade_id", fill.TradeID).
			Error("Failed to persist filled trade, reconciliation will adopt it from the broker")
	}

	if err := e.signals.MarkProcessed(ctx, signal.ID, model.SignalStatusPlaced); err != nil {
		return true, err
	}
	if createErr != nil {
		return true, createErr
	}

	log.WithFields(logrus.Fields{
		"broker_trade_id": fill.TradeID,
		"fill_price":      fill.FillPrice,
		"units":           trade.Units,
	}).Info("Signal placed")

	return true, nil
}

// recordFailure bumps the retry counter, failing the signal for good once it
// runs out of attempts.
func (e *OrderEngine) recordFailure(ctx context.Context, signal *model.Signal, cause error) error {
	signal.RetryCount++

	if signal.RetryCount >= e.maxRetries {
		e.logger.WithFields(logrus.Fields{
			"signal_id":   signal.ID,
			"retry_count": signal.RetryCount,
		}).Error("Signal exhausted placement attempts")

		if err := e.signals.MarkProcessed(ctx, signal.ID, model.SignalStatusFailed); err != nil {
			return err
		}
		return cause
	}

	if err := e.signals.RecordFailedAttempt(ctx, signal.ID, signal.RetryCount); err != nil {
		return err
	}
	// Deferred, not failed: the signal stays pending for the next cycle.
	return nil
}
