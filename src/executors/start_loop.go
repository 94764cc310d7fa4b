package executors

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/controller"
	"fxexecutor/src/model"
)

// Placer is the placement surface of the order engine.
type Placer interface {
	PlacePending(ctx context.Context, maxConcurrent int) controller.PlacementResult
}

// Syncer is the reconciliation surface used every cycle.
type Syncer interface {
	RefreshTradePrices(ctx context.Context) error
	BackfillProtection(ctx context.Context) error
	RefreshAccount(ctx context.Context) error
	SyncPositions(ctx context.Context) error
}

// SettingsStore yields the settings row read fresh at the top of each cycle.
type SettingsStore interface {
	GetOrCreate(ctx context.Context) (*model.TradingSettings, error)
}

// Loop drives the trading cycle: read settings, place pending signals when
// auto-trading is on, then reconcile with the broker unconditionally. A cycle
// that reports an error stretches the next pause to the error backoff.
type Loop struct {
	placer       Placer
	syncer       Syncer
	settings     SettingsStore
	loopPeriod   time.Duration
	errorBackoff time.Duration
}

func NewLoop(placer Placer, syncer Syncer, settings SettingsStore) *Loop {
	config := GetConfig()
	return &Loop{
		placer:       placer,
		syncer:       syncer,
		settings:     settings,
		loopPeriod:   config.LoopPeriod,
		errorBackoff: config.ErrorBackoff,
	}
}

// Start runs cycles until the context is canceled. The pause between cycles
// depends on the previous outcome, so a plain ticker does not fit; the timer
// is re-armed by hand after each cycle.
func (l *Loop) Start(ctx context.Context) error {
	logger.WithFields(map[string]interface{}{
		"loop_period":   l.loopPeriod.String(),
		"error_backoff": l.errorBackoff.String(),
	}).Info("Trading loop started")

	timer := time.NewTimer(0) // first cycle runs immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Trading loop stopped")
			return nil
		case <-timer.C:
		}

		wait := l.loopPeriod
		if err := l.RunCycle(ctx); err != nil {
			logger.WithError(err).Error("Cycle finished with errors, backing off")
			wait = l.errorBackoff
		}

		timer.Reset(wait)
	}
}

// RunCycle executes one full pass. Reconciliation always runs, even when
// auto-trading is off or placement reported errors, so the local mirror
// never goes stale.
func (l *Loop) RunCycle(ctx context.Context) error {
	var cycleErrs []error

	settings, err := l.settings.GetOrCreate(ctx)
	if err != nil {
		// Without settings there is no auto-trading decision; skip
		// placement but still reconcile.
		logger.WithError(err).Error("Failed to load trading settings")
		cycleErrs = append(cycleErrs, err)
	}

	if settings != nil && settings.AutoTradingEnabled {
		result := l.placer.PlacePending(ctx, settings.MaxConcurrentTrades)
		if len(result.Errors) > 0 {
			cycleErrs = append(cycleErrs, result.Errors...)
		}
		if result.Placed+result.Skipped+result.Failed > 0 {
			logger.WithFields(map[string]interface{}{
				"placed":  result.Placed,
				"skipped": result.Skipped,
				"failed":  result.Failed,
			}).Info("Placement pass finished")
		}
	} else if settings != nil {
		logger.Debug("Auto trading disabled, skipping placement")
	}

	for _, step := range []struct {
		name string
		run  func(context.Context) error
	}{
		{"refresh_trade_prices", l.syncer.RefreshTradePrices},
		{"backfill_protection", l.syncer.BackfillProtection},
		{"refresh_account", l.syncer.RefreshAccount},
		{"sync_positions", l.syncer.SyncPositions},
	} {
		if err := step.run(ctx); err != nil {
			logger.WithError(err).WithField("step", step.name).Error("Reconciliation step failed")
			cycleErrs = append(cycleErrs, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	if len(cycleErrs) > 0 {
		return fmt.Errorf("cycle finished with %d error(s), first: %w", len(cycleErrs), cycleErrs[0])
	}
	return nil
}
