package executors

import (
	"context"
	"errors"
	"testing"
	"time"

	"fxexecutor/src/controller"
	"fxexecutor/src/model"
)

type stubPlacer struct {
	calls  int
	limits []int
	result controller.PlacementResult
}

func (s *stubPlacer) PlacePending(_ context.Context, maxConcurrent int) controller.PlacementResult {
	s.calls++
	s.limits = append(s.limits, maxConcurrent)
	return s.result
}

type stubSyncer struct {
	prices     int
	protection int
	account    int
	positions  int
	priceErr   error
}

func (s *stubSyncer) RefreshTradePrices(_ context.Context) error {
	s.prices++
	return s.priceErr
}

func (s *stubSyncer) BackfillProtection(_ context.Context) error {
	s.protection++
	return nil
}

func (s *stubSyncer) RefreshAccount(_ context.Context) error {
	s.account++
	return nil
}

func (s *stubSyncer) SyncPositions(_ context.Context) error {
	s.positions++
	return nil
}

type stubSettings struct {
	settings *model.TradingSettings
	err      error
}

func (s *stubSettings) GetOrCreate(_ context.Context) (*model.TradingSettings, error) {
	return s.settings, s.err
}

func newTestLoop(placer *stubPlacer, syncer *stubSyncer, settings *stubSettings) *Loop {
	return &Loop{
		placer:       placer,
		syncer:       syncer,
		settings:     settings,
		loopPeriod:   time.Millisecond,
		errorBackoff: 2 * time.Millisecond,
	}
}

func TestRunCyclePlacesAndReconciles(t *testing.T) {
	placer := &stubPlacer{}
	syncer := &stubSyncer{}
	settings := &stubSettings{settings: &model.TradingSettings{AutoTradingEnabled: true, MaxConcurrentTrades: 5}}

	loop := newTestLoop(placer, syncer, settings)

	if err := loop.RunCycle(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if placer.calls != 1 {
		t.Fatalf("expected 1 placement pass, got %d", placer.calls)
	}
	if placer.limits[0] != 5 {
		t.Fatalf("placement must receive the settings limit, got %d", placer.limits[0])
	}
	if syncer.prices != 1 || syncer.protection != 1 || syncer.account != 1 || syncer.positions != 1 {
		t.Fatalf("every reconciliation step must run once: %+v", syncer)
	}
}

func TestRunCycleSkipsPlacementWhenDisabled(t *testing.T) {
	placer := &stubPlacer{}
	syncer := &stubSyncer{}
	settings := &stubSettings{settings: &model.TradingSettings{AutoTradingEnabled: false}}

	loop := newTestLoop(placer, syncer, settings)

	if err := loop.RunCycle(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if placer.calls != 0 {
		t.Fatal("placement must not run with auto trading disabled")
	}
	if syncer.prices != 1 || syncer.positions != 1 {
		t.Fatal("reconciliation must run even with auto trading disabled")
	}
}

func TestRunCycleReconcilesDespiteSettingsFailure(t *testing.T) {
	placer := &stubPlacer{}
	syncer := &stubSyncer{}
	settings := &stubSettings{err: errors.New("db down")}

	loop := newTestLoop(placer, syncer, settings)

	if err := loop.RunCycle(context.Background()); err == nil {
		t.Fatal("settings failure must surface as a cycle error")
	}

	if placer.calls != 0 {
		t.Fatal("placement must not run without settings")
	}
	if syncer.prices != 1 {
		t.Fatal("reconciliation must still run")
	}
}

func TestRunCycleCollectsStepErrors(t *testing.T) {
	placer := &stubPlacer{}
	syncer := &stubSyncer{priceErr: errors.New("oanda unavailable")}
	settings := &stubSettings{settings: &model.TradingSettings{AutoTradingEnabled: true}}

	loop := newTestLoop(placer, syncer, settings)

	if err := loop.RunCycle(context.Background()); err == nil {
		t.Fatal("step failure must surface as a cycle error")
	}

	// The failing step must not short-circuit the ones after it.
	if syncer.protection != 1 || syncer.account != 1 || syncer.positions != 1 {
		t.Fatalf("later steps must still run: %+v", syncer)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	placer := &stubPlacer{}
	syncer := &stubSyncer{}
	settings := &stubSettings{settings: &model.TradingSettings{AutoTradingEnabled: true}}

	loop := newTestLoop(placer, syncer, settings)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- loop.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	if placer.calls == 0 {
		t.Fatal("loop must have run at least one cycle")
	}
}
