package controller

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"fxexecutor/src/connectors"
	"fxexecutor/src/model"
	"fxexecutor/src/risk"
)

func newTestReconciler(broker Broker, trades TradeStore, positions PositionStore, accounts AccountStore) *Reconciler {
	return &Reconciler{
		logger:     logrus.NewEntry(logrus.StandardLogger()),
		broker:     broker,
		trades:     trades,
		positions:  positions,
		accounts:   accounts,
		protection: risk.DefaultProtectionConfig(),
		now:        fixedNow,
	}
}

type stubPositionStore struct {
	replaced [][]model.Position
}

func (s *stubPositionStore) ReplaceAll(_ context.Context, positions []model.Position) error {
	s.replaced = append(s.replaced, positions)
	return nil
}

type stubAccountStore struct {
	upserts []*model.Account
}

func (s *stubAccountStore) Upsert(_ context.Context, account *model.Account) error {
	s.upserts = append(s.upserts, account)
	return nil
}

func approx(t *testing.T, got, want, tolerance float64, label string) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
}

func TestRefreshTradePricesMarksToMarket(t *testing.T) {
	broker := &stubBroker{
		price:      &connectors.Price{Mid: 1.1050},
		openTrades: []connectors.BrokerTrade{{TradeID: "42"}},
	}
	trades := newStubTradeStore(model.Trade{
		ID: 1, BrokerTradeID: "42", Symbol: "EUR_USD",
		Units: 1000, EntryPrice: 1.1000, Status: model.TradeStatusOpen,
	})

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.RefreshTradePrices(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	update, ok := trades.priceUpdates[1]
	if !ok {
		t.Fatal("expected a price update for trade 1")
	}
	approx(t, update[0], 1.1050, 1e-9, "current price")
	approx(t, update[1], 5.0, 1e-6, "pnl")
	approx(t, update[2], 0.4545, 1e-3, "pnl percentage")
}

func TestRefreshTradePricesShortSide(t *testing.T) {
	broker := &stubBroker{
		price:      &connectors.Price{Mid: 1.1050},
		openTrades: []connectors.BrokerTrade{{TradeID: "43"}},
	}
	trades := newStubTradeStore(model.Trade{
		ID: 2, BrokerTradeID: "43", Symbol: "EUR_USD",
		Units: -1000, EntryPrice: 1.1000, Status: model.TradeStatusOpen,
	})

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.RefreshTradePrices(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	update := trades.priceUpdates[2]
	approx(t, update[1], -5.0, 1e-6, "short pnl")
}

func TestRefreshTradePricesClosesBrokerClosedTrades(t *testing.T) {
	broker := &stubBroker{
		price:      &connectors.Price{Mid: 1.1050},
		openTrades: nil, // broker no longer lists the trade
	}
	trades := newStubTradeStore(model.Trade{
		ID: 1, BrokerTradeID: "42", Symbol: "EUR_USD",
		Units: 1000, EntryPrice: 1.1000, Status: model.TradeStatusOpen,
	})

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.RefreshTradePrices(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	closed, ok := trades.closed[1]
	if !ok {
		t.Fatal("trade closed at the broker must close locally")
	}
	approx(t, closed[0], 1.1050, 1e-9, "close price")
	if _, updated := trades.priceUpdates[1]; updated {
		t.Fatal("closed trade must not also get a price update")
	}
}

func TestRefreshTradePricesAdoptsBrokerOnlyTrades(t *testing.T) {
	sl := 1.2550

	broker := &stubBroker{
		price: &connectors.Price{Mid: 1.2480},
		openTrades: []connectors.BrokerTrade{{
			TradeID:    "77",
			Symbol:     "GBP_USD",
			Units:      -3000,
			EntryPrice: 1.2500,
			StopLoss:   &sl,
			OpenedAt:   fixedNow(),
		}},
	}
	trades := newStubTradeStore()

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.RefreshTradePrices(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(trades.created) != 1 {
		t.Fatalf("broker-only trade must get a local mirror, got %d rows", len(trades.created))
	}
	adopted := trades.created[0]
	if adopted.BrokerTradeID != "77" || adopted.Units != -3000 || adopted.EntryPrice != 1.2500 {
		t.Fatalf("unexpected mirror: %+v", adopted)
	}
	if adopted.Action != model.SignalActionSell {
		t.Fatalf("negative units must adopt as a sell, got %q", adopted.Action)
	}
	if adopted.Status != model.TradeStatusOpen {
		t.Fatalf("adopted trade must be open, got %q", adopted.Status)
	}
	if adopted.StopLoss == nil || *adopted.StopLoss != 1.2550 {
		t.Fatalf("broker-side protection must carry over, got %+v", adopted.StopLoss)
	}

	// A second pass sees the mirror and must not adopt again.
	if err := reconciler.RefreshTradePrices(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(trades.created) != 1 {
		t.Fatalf("adoption must be idempotent, got %d rows", len(trades.created))
	}
}

func TestBackfillProtection(t *testing.T) {
	sl := 1.0950

	broker := &stubBroker{price: &connectors.Price{Mid: 1.1000}}
	trades := newStubTradeStore(model.Trade{
		ID: 1, BrokerTradeID: "42", Symbol: "EUR_USD", Action: model.SignalActionBuy,
		Units: 1000, EntryPrice: 1.0990, StopLoss: &sl, Status: model.TradeStatusOpen,
	})

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.BackfillProtection(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(broker.protected) != 1 {
		t.Fatalf("expected 1 broker amendment, got %d", len(broker.protected))
	}
	amended := broker.protected[0]
	if amended.stopLoss == nil || *amended.stopLoss != 1.0950 {
		t.Fatalf("existing stop loss must be preserved, got %+v", amended.stopLoss)
	}
	if amended.takeProfit == nil || *amended.takeProfit != 1.1110 {
		t.Fatalf("take profit must be derived from the live mid, got %+v", amended.takeProfit)
	}

	local, ok := trades.protUpdates[1]
	if !ok {
		t.Fatal("local protection must be updated too")
	}
	if local[1] == nil || *local[1] != 1.1110 {
		t.Fatalf("local take profit = %+v, want 1.1110", local[1])
	}
}

func TestBackfillProtectionSkipsProtectedTrades(t *testing.T) {
	sl := 1.0950
	tp := 1.1100

	broker := &stubBroker{price: &connectors.Price{Mid: 1.1000}}
	trades := newStubTradeStore(model.Trade{
		ID: 1, BrokerTradeID: "42", Symbol: "EUR_USD",
		Units: 1000, StopLoss: &sl, TakeProfit: &tp, Status: model.TradeStatusOpen,
	})

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.BackfillProtection(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(broker.protected) != 0 {
		t.Fatal("fully protected trade must not be amended")
	}
}

func TestBackfillProtectionBrokerFailureKeepsLocalUntouched(t *testing.T) {
	broker := &stubBroker{
		price:         &connectors.Price{Mid: 1.1000},
		protectionErr: errors.New("oanda unavailable"),
	}
	trades := newStubTradeStore(model.Trade{
		ID: 1, BrokerTradeID: "42", Symbol: "EUR_USD", Action: model.SignalActionBuy,
		Units: 1000, Status: model.TradeStatusOpen,
	})

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	if err := reconciler.BackfillProtection(context.Background()); err != nil {
		t.Fatalf("broker failure must not abort the pass, got %v", err)
	}
	if _, updated := trades.protUpdates[1]; updated {
		t.Fatal("local levels must not change when the broker amendment failed")
	}
}

func TestRefreshAccount(t *testing.T) {
	broker := &stubBroker{
		account: &connectors.AccountSummary{
			AccountID: "101-001-1234567-001",
			Balance:   10000.50,
			Currency:  "USD",
		},
	}
	accounts := &stubAccountStore{}

	reconciler := newTestReconciler(broker, newStubTradeStore(), &stubPositionStore{}, accounts)

	if err := reconciler.RefreshAccount(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(accounts.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(accounts.upserts))
	}
	snapshot := accounts.upserts[0]
	if snapshot.BrokerAccountID != "101-001-1234567-001" || snapshot.Balance != 10000.50 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if !snapshot.CapturedAt.Equal(fixedNow()) {
		t.Fatalf("captured_at must come from the injected clock, got %v", snapshot.CapturedAt)
	}
}

func TestSyncPositionsReplacesSnapshot(t *testing.T) {
	avg := 1.1000

	broker := &stubBroker{
		positions: []connectors.BrokerPosition{
			{Symbol: "EUR_USD", LongUnits: 1000, LongAvgPrice: &avg, UnrealizedPnl: 5.0},
		},
	}
	positions := &stubPositionStore{}

	reconciler := newTestReconciler(broker, newStubTradeStore(), positions, &stubAccountStore{})

	if err := reconciler.SyncPositions(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(positions.replaced) != 1 || len(positions.replaced[0]) != 1 {
		t.Fatalf("unexpected replace calls: %+v", positions.replaced)
	}
	snapshot := positions.replaced[0][0]
	if snapshot.Symbol != "EUR_USD" || snapshot.LongUnits != 1000 {
		t.Fatalf("unexpected position: %+v", snapshot)
	}
}

func TestCloseAllTradesContinuesPastFailure(t *testing.T) {
	broker := &stubBroker{
		closeResults: map[string]*connectors.CloseResult{
			"43": {ClosePrice: 1.2000, RealizedPnl: 3.5},
		},
		closeErrs: map[string]error{
			"42": errors.New("trade locked"),
		},
	}
	trades := newStubTradeStore(
		model.Trade{ID: 1, BrokerTradeID: "42", Symbol: "EUR_USD", Units: 1000, EntryPrice: 1.1, Status: model.TradeStatusOpen},
		model.Trade{ID: 2, BrokerTradeID: "43", Symbol: "GBP_USD", Units: -1000, EntryPrice: 1.25, Status: model.TradeStatusOpen},
	)

	reconciler := newTestReconciler(broker, trades, &stubPositionStore{}, &stubAccountStore{})

	result, err := reconciler.CloseAllTrades(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Closed != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 closed and 1 failed, got %+v", result)
	}

	closed, ok := trades.closed[2]
	if !ok {
		t.Fatal("trade 2 must close despite trade 1 failing")
	}
	approx(t, closed[0], 1.2000, 1e-9, "close price")
	approx(t, closed[1], 3.5, 1e-9, "realized pnl")
}

func TestCloseTradeRejectsNonOpen(t *testing.T) {
	trades := newStubTradeStore(model.Trade{
		ID: 1, BrokerTradeID: "42", Status: model.TradeStatusClosed,
	})

	reconciler := newTestReconciler(&stubBroker{}, trades, &stubPositionStore{}, &stubAccountStore{})

	if _, err := reconciler.CloseTrade(context.Background(), 1); err == nil {
		t.Fatal("closing a closed trade must error")
	}
	if _, err := reconciler.CloseTrade(context.Background(), 99); err == nil {
		t.Fatal("closing an unknown trade must error")
	}
}
