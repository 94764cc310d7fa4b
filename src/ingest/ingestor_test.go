package ingest

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"fxexecutor/src/model"
)

type stubSignalStore struct {
	created  []*model.Signal
	existing map[string]*model.Signal
}

func newStubSignalStore() *stubSignalStore {
	return &stubSignalStore{existing: map[string]*model.Signal{}}
}

func (s *stubSignalStore) Create(_ context.Context, signal *model.Signal) error {
	if _, ok := s.existing[signal.SourceID]; ok {
		return gorm.ErrDuplicatedKey
	}
	signal.ID = uint(len(s.created) + 1)
	s.created = append(s.created, signal)
	s.existing[signal.SourceID] = signal
	return nil
}

func (s *stubSignalStore) FindBySourceID(_ context.Context, sourceID string) (*model.Signal, error) {
	return s.existing[sourceID], nil
}

func newTestIngestor(store *stubSignalStore) *Ingestor {
	ingestor := &Ingestor{
		signals:        store,
		defaultLotSize: 0.01,
	}
	return ingestor.WithNow(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

func TestOnRawMessageLabeled(t *testing.T) {
	store := newStubSignalStore()
	ingestor := newTestIngestor(store)

	signal, err := ingestor.OnRawMessage(context.Background(), "discord-1", "BUY EUR_USD @ 1.1000 SL: 1.0950 TP: 1.1100", model.SignalOriginDiscord)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if signal.Symbol != "EUR_USD" || signal.Action != model.SignalActionBuy {
		t.Fatalf("unexpected signal: %+v", signal)
	}
	if signal.EntryPrice == nil || *signal.EntryPrice != 1.1000 {
		t.Fatalf("entry price not captured: %+v", signal.EntryPrice)
	}
	if signal.LotSize != 0.01 {
		t.Fatalf("lot size must default to 0.01, got %v", signal.LotSize)
	}
	if signal.Status != model.SignalStatusPending || signal.Processed {
		t.Fatalf("new signal must be pending and unprocessed: %+v", signal)
	}
	if !signal.ReceivedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("received_at must come from the injected clock, got %v", signal.ReceivedAt)
	}
}

func TestOnRawMessageDedup(t *testing.T) {
	store := newStubSignalStore()
	ingestor := newTestIngestor(store)

	first, err := ingestor.OnRawMessage(context.Background(), "discord-1", "BUY EUR_USD @ 1.1000", model.SignalOriginDiscord)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	second, err := ingestor.OnRawMessage(context.Background(), "discord-1", "BUY EUR_USD @ 1.1000", model.SignalOriginDiscord)
	if err != nil {
		t.Fatalf("duplicate ingest must not error, got %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("duplicate must return the existing signal, got %d and %d", first.ID, second.ID)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected exactly 1 stored signal, got %d", len(store.created))
	}
}

func TestOnRawMessageManualUsesPositional(t *testing.T) {
	store := newStubSignalStore()
	ingestor := newTestIngestor(store)

	// Positional reading: first number is the entry, not the stop loss.
	signal, err := ingestor.OnRawMessage(context.Background(), "", "LONG EURUSD 1.1000 1.0950 1.1100", model.SignalOriginManual)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if signal.EntryPrice == nil || *signal.EntryPrice != 1.1000 {
		t.Fatalf("entry must be the first number, got %+v", signal.EntryPrice)
	}
	if signal.StopLoss == nil || *signal.StopLoss != 1.0950 {
		t.Fatalf("stop loss must be the second number, got %+v", signal.StopLoss)
	}
	if signal.SourceID == "" {
		t.Fatal("manual message must get a generated source id")
	}
}

func TestOnRawMessageUnparseable(t *testing.T) {
	store := newStubSignalStore()
	ingestor := newTestIngestor(store)

	if _, err := ingestor.OnRawMessage(context.Background(), "discord-2", "good morning traders", model.SignalOriginDiscord); err == nil {
		t.Fatal("expected parse error for non-signal chatter")
	}
	if len(store.created) != 0 {
		t.Fatalf("unparseable message must not be stored, got %d rows", len(store.created))
	}
}

func TestOnWebhookPayload(t *testing.T) {
	store := newStubSignalStore()
	ingestor := newTestIngestor(store)

	payload := map[string]interface{}{
		"id":     "tv-alert-7",
		"ticker": "GBP/USD",
		"side":   "short",
		"close":  1.2500,
		"size":   0.05,
	}

	signal, err := ingestor.OnWebhookPayload(context.Background(), payload, `{"ticker":"GBP/USD"}`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if signal.SourceID != "tv-alert-7" {
		t.Fatalf("payload id must become the source id, got %s", signal.SourceID)
	}
	if signal.Symbol != "GBP_USD" || signal.Action != model.SignalActionSell {
		t.Fatalf("unexpected signal: %+v", signal)
	}
	if signal.LotSize != 0.05 {
		t.Fatalf("payload size must win over the default, got %v", signal.LotSize)
	}
	if signal.Origin != model.SignalOriginTradingView {
		t.Fatalf("unexpected origin: %s", signal.Origin)
	}
	if signal.Confidence == nil || *signal.Confidence != 1.0 {
		t.Fatalf("default webhook confidence must normalize to 1.0, got %+v", signal.Confidence)
	}
}

// racingSignalStore loses the insert race: the dedup pre-read sees nothing,
// Create hits the unique index, the re-read finds the winning row.
type racingSignalStore struct {
	winner *model.Signal
	reads  int
}

func (s *racingSignalStore) Create(_ context.Context, _ *model.Signal) error {
	return gorm.ErrDuplicatedKey
}

func (s *racingSignalStore) FindBySourceID(_ context.Context, _ string) (*model.Signal, error) {
	s.reads++
	if s.reads == 1 {
		return nil, nil
	}
	return s.winner, nil
}

func TestPersistSettlesCreateRace(t *testing.T) {
	winner := &model.Signal{ID: 9, SourceID: "discord-9", Symbol: "EUR_USD"}
	store := &racingSignalStore{winner: winner}

	ingestor := (&Ingestor{signals: store, defaultLotSize: 0.01}).WithNow(time.Now)

	got, err := ingestor.OnRawMessage(context.Background(), "discord-9", "BUY EUR_USD @ 1.1000", model.SignalOriginDiscord)
	if err != nil {
		t.Fatalf("losing the insert race must not surface an error, got %v", err)
	}
	if got == nil || got.ID != winner.ID {
		t.Fatalf("expected the winning row back, got %+v", got)
	}
}
