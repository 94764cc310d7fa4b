package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"fxexecutor/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestSignalRepositoryQueries(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&SignalRepository{}).WithDB(mockDB)

	receivedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := 1.1000

	signal := &model.Signal{
		SourceID:   "discord-123",
		Symbol:     "EUR_USD",
		Action:     model.SignalActionBuy,
		EntryPrice: &entry,
		LotSize:    0.01,
		Origin:     model.SignalOriginDiscord,
		RawMessage: "BUY EUR_USD @ 1.1000",
		ReceivedAt: receivedAt,
		Status:     model.SignalStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "signals" (`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), signal); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	signalRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "source_id", "symbol", "action", "lot_size", "origin", "processed", "retry_count", "status", "received_at"}).
			AddRow(1, signal.SourceID, signal.Symbol, signal.Action, signal.LotSize, signal.Origin, false, 0, signal.Status, signal.ReceivedAt)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "signals" WHERE source_id = $1 ORDER BY "signals"."id" LIMIT $2`)).
		WithArgs(signal.SourceID, 1).
		WillReturnRows(signalRows())

	found, err := repo.FindBySourceID(context.Background(), signal.SourceID)
	if err != nil || found == nil {
		t.Fatalf("expected to find signal by source id, got %+v err=%v", found, err)
	}
	if found.Symbol != "EUR_USD" {
		t.Fatalf("unexpected signal returned: %+v", found)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "signals" WHERE source_id = $1 ORDER BY "signals"."id" LIMIT $2`)).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	missing, err := repo.FindBySourceID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("not-found lookup must not error, got %v", err)
	}
	if missing != nil {
		t.Fatalf("not-found lookup must return nil, got %+v", missing)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "signals" WHERE processed = $1 ORDER BY id ASC LIMIT $2`)).
		WithArgs(false, 100).
		WillReturnRows(signalRows())

	pending, err := repo.FindUnprocessed(context.Background(), 0)
	if err != nil {
		t.Fatalf("expected FindUnprocessed to succeed, got %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending signal, got %d", len(pending))
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "signals" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MarkProcessed(context.Background(), 1, model.SignalStatusPlaced); err != nil {
		t.Fatalf("expected MarkProcessed to succeed, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "signals" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.RecordFailedAttempt(context.Background(), 1, 2); err != nil {
		t.Fatalf("expected RecordFailedAttempt to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}
