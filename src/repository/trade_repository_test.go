package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"fxexecutor/src/model"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTradeRepositoryQueries(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	openedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	trade := &model.Trade{
		BrokerTradeID: "oanda-42",
		Symbol:        "EUR_USD",
		Action:        model.SignalActionBuy,
		Units:         1000,
		EntryPrice:    1.1000,
		Status:        model.TradeStatusOpen,
		OpenedAt:      openedAt,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "trades" (`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), trade); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	tradeRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "broker_trade_id", "symbol", "action", "units", "entry_price", "pnl", "pnl_percentage", "status", "opened_at"}).
			AddRow(1, trade.BrokerTradeID, trade.Symbol, trade.Action, trade.Units, trade.EntryPrice, 0.0, 0.0, trade.Status, trade.OpenedAt)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE broker_trade_id = $1 ORDER BY "trades"."id" LIMIT $2`)).
		WithArgs(trade.BrokerTradeID, 1).
		WillReturnRows(tradeRows())

	found, err := repo.FindByBrokerTradeID(context.Background(), trade.BrokerTradeID)
	if err != nil || found == nil {
		t.Fatalf("expected to find trade by broker trade id, got %+v err=%v", found, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE broker_trade_id = $1 ORDER BY "trades"."id" LIMIT $2`)).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	missing, err := repo.FindByBrokerTradeID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("not-found lookup must not error, got %v", err)
	}
	if missing != nil {
		t.Fatalf("not-found lookup must return nil, got %+v", missing)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE status = $1 ORDER BY id ASC`)).
		WithArgs(model.TradeStatusOpen).
		WillReturnRows(tradeRows())

	open, err := repo.FindOpen(context.Background())
	if err != nil {
		t.Fatalf("expected FindOpen to succeed, got %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open trade, got %d", len(open))
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "trades" WHERE status = $1`)).
		WithArgs(model.TradeStatusOpen).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountOpen(context.Background())
	if err != nil {
		t.Fatalf("expected CountOpen to succeed, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 open trade counted, got %d", count)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "trades" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.UpdatePrice(context.Background(), 1, 1.1050, 5.0, 0.4545); err != nil {
		t.Fatalf("expected UpdatePrice to succeed, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "trades" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MarkClosed(context.Background(), 1, 1.1050, 5.0, openedAt.Add(time.Hour)); err != nil {
		t.Fatalf("expected MarkClosed to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositoryUpdateProtectionNoFields(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	// Nothing to set means no SQL should run at all.
	if err := repo.UpdateProtection(context.Background(), 1, nil, nil); err != nil {
		t.Fatalf("expected no-op protection update to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
