package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/controller"
	"fxexecutor/src/model"
)

type tradeLister interface {
	FindLatest(ctx context.Context, limit int) ([]model.Trade, error)
	FindOpen(ctx context.Context) ([]model.Trade, error)
}

type tradeCloser interface {
	CloseTrade(ctx context.Context, id uint) (*model.Trade, error)
	CloseAllTrades(ctx context.Context) (controller.CloseAllResult, error)
}

// ListTradesHandler returns trades, newest first. ?status=open narrows to
// open trades only.
func ListTradesHandler(repo tradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") == "open" {
			trades, err := repo.FindOpen(r.Context())
			if err != nil {
				logger.WithError(err).Error("failed to list open trades")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, trades)
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		trades, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, trades)
	}
}

// CloseTradeHandler closes one open trade at the broker.
func CloseTradeHandler(closer tradeCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid trade id", http.StatusBadRequest)
			return
		}

		trade, err := closer.CloseTrade(r.Context(), uint(id))
		if err != nil {
			logger.WithError(err).WithField("trade_id", id).Error("failed to close trade")
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		writeJSON(w, http.StatusOK, trade)
	}
}

// CloseAllTradesHandler is the panic button: close everything, report how
// many closed and how many refused.
func CloseAllTradesHandler(closer tradeCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := closer.CloseAllTrades(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to close all trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		status := http.StatusOK
		if result.Failed > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, map[string]int{
			"closed": result.Closed,
			"failed": result.Failed,
		})
	}
}
