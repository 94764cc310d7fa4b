package handler

import (
	"context"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/model"
)

type accountReader interface {
	FindLatest(ctx context.Context) (*model.Account, error)
}

type positionReader interface {
	FindAll(ctx context.Context) ([]model.Position, error)
}

type refresher interface {
	RefreshTradePrices(ctx context.Context) error
	RefreshAccount(ctx context.Context) error
	SyncPositions(ctx context.Context) error
}

// GetAccountHandler returns the latest account snapshot, 404 until the first
// reconciliation pass has stored one.
func GetAccountHandler(repo accountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := repo.FindLatest(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load account snapshot")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if account == nil {
			http.Error(w, "no account snapshot yet", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, account)
	}
}

// ListPositionsHandler returns the current position snapshot.
func ListPositionsHandler(repo positionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := repo.FindAll(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, positions)
	}
}

// RefreshHandler forces a broker sync outside the scheduler cadence.
func RefreshHandler(sync refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, step := range []func(context.Context) error{
			sync.RefreshTradePrices,
			sync.RefreshAccount,
			sync.SyncPositions,
		} {
			if err := step(r.Context()); err != nil {
				logger.WithError(err).Error("manual refresh failed")
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
	}
}
