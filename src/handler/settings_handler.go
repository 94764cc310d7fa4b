package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/model"
)

type settingsStore interface {
	GetOrCreate(ctx context.Context) (*model.TradingSettings, error)
	SetAutoTrading(ctx context.Context, enabled bool) error
}

// GetSettingsHandler returns the trading settings row.
func GetSettingsHandler(repo settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := repo.GetOrCreate(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load settings")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}

// SetAutoTradingHandler flips the auto-trading kill switch. Takes effect on
// the next scheduler cycle.
func SetAutoTradingHandler(repo settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
			http.Error(w, "body must carry an enabled flag", http.StatusBadRequest)
			return
		}

		if err := repo.SetAutoTrading(r.Context(), *body.Enabled); err != nil {
			logger.WithError(err).Error("failed to update auto trading flag")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		settings, err := repo.GetOrCreate(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to reload settings")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}
