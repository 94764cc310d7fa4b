package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/model"
)

type signalLister interface {
	FindLatest(ctx context.Context, limit int) ([]model.Signal, error)
}

type messageIngestor interface {
	OnRawMessage(ctx context.Context, sourceID, text, origin string) (*model.Signal, error)
	OnWebhookPayload(ctx context.Context, payload map[string]interface{}, rawBody string) (*model.Signal, error)
}

// ListSignalsHandler returns the latest signals, newest first.
// Supports ?limit=N.
func ListSignalsHandler(repo signalLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		signals, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list signals")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, signals)
	}
}

// TestSignalHandler ingests a message as a TEST signal, exercising the full
// parse-and-persist path without waiting on a chat source.
func TestSignalHandler(ingestor messageIngestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
			http.Error(w, "body must carry a message", http.StatusBadRequest)
			return
		}

		signal, err := ingestor.OnRawMessage(r.Context(), "", body.Message, model.SignalOriginTest)
		if err != nil {
			http.Error(w, "unparseable message: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		writeJSON(w, http.StatusCreated, signal)
	}
}
