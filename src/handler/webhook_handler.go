package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	logger "github.com/sirupsen/logrus"
)

// TradingViewWebhookHandler accepts TradingView alert payloads. The raw body
// is stored alongside the parsed signal so the original alert is never lost.
func TradingViewWebhookHandler(ingestor messageIngestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		var payload map[string]interface{}
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "body must be a JSON object", http.StatusBadRequest)
			return
		}

		signal, err := ingestor.OnWebhookPayload(r.Context(), payload, string(raw))
		if err != nil {
			logger.WithError(err).Warn("webhook payload rejected")
			http.Error(w, "unparseable payload: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		writeJSON(w, http.StatusCreated, signal)
	}
}
