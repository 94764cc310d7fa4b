package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is a personal dashboard; same-origin checks stay permissive.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type statusSource interface {
	FindLatest(ctx context.Context) (*model.Account, error)
}

type openTradeCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

// statusFrame is one push on the status stream.
type statusFrame struct {
	Timestamp  time.Time      `json:"timestamp"`
	OpenTrades int64          `json:"open_trades"`
	Account    *model.Account `json:"account,omitempty"`
}

// StatusStreamHandler upgrades to a websocket and pushes an account/trade
// summary on an interval until the client goes away.
func StatusStreamHandler(accounts statusSource, trades openTradeCounter, interval time.Duration) http.HandlerFunc {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		// Drain client frames so pings and close messages are handled.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			frame := statusFrame{Timestamp: time.Now().UTC()}

			if account, err := accounts.FindLatest(r.Context()); err == nil {
				frame.Account = account
			}
			if count, err := trades.CountOpen(r.Context()); err == nil {
				frame.OpenTrades = count
			}

			if err := conn.WriteJSON(frame); err != nil {
				return
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
