package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/controller"
	"fxexecutor/src/handler"
	"fxexecutor/src/ingest"
	"fxexecutor/src/repository"
)

// Deps carries everything the HTTP surface needs. Wired once in main.
type Deps struct {
	Ingestor   *ingest.Ingestor
	Reconciler *controller.Reconciler
	Signals    *repository.SignalRepository
	Trades     *repository.TradeRepository
	Positions  *repository.PositionRepository
	Accounts   *repository.AccountRepository
	Settings   *repository.SettingsRepository
}

// NewRouter builds the full route table.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	r.Post("/webhook/tradingview", handler.TradingViewWebhookHandler(deps.Ingestor))

	r.Route("/api", func(r chi.Router) {
		r.Get("/signals", handler.ListSignalsHandler(deps.Signals))
		r.Post("/signals/test", handler.TestSignalHandler(deps.Ingestor))

		r.Get("/trades", handler.ListTradesHandler(deps.Trades))
		r.Post("/trades/close_all", handler.CloseAllTradesHandler(deps.Reconciler))
		r.Post("/trades/{id}/close", handler.CloseTradeHandler(deps.Reconciler))

		r.Get("/account", handler.GetAccountHandler(deps.Accounts))
		r.Get("/positions", handler.ListPositionsHandler(deps.Positions))
		r.Post("/refresh", handler.RefreshHandler(deps.Reconciler))

		r.Get("/settings", handler.GetSettingsHandler(deps.Settings))
		r.Post("/settings/auto_trading", handler.SetAutoTradingHandler(deps.Settings))
	})

	r.Get("/ws/status", handler.StatusStreamHandler(deps.Accounts, deps.Trades, 5*time.Second))

	return r
}

// StartServer runs the API until SIGINT/SIGTERM, then shuts down gracefully.
func StartServer(port string, deps Deps) {
	r := NewRouter(deps)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), GetConfig().ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
