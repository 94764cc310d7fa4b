package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"fxexecutor/src/connectors"
	"fxexecutor/src/controller"
	"fxexecutor/src/database"
	"fxexecutor/src/executors"
	"fxexecutor/src/ingest"
	"fxexecutor/src/model"
	"fxexecutor/src/repository"
	"fxexecutor/src/security"
	"fxexecutor/src/server"
)

var (
	PORT     = os.Getenv("SERVER_PORT")
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	app := cli.NewApp()
	app.Name = "fxexecutor"
	app.Usage = "personal forex signal execution"

	app.Commands = []cli.Command{
		serverCMD,
		executorCMD,
		closeAllCMD,
		signalCMD,
		setKeyCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the HTTP API",
		Action:      serverAction,
		Description: `Serve the dashboard API and the TradingView webhook`,
	}
	executorCMD = cli.Command{
		Name:        "executor",
		Usage:       "run the trading loop",
		Action:      executorAction,
		Description: `Place pending signals and reconcile with the broker on a schedule`,
	}
	closeAllCMD = cli.Command{
		Name:        "closeall",
		Usage:       "close every open trade",
		Action:      closeAllAction,
		Description: `Close all open trades at the broker and mirror the result locally`,
	}
	signalCMD = cli.Command{
		Name:   "signal",
		Usage:  "ingest a manual signal",
		Action: signalAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "message, m", Usage: "signal text, e.g. 'LONG EURUSD 1.1000 1.0950 1.1100'"},
		},
		Description: `Parse a positional signal from the command line and queue it`,
	}
	setKeyCMD = cli.Command{
		Name:   "setkey",
		Usage:  "store broker credentials",
		Action: setKeyAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "account, a", Usage: "broker account id"},
			cli.StringFlag{Name: "key, k", Usage: "broker API key"},
			cli.StringFlag{Name: "env, e", Usage: "practice or live", Value: "practice"},
		},
		Description: `Encrypt a broker API key and store it in the database`,
	}
)

// buildBroker resolves credentials from the environment first, then from the
// encrypted store, and returns a ready client.
func buildBroker(ctx context.Context) (*connectors.OandaClient, error) {
	config := connectors.GetConfig()

	apiKey := config.OandaAPIKey
	accountID := config.OandaAccountID
	baseURL := config.BaseURL()

	if apiKey == "" {
		configRepo := repository.NewBrokerConfigRepository()

		stored, err := configRepo.FindActive(ctx)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, errors.New("no broker credentials: set OANDA_API_KEY or run setkey")
		}

		apiKey, err = security.DecryptString(stored.APIKeyHash)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored API key: %w", err)
		}
		accountID = stored.BrokerAccountID
		if stored.Environment == "live" {
			baseURL = "https://api-fxtrade.oanda.com"
		} else {
			baseURL = "https://api-fxpractice.oanda.com"
		}

		if err := configRepo.TouchLastUsed(ctx, stored.ID); err != nil {
			logger.WithError(err).Warn("Failed to stamp credential usage")
		}
	}

	return connectors.NewOandaClient(apiKey, accountID, baseURL), nil
}

func serverAction(_ *cli.Context) error {
	logger.Info("Starting API server with trading loop")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	broker, err := buildBroker(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build broker client")
	}

	signals := repository.NewSignalRepository()
	trades := repository.NewTradeRepository()
	positions := repository.NewPositionRepository()
	accounts := repository.NewAccountRepository()
	settings := repository.NewSettingsRepository()

	engine := controller.NewOrderEngine(nil, broker, signals, trades)
	reconciler := controller.NewReconciler(nil, broker, trades, positions, accounts)

	go func() {
		if err := executors.NewLoop(engine, reconciler, settings).Start(ctx); err != nil {
			logger.WithError(err).Error("Trading loop failed")
		}
	}()

	deps := server.Deps{
		Ingestor:   ingest.NewIngestor(signals),
		Reconciler: reconciler,
		Signals:    signals,
		Trades:     trades,
		Positions:  positions,
		Accounts:   accounts,
		Settings:   settings,
	}

	port := PORT
	if port == "" {
		port = server.GetConfig().Port
	}

	server.StartServer(port, deps)
	return nil
}

func executorAction(_ *cli.Context) error {
	logger.Info("Starting trading loop")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	broker, err := buildBroker(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build broker client")
	}

	signals := repository.NewSignalRepository()
	trades := repository.NewTradeRepository()
	positions := repository.NewPositionRepository()
	accounts := repository.NewAccountRepository()
	settings := repository.NewSettingsRepository()

	engine := controller.NewOrderEngine(nil, broker, signals, trades)
	reconciler := controller.NewReconciler(nil, broker, trades, positions, accounts)

	loop := executors.NewLoop(engine, reconciler, settings)
	if err := loop.Start(ctx); err != nil {
		logger.WithError(err).Error("Trading loop failed")
		return err
	}

	return nil
}

func closeAllAction(_ *cli.Context) error {
	ctx := context.Background()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	broker, err := buildBroker(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build broker client")
	}

	trades := repository.NewTradeRepository()
	positions := repository.NewPositionRepository()
	accounts := repository.NewAccountRepository()

	reconciler := controller.NewReconciler(nil, broker, trades, positions, accounts)

	result, err := reconciler.CloseAllTrades(ctx)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"closed": result.Closed,
		"failed": result.Failed,
	}).Info("Close-all finished")

	if result.Failed > 0 {
		return fmt.Errorf("%d trade(s) failed to close", result.Failed)
	}
	return nil
}

func signalAction(c *cli.Context) error {
	message := c.String("message")
	if message == "" {
		return errors.New("--message is required")
	}

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	ingestor := ingest.NewIngestor(repository.NewSignalRepository())

	queued, err := ingestor.OnRawMessage(context.Background(), "", message, model.SignalOriginManual)
	if err != nil {
		return fmt.Errorf("message not parseable: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"signal_id": queued.ID,
		"symbol":    queued.Symbol,
		"action":    queued.Action,
	}).Info("Signal queued")

	return nil
}

func setKeyAction(c *cli.Context) error {
	account := c.String("account")
	key := c.String("key")
	env := c.String("env")

	if account == "" || key == "" {
		return errors.New("--account and --key are required")
	}
	if env != "practice" && env != "live" {
		return errors.New("--env must be practice or live")
	}

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	encrypted, err := security.EncryptString(key)
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}

	configRepo := repository.NewBrokerConfigRepository()
	if err := configRepo.Upsert(context.Background(), &model.BrokerConfig{
		BrokerAccountID: account,
		APIKeyHash:      encrypted,
		Environment:     env,
		IsActive:        true,
	}); err != nil {
		return err
	}

	logger.WithField("broker_account_id", account).Info("Broker credentials stored")
	return nil
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
