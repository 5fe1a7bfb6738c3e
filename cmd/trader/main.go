package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/database"
	"crypto-sim-trader/internal/feed"
	"crypto-sim-trader/internal/logger"
	"crypto-sim-trader/internal/trader"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize the trade journal database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open trade journal", zap.Error(err))
	}
	log.Info("Trade journal ready", zap.String("dsn", cfg.Database.DSN))

	// Build the market data feed
	var source feed.Source
	switch cfg.Feed.Source {
	case "rest":
		source = feed.NewRestSource(&cfg.Feed, cfg.Symbols, log)
	default:
		source = feed.NewStreamSource(&cfg.Feed, cfg.Symbols, log)
	}
	monitor := feed.NewMonitor(&cfg.Feed, source, log)

	// Initialize and start the trading engine
	engine := trader.NewEngine(log, &cfg, monitor, db)
	if err := engine.Start(); err != nil {
		log.Fatal("Failed to start trading engine", zap.Error(err))
	}

	// Start the reporting API
	apiServer := trader.NewAPIServer(engine, cfg.Server.Port, log)
	apiServer.Start()

	// Wait for a shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Trader has been shut down.")
}
