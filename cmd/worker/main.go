package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/janhavidudhat/CSC468-group3/internal/audit"
	"github.com/janhavidudhat/CSC468-group3/internal/config"
	"github.com/janhavidudhat/CSC468-group3/internal/dispatch"
	"github.com/janhavidudhat/CSC468-group3/internal/engine"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
	"github.com/janhavidudhat/CSC468-group3/internal/ops"
	"github.com/janhavidudhat/CSC468-group3/internal/quote"
	"github.com/janhavidudhat/CSC468-group3/internal/transport"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running worker")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:OPS_PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("OPS_PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ledger.
	var led ledger.Ledger
	switch cfg.LedgerDriver {
	case "sqlite":
		led, err = ledger.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error("open sqlite ledger", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		led = ledger.NewMemory()
	}
	defer led.Close()

	// Quote source: legacy quote server behind a short-TTL cache, or a
	// fixed source for local runs without QUOTE_ADDR.
	var quotes quote.Source
	if cfg.QuoteAddr != "" {
		cached, err := quote.NewCached(quote.NewClient(cfg.QuoteAddr), cfg.QuoteCacheTTL)
		if err != nil {
			logger.Error("init quote cache", slog.String("error", err.Error()))
			os.Exit(1)
		}
		quotes = cached
	} else {
		logger.Warn("QUOTE_ADDR not set, serving fixed test prices")
		quotes = quote.NewFixedSource(map[string]int64{})
	}

	// Engines.
	pending := engine.NewPendingTable()
	registry := engine.NewRegistry()
	reservations := engine.NewReservationEngine(led, quotes, pending, cfg.ReservationTTL, logger)
	triggers := engine.NewTriggerEngine(led, pending, registry, logger)
	poller := engine.NewPoller(cfg.PollInterval, registry, led, quotes, logger)

	// Audit log and dispatcher.
	auditLog := audit.NewLog(cfg.ServerName)
	dispatcher := dispatch.New(led, quotes, reservations, triggers, auditLog, logger)

	// Kafka transport.
	responses := transport.NewPublisher(cfg.KafkaBrokers, cfg.ResponseTopic, logger)
	defer responses.Close()
	consumer := transport.NewConsumer(cfg.KafkaBrokers, cfg.CommandTopic, cfg.GroupID, dispatcher, responses, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start trigger polling goroutine.
	poller.Start(ctx)

	// Start command consumer.
	consumerErr := make(chan error, 1)
	go func() {
		logger.Info("consuming commands",
			slog.String("topic", cfg.CommandTopic),
			slog.String("group", cfg.GroupID),
		)
		consumerErr <- consumer.Run(ctx)
	}()

	// Ops HTTP server.
	router := ops.NewRouter(led, reservations, registry, auditLog, logger)
	addr := fmt.Sprintf(":%d", cfg.OpsPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	go func() {
		logger.Info("ops server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM or a consumer failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-consumerErr:
		if err != nil {
			logger.Error("consumer stopped", slog.String("error", err.Error()))
		}
	}

	// Graceful shutdown: stop ops server, cancel context (stops poller
	// and consumer).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("worker stopped")
}
