// Command marketmaker runs a perpetual-futures market-making engine:
// entry point loads config, starts the engine, and waits for SIGINT/SIGTERM
// to shut down cleanly.
//
// Architecture:
//
//	main.go                — entry point: loads config, starts engine, waits for signal
//	engine/engine.go       — orchestrator: wires book/inventory/quote/executor per contract
//	book/book.go,manager.go — local order book mirror with bootstrap + resync state machine
//	feature/feature.go     — mid price and imbalance derived from the local book
//	inventory/tracker.go   — tracks signed per-contract position from REST + trade stream
//	policy/policy.go       — inventory-aware size reduction and quote distance/threshold math
//	quote/generator.go     — combines features + policy into a two-sided target quote
//	order/manager.go       — order lifecycle bookkeeping (pending/live/cancelled/filled)
//	executor/executor.go   — cancel-then-submit reconciliation against the venue
//	venue/client.go,ws.go  — REST client and WebSocket feeds for the configured venue
//	orderlog/csv.go        — append-only CSV log of every order lifecycle transition
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketmaker/internal/config"
	"marketmaker/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	logger.Info("market maker started", "contracts", len(cfg.Contracts), "dry_run", cfg.DryRun)

	<-ctx.Done()
	logger.Info("received shutdown signal")
	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
