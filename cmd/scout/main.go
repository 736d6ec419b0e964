// Alpha Scout — on-chain wallet discovery and signal pipeline.
//
// Architecture:
//
//	main.go                  — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go         — orchestrator: wires ingest → discovery → monitor → alerts on the scheduler
//	ingest/trending.go       — pulls trending tokens from DexScreener, GeckoTerminal, Birdeye
//	ingest/discovery.go      — records buyers of seed tokens; the whale pass keeps only large buys
//	source/evm.go, solana.go — chain adapters over Alchemy and Helius JSON-RPC
//	source/pricerouter.go    — multi-source USD price resolution with failure-aware fallback
//	analytics/               — FIFO P&L engine, EarlyScore, bot-wallet filter, 30-day stats rollup
//	watchlist/               — composite wallet ranking, nightly add/remove, adaptive weights
//	confluence/detector.go   — Redis sliding windows of distinct buyers per token
//	monitor/monitor.go       — polls the watchlist for new trades, fires alerts, enters paper trades
//	paper/trader.go          — paper-trading state machine with tiered sizing and ordered exits
//	alert/alert.go           — Telegram sink plus dashboard fan-out
//	api/                     — read-only dashboard: JSON endpoints and a WebSocket alert feed
//	store/                   — sqlite entity store: tokens, trades, wallets, stats, alerts
//
// How it finds alpha:
//
//	Trending tokens seed the pipeline. The wallets that bought them early
//	are scored on realized P&L, activity and entry timing; the best are
//	monitored. When several monitored wallets buy the same token inside a
//	short window, that confluence is alerted and paper-traded to measure
//	whether following them would have paid.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"alpha-scout/internal/alert"
	"alpha-scout/internal/api"
	"alpha-scout/internal/config"
	"alpha-scout/internal/engine"
	"alpha-scout/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SCOUT_CONFIG"); p != "" {
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

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng.APIDeps(), logger)
		eng.AddAlertSink(alert.Func(func(ctx context.Context, p types.AlertPayload) error {
			apiServer.NotifyAlert(p)
			return nil
		}))
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng.Start(ctx)

	logger.Info("alpha scout started",
		"chains", cfg.Chains,
		"watchlist_top_k", cfg.Watchlist.TopK,
		"confluence_min_wallets", cfg.Confluence.MinWallets,
		"paper_trading", cfg.Paper.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
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
