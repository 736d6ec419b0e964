// Package engine is the central orchestrator of the scout pipeline.
//
// It wires together all subsystems:
//
//  1. Trending ingest seeds candidate tokens from DexScreener, GeckoTerminal
//     and Birdeye.
//  2. Discovery walks recent seed tokens and records their buyers; the whale
//     pass keeps only large buys.
//  3. The monitor polls the ranked watchlist for new trades, feeding the
//     confluence detector, the alert sinks and the paper trader.
//  4. Rollup recomputes 30-day wallet stats; nightly maintenance adds and
//     soft-removes watchlist wallets.
//  5. Every job runs on the cron scheduler with skip-if-running semantics.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"alpha-scout/internal/alert"
	"alpha-scout/internal/analytics"
	"alpha-scout/internal/api"
	"alpha-scout/internal/config"
	"alpha-scout/internal/confluence"
	"alpha-scout/internal/ingest"
	"alpha-scout/internal/monitor"
	"alpha-scout/internal/paper"
	"alpha-scout/internal/scheduler"
	"alpha-scout/internal/source"
	"alpha-scout/internal/store"
	"alpha-scout/internal/watchlist"
	"alpha-scout/pkg/types"
)

// Engine owns every pipeline component and the scheduler that drives them.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	store    *store.Store
	redis    *redis.Client
	router   *source.PriceRouter
	adapters map[types.Chain]source.ChainAdapter

	detector *confluence.Detector
	ranker   *watchlist.Ranker
	trader   *paper.Trader
	alerts   *alert.Multi
	sched    *scheduler.Scheduler
}

// New creates and wires all engine components. Redis and the paper trader
// are optional; everything else is required.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	ds := source.NewDexScreener(cfg.Sources, logger)
	gt := source.NewGeckoTerminal(cfg.Sources, logger)
	be := source.NewBirdeye(cfg.Sources, logger)
	cg := source.NewCoinGecko(cfg.Sources, logger)
	router := source.NewPriceRouter(cfg.Sources, ds, be, cg, logger)

	chains := cfg.ChainList()
	adapters := make(map[types.Chain]source.ChainAdapter, len(chains))
	for _, chain := range chains {
		if chain == types.Solana {
			adapters[chain] = source.NewSolanaAdapter(cfg.Sources, router, logger)
			continue
		}
		adapter, err := source.NewEVMAdapter(chain, cfg.Sources, cfg.Discovery.PoolMinOccurrence, router, logger)
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", chain, err)
		}
		adapters[chain] = adapter
	}

	detector := confluence.NewDetector(rdb, cfg.Confluence, logger)
	ranker := watchlist.NewRanker(st, cfg.Watchlist, logger)

	var trader *paper.Trader
	if cfg.Paper.Enabled {
		trader, err = paper.NewTrader(cfg.Paper, logger)
		if err != nil {
			return nil, err
		}
	}

	alerts := alert.NewMulti()
	if cfg.Telegram.BotToken != "" {
		alerts.Add(alert.NewTelegram(cfg.Telegram, logger))
	} else {
		logger.Info("no telegram token, alerts are log and store only")
		alerts.Add(alert.Noop{})
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.With("component", "engine"),
		store:    st,
		redis:    rdb,
		router:   router,
		adapters: adapters,
		detector: detector,
		ranker:   ranker,
		trader:   trader,
		alerts:   alerts,
		sched:    scheduler.New(logger),
	}

	if err := e.registerJobs(ds, gt, be); err != nil {
		st.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) registerJobs(ds *source.DexScreener, gt *source.GeckoTerminal, be *source.Birdeye) error {
	chains := e.cfg.ChainList()

	fetches := []ingest.TrendingFetch{
		{Name: ds.Name(), Fetch: ds.Trending},
		{Name: gt.Name(), Fetch: gt.Trending},
	}
	if e.cfg.Sources.BirdeyeAPIKey != "" {
		fetches = append(fetches, ingest.TrendingFetch{
			Name:   be.Name(),
			Chains: []types.Chain{types.Solana},
			Fetch: func(ctx context.Context, chain types.Chain) ([]types.SeedEntry, error) {
				return be.Trending(ctx)
			},
		})
	}
	trending := ingest.NewTrending(e.store, fetches, chains, e.cfg.Discovery, e.logger)
	discovery := ingest.NewDiscovery(e.store, e.adapters, e.cfg.Discovery, e.logger)
	rollup := analytics.NewRollup(e.store, e.router, e.logger)
	maintenance := watchlist.NewMaintenance(e.store, e.ranker, e.cfg.Watchlist, e.logger)

	mon := monitor.New(monitor.Deps{
		Store:    e.store,
		Adapters: e.adapters,
		Ranker:   e.ranker,
		Detector: e.detector,
		Trader:   e.trader,
		Pricer:   e.router,
		Alerter:  e.alerts,
		Redis:    e.redis,
	}, e.cfg.Discovery.BuyerFetchLimit, e.cfg.Paper.Enabled, e.logger)

	jobs := e.cfg.Jobs
	every := func(minutes int) time.Duration { return time.Duration(minutes) * time.Minute }

	if err := e.sched.AddEvery("runner_seed", every(jobs.RunnerSeedMinutes), trending.Run); err != nil {
		return err
	}
	if err := e.sched.AddEvery("wallet_discovery", every(jobs.WalletDiscoveryMinutes), discovery.RunWallets); err != nil {
		return err
	}
	if err := e.sched.AddEvery("whale_discovery", every(jobs.WhaleDiscoveryMinutes), discovery.RunWhales); err != nil {
		return err
	}
	if err := e.sched.AddEvery("wallet_monitoring", every(jobs.WalletMonitoringMinutes), mon.Run); err != nil {
		return err
	}
	if err := e.sched.AddEvery("stats_rollup", every(jobs.StatsRollupMinutes), rollup.Run); err != nil {
		return err
	}
	if e.trader != nil {
		manager := paper.NewManager(e.trader, e.router, e.detector, e.logger)
		run := func(ctx context.Context, now time.Time) error { return manager.Run(ctx) }
		if err := e.sched.AddEvery("position_management", every(jobs.PositionManagementMinutes), run); err != nil {
			return err
		}
	}
	return e.sched.AddCron("watchlist_maintenance", jobs.WatchlistMaintenanceCron, time.Hour, maintenance.Run)
}

// Start begins the scheduled pipeline and kicks the seed job so a fresh
// deployment has tokens to work with before the first tick.
func (e *Engine) Start(ctx context.Context) {
	e.sched.Start(ctx)
	go func() {
		if err := e.sched.RunNow("runner_seed"); err != nil {
			e.logger.Error("startup seed run failed", "error", err)
		}
	}()
	e.logger.Info("engine started", "chains", e.cfg.Chains)
}

// Stop halts the scheduler, waits for in-flight jobs, and closes resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.sched.Stop()
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Error("redis close failed", "error", err)
		}
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("store close failed", "error", err)
	}
	e.logger.Info("shutdown complete")
}

// AddAlertSink registers an extra alert destination, e.g. the dashboard
// WebSocket feed.
func (e *Engine) AddAlertSink(a alert.Alerter) {
	e.alerts.Add(a)
}

// APIDeps exposes the read surfaces the dashboard server needs.
func (e *Engine) APIDeps() api.Deps {
	return api.Deps{
		Store:    e.store,
		Trader:   e.trader,
		Ranker:   e.ranker,
		Sched:    e.sched,
		Router:   e.router,
		Detector: e.detector,
		Full:     e.cfg,
	}
}
