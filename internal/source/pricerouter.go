package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// priceFunc is one price source in the router's fixed order.
type priceFunc struct {
	name  string
	fetch func(ctx context.Context, chain types.Chain, token string) (float64, error)
}

// PriceRouter resolves token prices through a fixed source order
// (DexScreener, then Birdeye, then CoinGecko). A source that keeps failing
// is skipped until its failure budget resets; budgets clear on any success
// and in full on a periodic schedule. Successful quotes are cached briefly
// so the position-marking loops do not hammer the upstreams.
//
// When every source fails the router returns a stale quote with price 0.
// Callers must never treat a stale zero as a real mark.
type PriceRouter struct {
	mu        sync.Mutex
	sources   []priceFunc
	failures  map[string]int
	cache     map[string]types.TokenQuote
	ttl       time.Duration
	limit     int
	resetEach time.Duration
	lastReset time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewPriceRouter wires the production source order.
func NewPriceRouter(cfg config.SourcesConfig, ds *DexScreener, be *Birdeye, cg *CoinGecko, logger *slog.Logger) *PriceRouter {
	return newPriceRouter(cfg, []priceFunc{
		{name: ds.Name(), fetch: ds.TokenPriceUSD},
		{name: be.Name(), fetch: be.TokenPriceUSD},
		{name: cg.Name(), fetch: cg.TokenPriceUSD},
	}, logger)
}

func newPriceRouter(cfg config.SourcesConfig, sources []priceFunc, logger *slog.Logger) *PriceRouter {
	ttl := cfg.PriceCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	limit := cfg.PriceFailureLimit
	if limit <= 0 {
		limit = 5
	}
	resetEach := cfg.PriceFailureReset
	if resetEach <= 0 {
		resetEach = time.Hour
	}
	return &PriceRouter{
		sources:   sources,
		failures:  make(map[string]int),
		cache:     make(map[string]types.TokenQuote),
		ttl:       ttl,
		limit:     limit,
		resetEach: resetEach,
		lastReset: time.Now(),
		now:       time.Now,
		logger:    logger.With("component", "price_router"),
	}
}

// TokenPrice resolves the token's current USD price.
func (r *PriceRouter) TokenPrice(ctx context.Context, chain types.Chain, token string) types.TokenQuote {
	key := string(chain) + "|" + token
	now := r.now()

	r.mu.Lock()
	r.maybeReset(now)
	if q, ok := r.cache[key]; ok && now.Sub(q.FetchedAt) < r.ttl && !q.Stale {
		r.mu.Unlock()
		return q
	}
	r.mu.Unlock()

	for _, src := range r.sources {
		r.mu.Lock()
		skip := r.failures[src.name] >= r.limit
		r.mu.Unlock()
		if skip {
			continue
		}

		price, err := src.fetch(ctx, chain, token)
		if err == nil && price > 0 {
			q := types.TokenQuote{PriceUSD: price, Source: src.name, FetchedAt: now}
			r.mu.Lock()
			r.failures[src.name] = 0
			r.cache[key] = q
			r.mu.Unlock()
			return q
		}

		r.mu.Lock()
		r.failures[src.name]++
		count := r.failures[src.name]
		r.mu.Unlock()
		if err != nil {
			r.logger.Debug("price source failed", "source", src.name, "token", token, "failures", count, "error", err)
		}
	}

	r.logger.Warn("all price sources failed", "chain", chain, "token", token)
	return types.TokenQuote{Stale: true, FetchedAt: now}
}

// FailureCounts returns a copy of the per-source failure counters, for the
// health endpoint.
func (r *PriceRouter) FailureCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.failures))
	for name, n := range r.failures {
		out[name] = n
	}
	return out
}

// maybeReset clears all failure budgets once per reset interval so dead
// sources get another chance. Caller holds the lock.
func (r *PriceRouter) maybeReset(now time.Time) {
	if now.Sub(r.lastReset) < r.resetEach {
		return
	}
	for name := range r.failures {
		r.failures[name] = 0
	}
	r.lastReset = now
	r.logger.Info("price source failure counts reset")
}
