// Package ingest pulls the outside world into the entity store: trending
// token seeds from the aggregators, and wallets discovered by scanning
// recent buyers of those seeds.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

// TrendingFetch is one trending source bound to the chains it serves.
type TrendingFetch struct {
	Name   string
	Chains []types.Chain
	Fetch  func(ctx context.Context, chain types.Chain) ([]types.SeedEntry, error)
}

// serves reports whether the source covers the chain. An empty Chains list
// means every chain.
func (f TrendingFetch) serves(chain types.Chain) bool {
	if len(f.Chains) == 0 {
		return true
	}
	for _, c := range f.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// Trending ingests trending snapshots from every (chain, source) pair.
type Trending struct {
	store   *store.Store
	sources []TrendingFetch
	chains  []types.Chain
	cfg     config.DiscoveryConfig
	logger  *slog.Logger
}

func NewTrending(st *store.Store, sources []TrendingFetch, chains []types.Chain, cfg config.DiscoveryConfig, logger *slog.Logger) *Trending {
	return &Trending{
		store:   st,
		sources: sources,
		chains:  chains,
		cfg:     cfg,
		logger:  logger.With("component", "trending_ingest"),
	}
}

// Run takes one snapshot. Every token is upserted; seed rows are skipped
// for honeypots and for tokens taxed above the configured ceiling. Source
// failures cost that (chain, source) pair only.
func (t *Trending) Run(ctx context.Context, now time.Time) error {
	seeded := 0
	for _, chain := range t.chains {
		seen := make(map[string]struct{})
		for _, src := range t.sources {
			if !src.serves(chain) {
				continue
			}
			entries, err := src.Fetch(ctx, chain)
			if err != nil {
				t.logger.Warn("trending fetch failed", "source", src.Name, "chain", chain, "error", err)
				continue
			}

			for _, e := range entries {
				if _, dup := seen[e.Token]; dup {
					continue
				}
				seen[e.Token] = struct{}{}

				err := t.store.UpsertToken(ctx, store.Token{
					Address:      e.Token,
					Chain:        chain,
					Symbol:       e.Symbol,
					FirstSeenAt:  now,
					LastPriceUSD: e.PriceUSD,
					LiquidityUSD: e.LiquidityUSD,
					IsHoneypot:   e.IsHoneypot,
					BuyTaxPct:    e.BuyTaxPct,
					SellTaxPct:   e.SellTaxPct,
				})
				if err != nil {
					t.logger.Error("token upsert failed", "token", e.Token, "error", err)
					continue
				}

				if e.IsHoneypot != nil && *e.IsHoneypot {
					continue
				}
				if e.BuyTaxPct > t.cfg.MaxTaxPct || e.SellTaxPct > t.cfg.MaxTaxPct {
					continue
				}
				if err := t.store.InsertSeed(ctx, e, src.Name, now); err != nil {
					t.logger.Error("seed insert failed", "token", e.Token, "error", err)
					continue
				}
				seeded++
			}
		}
	}
	t.logger.Info("trending snapshot complete", "seeded", seeded)
	return nil
}
