package ingest

import (
	"context"
	"log/slog"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/source"
	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

// Whale discovery pages deeper than regular discovery so large wallets
// with sparse activity still surface.
const whaleFetchMultiplier = 3

// Discovery mines recently seeded tokens for the wallets buying them.
type Discovery struct {
	store    *store.Store
	adapters map[types.Chain]source.ChainAdapter
	cfg      config.DiscoveryConfig
	logger   *slog.Logger
}

func NewDiscovery(st *store.Store, adapters map[types.Chain]source.ChainAdapter, cfg config.DiscoveryConfig, logger *slog.Logger) *Discovery {
	return &Discovery{
		store:    st,
		adapters: adapters,
		cfg:      cfg,
		logger:   logger.With("component", "discovery"),
	}
}

// RunWallets discovers buyers of recent seeds. Tokens with too few unique
// buyers in the fetched page are skipped as too quiet to mine.
func (d *Discovery) RunWallets(ctx context.Context, now time.Time) error {
	return d.run(ctx, now, d.cfg.BuyerFetchLimit, 0, d.cfg.MinUniqueBuyers)
}

// RunWhales discovers only large buyers, paging a deeper history and
// keeping trades at or above the whale threshold.
func (d *Discovery) RunWhales(ctx context.Context, now time.Time) error {
	return d.run(ctx, now, d.cfg.BuyerFetchLimit*whaleFetchMultiplier, d.cfg.WhaleMinTradeUSD, 0)
}

func (d *Discovery) run(ctx context.Context, now time.Time, fetchLimit int, minTradeUSD float64, minUniqueBuyers int) error {
	horizon := time.Duration(d.cfg.SeedHorizonHours) * time.Hour
	seeds, err := d.store.RecentSeeds(ctx, now.Add(-horizon), d.cfg.SeedTokenLimit)
	if err != nil {
		return err
	}

	wallets, trades := 0, 0
	for _, seed := range seeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		adapter, ok := d.adapters[seed.Chain]
		if !ok {
			continue
		}
		if types.IsExcluded(seed.Chain, seed.Token) {
			continue
		}
		if token, err := d.store.GetToken(ctx, seed.Chain, seed.Token); err == nil &&
			token != nil && token.IsHoneypot != nil && *token.IsHoneypot {
			continue
		}

		buys, err := adapter.RecentTokenBuyers(ctx, seed.Token, fetchLimit)
		if err != nil {
			d.logger.Warn("buyer scan failed", "chain", seed.Chain, "token", seed.Token, "error", err)
			continue
		}

		if minUniqueBuyers > 0 && uniqueWallets(buys) < minUniqueBuyers {
			continue
		}

		for _, trade := range buys {
			if minTradeUSD > 0 && trade.ValueUSD < minTradeUSD {
				continue
			}
			created, err := d.store.TouchWallet(ctx, trade.Chain, trade.Wallet, trade.Timestamp)
			if err != nil {
				d.logger.Error("wallet upsert failed", "wallet", trade.Wallet, "error", err)
				continue
			}
			if created {
				wallets++
			}
			inserted, err := d.store.InsertTrade(ctx, trade)
			if err != nil {
				d.logger.Error("trade insert failed", "tx", trade.TxHash, "error", err)
				continue
			}
			if inserted {
				trades++
			}
		}
	}

	d.logger.Info("discovery pass complete",
		"seeds", len(seeds), "new_wallets", wallets, "new_trades", trades)
	return nil
}

func uniqueWallets(trades []types.Trade) int {
	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		seen[t.Wallet] = struct{}{}
	}
	return len(seen)
}
