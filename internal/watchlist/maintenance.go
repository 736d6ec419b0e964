package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/store"
)

// Maintenance applies the nightly add and soft-remove rules to the
// persisted watchlist. Removal is a tombstone: the entry stays with a
// reason so a recovered wallet resurfaces with its original added_at.
type Maintenance struct {
	store  *store.Store
	ranker *Ranker
	cfg    config.WatchlistConfig
	logger *slog.Logger
}

func NewMaintenance(st *store.Store, ranker *Ranker, cfg config.WatchlistConfig, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		store:  st,
		ranker: ranker,
		cfg:    cfg,
		logger: logger.With("component", "watchlist_maintenance"),
	}
}

// Run evaluates every rolled-up wallet against the add thresholds and every
// active entry against the remove thresholds.
func (m *Maintenance) Run(ctx context.Context, now time.Time) error {
	stats, err := m.store.AllWalletStats(ctx)
	if err != nil {
		return fmt.Errorf("watchlist maintenance: %w", err)
	}

	weights := m.ranker.Weights(ctx, now)
	scores := make(map[string]float64)
	for _, rw := range ScoreAll(stats, weights, m.cfg) {
		scores[string(rw.Chain)+"|"+rw.Address] = rw.Score
	}

	added := 0
	for _, st := range stats {
		if !m.meetsAddCriteria(st) {
			continue
		}
		score := scores[string(st.Chain)+"|"+st.Address]
		if err := m.store.UpsertWatchlistEntry(ctx, st.Chain, st.Address, score, now); err != nil {
			m.logger.Error("watchlist add failed", "wallet", st.Address, "error", err)
			continue
		}
		added++
	}

	entries, err := m.store.ActiveWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("watchlist maintenance: %w", err)
	}

	byKey := make(map[string]store.WalletStats, len(stats))
	for _, st := range stats {
		byKey[string(st.Chain)+"|"+st.Address] = st
	}

	removed := 0
	for _, e := range entries {
		st, have := byKey[string(e.Chain)+"|"+e.Address]
		reason := ""
		switch {
		case !have:
			reason = "no_stats"
		case st.RealizedPnLUSD < m.cfg.RemoveRealizedBelow:
			reason = "negative_pnl"
		case st.MaxDrawdownPct > m.cfg.RemoveDrawdownAbove:
			reason = "drawdown"
		case st.TradesCount < m.cfg.RemoveTradesBelow:
			reason = "inactive"
		}
		if reason == "" {
			continue
		}
		if err := m.store.DeactivateWatchlistEntry(ctx, e.Chain, e.Address, reason, now); err != nil {
			m.logger.Error("watchlist remove failed", "wallet", e.Address, "error", err)
			continue
		}
		m.logger.Info("watchlist wallet removed", "wallet", e.Address, "chain", e.Chain, "reason", reason)
		removed++
	}

	m.logger.Info("watchlist maintenance complete", "added", added, "removed", removed)
	return nil
}

func (m *Maintenance) meetsAddCriteria(st store.WalletStats) bool {
	return st.TradesCount >= m.cfg.AddMinTrades30d &&
		st.RealizedPnLUSD >= m.cfg.AddMinRealizedUSD &&
		st.BestTradeMultiple >= m.cfg.AddMinBestMultiple
}
