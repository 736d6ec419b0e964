// Package watchlist ranks discovered wallets into the monitored set and
// runs the nightly add/remove maintenance. Scoring weights can adapt to the
// measured win rate of recent alerts; the adaptation is recomputed from the
// alert log on every pass, never persisted.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/store"
)

// Weights are the composite score components. They always sum to 1.
type Weights struct {
	PnL      float64
	Activity float64
	Early    float64
}

// DefaultWeights is the baseline schedule.
func DefaultWeights() Weights {
	return Weights{PnL: 0.30, Activity: 0.30, Early: 0.40}
}

// Adaptation thresholds. A win is an alerted token whose latest recorded
// price is at least 10% above the alert price.
const (
	adaptiveMinSample  = 10
	adaptiveWinRateLow = 0.5
	adaptiveWinRateHi  = 0.7
	adaptiveWinReturn  = 1.10
)

// RankedWallet is one member of the monitored set.
type RankedWallet struct {
	store.WalletStats
	Score  float64 `json:"composite_score"`
	Source string  `json:"source"`
}

// Ranker computes the monitored set from rolled-up wallet stats.
type Ranker struct {
	store  *store.Store
	cfg    config.WatchlistConfig
	logger *slog.Logger
}

func NewRanker(st *store.Store, cfg config.WatchlistConfig, logger *slog.Logger) *Ranker {
	return &Ranker{store: st, cfg: cfg, logger: logger.With("component", "watchlist")}
}

// Weights returns the scoring weights in effect, adapting from recent alert
// outcomes when enabled.
func (r *Ranker) Weights(ctx context.Context, now time.Time) Weights {
	if !r.cfg.AdaptiveWeights {
		return DefaultWeights()
	}
	return r.adaptWeights(ctx, now)
}

// adaptWeights shifts weight toward EarlyScore when recent alerts mostly
// missed (timing matters more) and toward P&L when they mostly hit (follow
// proven winners). Below the minimum sample the defaults stand.
func (r *Ranker) adaptWeights(ctx context.Context, now time.Time) Weights {
	lookback := time.Duration(r.cfg.AdaptiveLookbackDays) * 24 * time.Hour
	alerts, err := r.store.AlertsSince(ctx, now.Add(-lookback), 1000)
	if err != nil {
		r.logger.Warn("adaptive weights unavailable, using defaults", "error", err)
		return DefaultWeights()
	}
	if len(alerts) < adaptiveMinSample {
		return DefaultWeights()
	}

	wins := 0
	scored := 0
	for _, a := range alerts {
		if a.Payload.PriceUSD <= 0 {
			continue
		}
		last, err := r.store.LastTradePrice(ctx, a.Chain, a.Token)
		if err != nil || last <= 0 {
			continue
		}
		scored++
		if last >= a.Payload.PriceUSD*adaptiveWinReturn {
			wins++
		}
	}
	if scored < adaptiveMinSample {
		return DefaultWeights()
	}

	winRate := float64(wins) / float64(scored)
	w := DefaultWeights()
	switch {
	case winRate < adaptiveWinRateLow:
		w = Weights{PnL: 0.25, Activity: 0.25, Early: 0.50}
	case winRate > adaptiveWinRateHi:
		w = Weights{PnL: 0.40, Activity: 0.25, Early: 0.35}
	}
	r.logger.Info("alert win rate measured",
		"sample", scored, "win_rate", fmt.Sprintf("%.2f", winRate),
		"w_pnl", w.PnL, "w_activity", w.Activity, "w_early", w.Early)
	return w
}

// ScoreAll filters stats through the auto-discovery gate and scores the
// survivors, highest first. The P&L component is percentile-normalized
// within the surviving population.
func ScoreAll(stats []store.WalletStats, w Weights, cfg config.WatchlistConfig) []RankedWallet {
	var pool []store.WalletStats
	for _, st := range stats {
		if st.UnrealizedPnLUSD > cfg.PoolMinUnrealizedUSD && st.TradesCount >= cfg.PoolMinTrades {
			pool = append(pool, st)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	pnls := make([]float64, len(pool))
	for i, st := range pool {
		pnls[i] = st.UnrealizedPnLUSD
	}
	sort.Float64s(pnls)

	ranked := make([]RankedWallet, 0, len(pool))
	for _, st := range pool {
		activity := float64(st.TradesCount) * 10
		if activity > 100 {
			activity = 100
		}
		score := w.PnL*percentile(pnls, st.UnrealizedPnLUSD) +
			w.Activity*activity +
			w.Early*st.EarlyScoreMedian
		ranked = append(ranked, RankedWallet{WalletStats: st, Score: score, Source: "auto"})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Address < ranked[j].Address
	})
	return ranked
}

// percentile returns the rank of v within sorted values, 0 to 100.
func percentile(sorted []float64, v float64) float64 {
	n := sort.SearchFloat64s(sorted, v)
	for n < len(sorted) && sorted[n] <= v {
		n++
	}
	return float64(n) / float64(len(sorted)) * 100
}

// MonitoredSet is top-K auto-discovered wallets plus every active custom
// wallet, deduplicated by (chain, address) with custom entries winning.
//
// The set is re-derived from wallet stats on every call rather than read
// from the watchlist_entries table; the nightly maintenance rows are an
// audit trail of adds and removals, not the live set. A wallet whose stats
// decay therefore drops out on the next cycle without waiting for the
// nightly pass.
func (r *Ranker) MonitoredSet(ctx context.Context, now time.Time) ([]RankedWallet, error) {
	stats, err := r.store.AllWalletStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitored set: %w", err)
	}

	ranked := ScoreAll(stats, r.Weights(ctx, now), r.cfg)
	if len(ranked) > r.cfg.TopK {
		ranked = ranked[:r.cfg.TopK]
	}

	seen := make(map[string]struct{}, len(ranked))
	for _, rw := range ranked {
		seen[string(rw.Chain)+"|"+rw.Address] = struct{}{}
	}

	custom, err := r.store.CustomWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitored set custom: %w", err)
	}
	for _, cw := range custom {
		key := string(cw.Chain) + "|" + cw.Address
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rw := RankedWallet{Source: "custom"}
		rw.Address = cw.Address
		rw.Chain = cw.Chain
		if st, err := r.store.GetWalletStats(ctx, cw.Chain, cw.Address); err == nil && st != nil {
			rw.WalletStats = *st
		}
		ranked = append(ranked, rw)
	}
	return ranked, nil
}
