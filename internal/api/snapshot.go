package api

import (
	"context"
	"time"
)

// snapshotTopWallets bounds the ranked list embedded in the snapshot; the
// full list stays behind /api/wallets/top.
const snapshotTopWallets = 10

// BuildSnapshot aggregates state from every component into one dashboard
// payload.
func BuildSnapshot(ctx context.Context, deps Deps) (DashboardSnapshot, error) {
	set, err := deps.Ranker.MonitoredSet(ctx, time.Now())
	if err != nil {
		return DashboardSnapshot{}, err
	}
	top := set
	if len(top) > snapshotTopWallets {
		top = top[:snapshotTopWallets]
	}

	snap := DashboardSnapshot{
		Timestamp:     time.Now().UTC(),
		WatchlistSize: len(set),
		TopWallets:    top,
		Config:        NewConfigSummary(deps.Full),
	}
	for _, c := range deps.Full.ChainList() {
		snap.Chains = append(snap.Chains, string(c))
	}
	if deps.Trader != nil {
		snap.Paper = deps.Trader.Performance()
		snap.OpenPositions = deps.Trader.OpenPositions()
	}
	if deps.Sched != nil {
		snap.Jobs = deps.Sched.Health()
	}
	if deps.Router != nil {
		snap.PriceFailures = deps.Router.FailureCounts()
	}
	return snap, nil
}
