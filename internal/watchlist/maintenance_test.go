package watchlist

import (
	"context"
	"testing"
	"time"

	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

func testMaintenance(t *testing.T, st *store.Store) *Maintenance {
	t.Helper()
	cfg := testConfig()
	ranker := NewRanker(st, cfg, quietLogger())
	return NewMaintenance(st, ranker, cfg, quietLogger())
}

func TestMaintenanceAddsQualifyingWallet(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 2, 0, 0, 0, time.UTC)

	stats := mkStats("0xwinner", 8, 5000, 70)
	stats.RealizedPnLUSD = 75_000
	stats.BestTradeMultiple = 4.2
	if err := st.UpsertWalletStats(ctx, stats); err != nil {
		t.Fatal(err)
	}
	if _, err := st.TouchWallet(ctx, types.Ethereum, "0xwinner", now); err != nil {
		t.Fatal(err)
	}

	if err := testMaintenance(t, st).Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := st.ActiveWatchlist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Address != "0xwinner" {
		t.Fatalf("watchlist = %+v, want 0xwinner", entries)
	}
}

func TestMaintenanceSkipsBelowThresholds(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		addr     string
		trades   int
		realized float64
		multiple float64
	}{
		{"0xfewtrades", 3, 75_000, 4.0},
		{"0xsmallpnl", 8, 10_000, 4.0},
		{"0xnobigwin", 8, 75_000, 1.5},
	}
	for _, tt := range tests {
		stats := mkStats(tt.addr, tt.trades, 5000, 70)
		stats.RealizedPnLUSD = tt.realized
		stats.BestTradeMultiple = tt.multiple
		if err := st.UpsertWalletStats(ctx, stats); err != nil {
			t.Fatal(err)
		}
		if _, err := st.TouchWallet(ctx, types.Ethereum, tt.addr, now); err != nil {
			t.Fatal(err)
		}
	}

	if err := testMaintenance(t, st).Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := st.ActiveWatchlist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("watchlist = %+v, want empty", entries)
	}
}

func TestMaintenanceSoftRemoves(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 2, 0, 0, 0, time.UTC)

	// On the list from a previous night, now bleeding money.
	if err := st.UpsertWatchlistEntry(ctx, types.Ethereum, "0xfading", 80, now.Add(-24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	stats := mkStats("0xfading", 6, 5000, 70)
	stats.RealizedPnLUSD = -2000
	if err := st.UpsertWalletStats(ctx, stats); err != nil {
		t.Fatal(err)
	}
	if _, err := st.TouchWallet(ctx, types.Ethereum, "0xfading", now); err != nil {
		t.Fatal(err)
	}

	if err := testMaintenance(t, st).Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := st.ActiveWatchlist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("watchlist = %+v, want 0xfading removed", entries)
	}
}

func TestMaintenanceRemovesEntryWithoutStats(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 2, 0, 0, 0, time.UTC)

	if err := st.UpsertWatchlistEntry(ctx, types.Ethereum, "0xghost", 50, now.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}

	if err := testMaintenance(t, st).Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := st.ActiveWatchlist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("watchlist = %+v, want ghost entry removed", entries)
	}
}
