package watchlist

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

func testConfig() config.WatchlistConfig {
	return config.WatchlistConfig{
		TopK:                 30,
		AddMinTrades30d:      5,
		AddMinRealizedUSD:    50_000,
		AddMinBestMultiple:   3.0,
		RemoveRealizedBelow:  0,
		RemoveDrawdownAbove:  50,
		RemoveTradesBelow:    2,
		PoolMinUnrealizedUSD: 500,
		PoolMinTrades:        2,
		AdaptiveWeights:      true,
		AdaptiveLookbackDays: 7,
	}
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scout.db"), quietLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mkStats(addr string, trades int, unrealized, early float64) store.WalletStats {
	return store.WalletStats{
		Address:          addr,
		Chain:            types.Ethereum,
		TradesCount:      trades,
		UnrealizedPnLUSD: unrealized,
		EarlyScoreMedian: early,
	}
}

func TestScoreAllGatesThePool(t *testing.T) {
	t.Parallel()

	stats := []store.WalletStats{
		mkStats("0xgood", 5, 10_000, 60),
		mkStats("0xpoor", 5, 100, 60),    // unrealized below the gate
		mkStats("0xlazy", 1, 10_000, 60), // too few trades
	}

	ranked := ScoreAll(stats, DefaultWeights(), testConfig())
	if len(ranked) != 1 || ranked[0].Address != "0xgood" {
		t.Fatalf("ranked = %+v, want only 0xgood", ranked)
	}
}

func TestScoreAllOrdersByComposite(t *testing.T) {
	t.Parallel()

	// Same P&L and activity, EarlyScore decides.
	stats := []store.WalletStats{
		mkStats("0xslow", 10, 5000, 20),
		mkStats("0xearly", 10, 5000, 90),
	}

	ranked := ScoreAll(stats, DefaultWeights(), testConfig())
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d entries, want 2", len(ranked))
	}
	if ranked[0].Address != "0xearly" {
		t.Errorf("top wallet = %s, want 0xearly", ranked[0].Address)
	}
	// Both at the 100th P&L percentile, activity capped at 100:
	// 0.30*100 + 0.30*100 + 0.40*90 = 96.
	if got := ranked[0].Score; got < 95.9 || got > 96.1 {
		t.Errorf("top score = %v, want 96", got)
	}
}

func TestScoreAllActivityCap(t *testing.T) {
	t.Parallel()

	stats := []store.WalletStats{
		mkStats("0xten", 10, 5000, 0),
		mkStats("0xhundred", 100, 5000, 0),
	}

	ranked := ScoreAll(stats, DefaultWeights(), testConfig())
	if ranked[0].Score != ranked[1].Score {
		t.Errorf("activity beyond 10 trades must not add score: %v vs %v",
			ranked[0].Score, ranked[1].Score)
	}
}

func TestMonitoredSetUnionsCustomWallets(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC)

	if err := st.UpsertWalletStats(ctx, mkStats("0xauto", 10, 5000, 80)); err != nil {
		t.Fatal(err)
	}
	if _, err := st.TouchWallet(ctx, types.Ethereum, "0xauto", now); err != nil {
		t.Fatal(err)
	}
	err := st.AddCustomWallet(ctx, store.CustomWallet{
		Address: "0xcustom", Chain: types.Base, AddedAt: now, AddedBy: "api",
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewRanker(st, testConfig(), quietLogger())
	set, err := r.MonitoredSet(ctx, now)
	if err != nil {
		t.Fatalf("MonitoredSet: %v", err)
	}

	bySource := map[string]string{}
	for _, rw := range set {
		bySource[rw.Address] = rw.Source
	}
	if bySource["0xauto"] != "auto" || bySource["0xcustom"] != "custom" {
		t.Errorf("monitored set = %+v, want auto+custom union", bySource)
	}
}

func TestAdaptWeightsNeedsSample(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	r := NewRanker(st, testConfig(), quietLogger())

	// Empty alert log: defaults stand.
	w := r.Weights(context.Background(), time.Now())
	if w != DefaultWeights() {
		t.Errorf("weights = %+v, want defaults with no alerts", w)
	}
}

func TestAdaptWeightsShiftsOnLowWinRate(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	// Twelve alerts at $1, every token now trading flat: 0% win rate.
	for i := 0; i < 12; i++ {
		token := "0xt" + string(rune('a'+i))
		_, err := st.InsertAlert(ctx, types.AlertPayload{
			Type: types.AlertConfluence, Timestamp: now.Add(-time.Duration(i) * time.Hour),
			Chain: types.Ethereum, Token: token, Side: types.Buy,
			Wallets: []string{"0xw"}, PriceUSD: 1.0,
		})
		if err != nil {
			t.Fatal(err)
		}
		_, err = st.InsertTrade(ctx, types.Trade{
			TxHash: "tx-" + token, Timestamp: now, Chain: types.Ethereum,
			Wallet: "0xw", Token: token, Side: types.Buy,
			QtyToken: 1, PriceUSD: 1.0, ValueUSD: 1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	r := NewRanker(st, testConfig(), quietLogger())
	w := r.Weights(ctx, now)
	if w.Early != 0.50 {
		t.Errorf("early weight = %v, want 0.50 after losing streak", w.Early)
	}
}
