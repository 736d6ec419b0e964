package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

// fixedPricer quotes one price for everything; zero means stale.
type fixedPricer struct {
	price float64
}

func (f fixedPricer) TokenPrice(ctx context.Context, chain types.Chain, token string) types.TokenQuote {
	if f.price <= 0 {
		return types.TokenQuote{Stale: true}
	}
	return types.TokenQuote{PriceUSD: f.price, Source: "fixed"}
}

func rollupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scout.db"), quietLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func insertTrade(t *testing.T, st *store.Store, tr types.Trade) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.TouchWallet(ctx, tr.Chain, tr.Wallet, tr.Timestamp); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertTrade(ctx, tr); err != nil {
		t.Fatal(err)
	}
}

func TestRollupComputesWalletStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	st := rollupStore(t)

	// Buy 100 @ $1, sell 50 @ $3. Realized 100, open lot of 50 @ $1.
	insertTrade(t, st, types.Trade{
		TxHash: "tx1", Timestamp: now.Add(-20 * time.Hour), Chain: types.Ethereum,
		Wallet: "0xw", Token: "0xtok", Side: types.Buy,
		QtyToken: 100, PriceUSD: 1, ValueUSD: 100,
	})
	insertTrade(t, st, types.Trade{
		TxHash: "tx2", Timestamp: now.Add(-10 * time.Hour), Chain: types.Ethereum,
		Wallet: "0xw", Token: "0xtok", Side: types.Sell,
		QtyToken: 50, PriceUSD: 3, ValueUSD: 150,
	})

	r := NewRollup(st, fixedPricer{price: 2}, quietLogger())
	if err := r.Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats, err := st.GetWalletStats(ctx, types.Ethereum, "0xw")
	if err != nil {
		t.Fatal(err)
	}
	if stats == nil {
		t.Fatal("no stats row written")
	}
	if stats.TradesCount != 2 {
		t.Errorf("trades = %d, want 2", stats.TradesCount)
	}
	if got := stats.RealizedPnLUSD; got < 99.9 || got > 100.1 {
		t.Errorf("realized = %.2f, want 100", got)
	}
	// Mark $2 against an open lot of 50 bought at $1.
	if got := stats.UnrealizedPnLUSD; got < 49.9 || got > 50.1 {
		t.Errorf("unrealized = %.2f, want 50", got)
	}
	if got := stats.BestTradeMultiple; got < 2.9 || got > 3.1 {
		t.Errorf("best multiple = %.2f, want 3", got)
	}

	positions, err := st.WalletPositions(ctx, "0xw")
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 || positions[0].Qty != 50 {
		t.Errorf("positions = %+v, want one of qty 50", positions)
	}
}

func TestRollupMarksWithLastTradeWhenPricerStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	st := rollupStore(t)

	insertTrade(t, st, types.Trade{
		TxHash: "tx1", Timestamp: now.Add(-6 * time.Hour), Chain: types.Ethereum,
		Wallet: "0xw", Token: "0xtok", Side: types.Buy,
		QtyToken: 10, PriceUSD: 1, ValueUSD: 10,
	})
	insertTrade(t, st, types.Trade{
		TxHash: "tx2", Timestamp: now.Add(-2 * time.Hour), Chain: types.Ethereum,
		Wallet: "0xother", Token: "0xtok", Side: types.Buy,
		QtyToken: 10, PriceUSD: 4, ValueUSD: 40,
	})

	r := NewRollup(st, fixedPricer{}, quietLogger())
	if err := r.Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats, err := st.GetWalletStats(ctx, types.Ethereum, "0xw")
	if err != nil {
		t.Fatal(err)
	}
	if stats == nil {
		t.Fatal("no stats row written")
	}
	// Last recorded trade price is $4, against 10 tokens bought at $1.
	if got := stats.UnrealizedPnLUSD; got < 29.9 || got > 30.1 {
		t.Errorf("unrealized = %.2f, want 30", got)
	}
}

func TestRollupFlagsBotWallet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	st := rollupStore(t)

	if _, err := st.TouchWallet(ctx, types.Ethereum, "0xbot", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := st.SetWalletFlags(ctx, types.Ethereum, "0xbot", true, false); err != nil {
		t.Fatal(err)
	}
	insertTrade(t, st, types.Trade{
		TxHash: "tx1", Timestamp: now.Add(-time.Hour), Chain: types.Ethereum,
		Wallet: "0xbot", Token: "0xtok", Side: types.Buy,
		QtyToken: 10, PriceUSD: 1, ValueUSD: 10,
	})

	r := NewRollup(st, fixedPricer{price: 1}, quietLogger())
	if err := r.Run(ctx, now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	w, err := st.GetWallet(ctx, types.Ethereum, "0xbot")
	if err != nil {
		t.Fatal(err)
	}
	if !w.IsBot {
		t.Error("contract wallet not flagged as bot")
	}
	// Bot wallets drop out of the ranker's candidate pool.
	pool, err := st.AllWalletStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range pool {
		if s.Address == "0xbot" {
			t.Error("bot wallet still in candidate pool")
		}
	}
}
