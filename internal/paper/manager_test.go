package paper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/confluence"
	"alpha-scout/pkg/types"
)

// quotePricer serves one price per token; missing tokens are stale.
type quotePricer struct {
	prices map[string]float64
}

func (q quotePricer) TokenPrice(ctx context.Context, chain types.Chain, token string) types.TokenQuote {
	price, ok := q.prices[token]
	if !ok {
		return types.TokenQuote{Stale: true}
	}
	return types.TokenQuote{PriceUSD: price, Source: "test"}
}

func testManager(t *testing.T, tr *Trader, prices map[string]float64) (*Manager, *confluence.Detector) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	detector := confluence.NewDetector(nil, config.ConfluenceConfig{
		WindowMinutes: 30, MinWallets: 2, ExpiryGraceSecond: 300,
	}, logger)
	return NewManager(tr, quotePricer{prices: prices}, detector, logger), detector
}

func enterTest(t *testing.T, tr *Trader, token string) {
	t.Helper()
	entered, reason := tr.Enter(EntrySignal{
		Chain:     types.Ethereum,
		Token:     token,
		Profile:   memeProfile(0.001),
		NumWhales: 2,
		Reason:    "2 whale confluence",
	})
	if !entered {
		t.Fatalf("entry refused: %s", reason)
	}
}

func TestManagerClosesOnTakeProfit(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	enterTest(t, tr, "0xtoken")

	m, _ := testManager(t, tr, map[string]float64{"0xtoken": 0.00135})
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Holding("0xtoken") {
		t.Error("position still open after +35% against a 30% take profit")
	}
	closed := tr.ClosedTrades()
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
	if closed[0].SellReason == "" {
		t.Error("missing sell reason")
	}
}

func TestManagerHoldsOnStaleQuote(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	enterTest(t, tr, "0xtoken")

	m, _ := testManager(t, tr, nil)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !tr.Holding("0xtoken") {
		t.Error("stale quote closed the position")
	}
}

func TestManagerClosesOnWhaleExit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := testTrader(t, testConfig(t))
	enterTest(t, tr, "0xtoken")

	// Flat price, but two monitored wallets sold inside the window.
	m, detector := testManager(t, tr, map[string]float64{"0xtoken": 0.001})
	now := time.Now().Unix()
	for i, w := range []string{"0xw1", "0xw2"} {
		err := detector.Record(ctx, types.Sell, types.Ethereum, "0xtoken", confluence.Event{
			Wallet: w, TS: now - int64(i), TxHash: "tx" + w, PriceUSD: 0.001, ValueUSD: 500,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Holding("0xtoken") {
		t.Error("position survived two whale sells")
	}
	closed := tr.ClosedTrades()
	if len(closed) != 1 || closed[0].SellReason != "whale_exit (2 selling)" {
		t.Errorf("closed = %+v, want whale_exit reason", closed)
	}
}
