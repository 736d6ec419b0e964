package paper

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

func testConfig(t *testing.T) config.PaperConfig {
	t.Helper()
	return config.PaperConfig{
		Enabled:          true,
		StartingBalance:  1000,
		MaxPositions:     3,
		MinCashUSD:       10,
		MaxHoldHours:     24,
		TrailActivatePct: 15,
		TrailDropPts:     8,
		WhaleExitCount:   2,
		LogPath:          filepath.Join(t.TempDir(), "paper.json"),
		MemePriceMin:     0.00000001,
		MemePriceMax:     10,
		MemeMinVolumeUSD: 50_000,
		MemeMinLiquidity: 50_000,
	}
}

func testTrader(t *testing.T, cfg config.PaperConfig) *Trader {
	t.Helper()
	tr, err := NewTrader(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewTrader: %v", err)
	}
	return tr
}

func memeProfile(price float64) TokenProfile {
	return TokenProfile{
		Symbol:       "PEPE",
		PriceUSD:     price,
		Volume24hUSD: 100_000,
		LiquidityUSD: 100_000,
	}
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want ~%v", name, got, want)
	}
}

func TestEntryAndTakeProfitExit(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	entered, reason := tr.Enter(EntrySignal{
		Chain:     types.Ethereum,
		Token:     "0xtoken",
		Profile:   memeProfile(0.001),
		NumWhales: 2,
		Reason:    "2 whale confluence",
	})
	if !entered {
		t.Fatalf("entry refused: %s", reason)
	}

	positions := tr.OpenPositions()
	if len(positions) != 1 {
		t.Fatalf("open positions = %d, want 1", len(positions))
	}
	pos := positions[0]
	approx(t, "cost basis", pos.CostBasisUSD, 400, 1e-9)
	approx(t, "tp", pos.TakeProfitPct, 30, 1e-9)
	approx(t, "sl", pos.StopLossPct, -15, 1e-9)
	approx(t, "cash", tr.Cash(), 600, 1e-9)

	closed, ok := tr.Mark("0xtoken", 0.00130, 0)
	if !ok {
		t.Fatal("expected take-profit exit")
	}
	approx(t, "profit", closed.ProfitUSD, 120, 1)
	approx(t, "cash after exit", tr.Cash(), 1120, 1)
	if len(tr.OpenPositions()) != 0 {
		t.Error("position still open after exit")
	}
}

func TestSizingTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		whales int
		pct    float64
		tp     float64
	}{
		{2, 0.40, 30},
		{5, 0.40, 30},
		{7, 0.50, 35},
		{9, 0.50, 35},
		{10, 0.60, 40},
		{15, 0.60, 40},
	}
	for _, tt := range tests {
		pct, tp, sl := sizing(tt.whales)
		if pct != tt.pct || tp != tt.tp || sl != -15 {
			t.Errorf("sizing(%d) = (%v, %v, %v), want (%v, %v, -15)",
				tt.whales, pct, tp, sl, tt.pct, tt.tp)
		}
	}
}

func TestZeroMarkHoldsPosition(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})

	if _, ok := tr.Mark("0xtoken", 0, 5); ok {
		t.Error("position must never exit on a zero mark")
	}
	if len(tr.OpenPositions()) != 1 {
		t.Error("position lost on zero mark")
	}
}

func TestOnePositionPerToken(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})

	if entered, reason := tr.Enter(EntrySignal{
		Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.002), NumWhales: 3,
	}); entered || reason != "already_held" {
		t.Errorf("second entry = (%v, %s), want refusal already_held", entered, reason)
	}
}

func TestMaxPositionsEnforced(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	for _, token := range []string{"0xa", "0xb", "0xc"} {
		if ok, reason := tr.Enter(EntrySignal{
			Chain: types.Ethereum, Token: token, Profile: memeProfile(0.001), NumWhales: 2,
		}); !ok {
			t.Fatalf("entry %s refused: %s", token, reason)
		}
	}

	if entered, reason := tr.Enter(EntrySignal{
		Chain: types.Ethereum, Token: "0xd", Profile: memeProfile(0.001), NumWhales: 2,
	}); entered || reason != "max_positions" {
		t.Errorf("fourth entry = (%v, %s), want refusal max_positions", entered, reason)
	}
}

func TestEntryFilterRejects(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))

	tests := []struct {
		name    string
		profile TokenProfile
	}{
		{"price above band", TokenProfile{PriceUSD: 50, Volume24hUSD: 100_000, LiquidityUSD: 100_000}},
		{"thin volume", TokenProfile{PriceUSD: 0.001, Volume24hUSD: 1000, LiquidityUSD: 100_000}},
		{"thin liquidity", TokenProfile{PriceUSD: 0.001, Volume24hUSD: 100_000, LiquidityUSD: 1000}},
	}
	for _, tt := range tests {
		if entered, reason := tr.Enter(EntrySignal{
			Chain: types.Ethereum, Token: "0xtoken", Profile: tt.profile, NumWhales: 2,
		}); entered || reason != "filtered" {
			t.Errorf("%s: entry = (%v, %s), want refusal filtered", tt.name, entered, reason)
		}
	}
}

func TestBuyThenSellAtEntryRestoresCash(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.MaxHoldHours = 0 // immediate max-hold exit on the next mark
	tr := testTrader(t, cfg)

	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})
	closed, ok := tr.Mark("0xtoken", 0.001, 0)
	if !ok {
		t.Fatal("expected max-hold exit")
	}
	approx(t, "profit", closed.ProfitUSD, 0, 1e-9)
	approx(t, "cash", tr.Cash(), 1000, 1e-9)
}

func TestStopLossExit(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})

	closed, ok := tr.Mark("0xtoken", 0.0008, 0) // -20%
	if !ok {
		t.Fatal("expected stop-loss exit")
	}
	if closed.ProfitUSD >= 0 {
		t.Errorf("profit = %v, want loss", closed.ProfitUSD)
	}
	approx(t, "cash", tr.Cash(), 920, 1) // 600 + 400*0.8
}

func TestTrailingStopExit(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})

	// +20% arms the trail below take profit.
	if _, ok := tr.Mark("0xtoken", 0.0012, 0); ok {
		t.Fatal("unexpected exit while arming trail")
	}
	// Fall back to +10%: 10 points below the peak, over the 8 point drop.
	closed, ok := tr.Mark("0xtoken", 0.0011, 0)
	if !ok {
		t.Fatal("expected trailing-stop exit")
	}
	if closed.SellReason[:13] != "trailing_stop" {
		t.Errorf("sell reason = %s, want trailing_stop", closed.SellReason)
	}
}

func TestWhaleExitSignal(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})

	// Flat price, but two whales dumped within the window.
	closed, ok := tr.Mark("0xtoken", 0.00101, 2)
	if !ok {
		t.Fatal("expected whale-exit")
	}
	if closed.SellReason[:10] != "whale_exit" {
		t.Errorf("sell reason = %s, want whale_exit", closed.SellReason)
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	tr := testTrader(t, cfg)
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 7})

	restored := testTrader(t, cfg)
	approx(t, "cash", restored.Cash(), 500, 1e-9) // 50% tier spent
	positions := restored.OpenPositions()
	if len(positions) != 1 || positions[0].Token != "0xtoken" {
		t.Fatalf("positions after restart = %+v, want the open one", positions)
	}
	approx(t, "tp", positions[0].TakeProfitPct, 35, 1e-9)
}

func TestPerformanceReport(t *testing.T) {
	t.Parallel()

	tr := testTrader(t, testConfig(t))
	tr.Enter(EntrySignal{Chain: types.Ethereum, Token: "0xtoken", Profile: memeProfile(0.001), NumWhales: 2})
	tr.Mark("0xtoken", 0.00130, 0)

	r := tr.Performance()
	if r.TotalTrades != 1 || r.WinCount != 1 {
		t.Errorf("trades = %d wins = %d, want 1/1", r.TotalTrades, r.WinCount)
	}
	approx(t, "win rate", r.WinRatePct, 100, 1e-9)
	approx(t, "roi", r.ROIPct, 12, 0.5)
	if r.BestTrade == nil || r.BestTrade.Token != "0xtoken" {
		t.Error("best trade missing")
	}
	if r.Grade != "A" {
		t.Errorf("grade = %s, want A", r.Grade)
	}
}
