package analytics

import (
	"math"
	"testing"
)

func TestEarlyScoreFirstBuyerLowMC(t *testing.T) {
	t.Parallel()

	// First of 100 buyers, estimated MC $30k (liquidity $10k),
	// participation 0.2: rank 40 + mc 38.8 + vol 8 = 86.8.
	in := EarlyInput{
		PriorUniqueBuyers: 0,
		TotalUniqueBuyers: 100,
		LiquidityUSD:      10_000,
		HasLiquidity:      true,
		BuyValueUSD:       200,
		WindowVolumeUSD:   1000,
	}

	got := EarlyScore(in)
	if math.Abs(got-86.8) > 0.5 {
		t.Errorf("EarlyScore = %v, want ~86.8", got)
	}
}

func TestEarlyScoreNeutralWithoutLiquidity(t *testing.T) {
	t.Parallel()

	in := EarlyInput{
		PriorUniqueBuyers: 0,
		TotalUniqueBuyers: 1,
		HasLiquidity:      false,
	}

	// rank 40 + neutral mc 20 + vol 0.
	if got := EarlyScore(in); math.Abs(got-60) > 1e-9 {
		t.Errorf("EarlyScore = %v, want 60", got)
	}
}

func TestEarlyScoreParticipationCapped(t *testing.T) {
	t.Parallel()

	base := EarlyInput{
		TotalUniqueBuyers: 10,
		PriorUniqueBuyers: 10,
		HasLiquidity:      true,
		LiquidityUSD:      10_000_000, // mc component 0
		WindowVolumeUSD:   100,
	}

	half := base
	half.BuyValueUSD = 50 // exactly 50% participation
	whale := base
	whale.BuyValueUSD = 100 // 100% participation, capped at 50%

	if EarlyScore(half) != EarlyScore(whale) {
		t.Errorf("participation above 50%% must not add points: %v vs %v",
			EarlyScore(half), EarlyScore(whale))
	}
	if got := EarlyScore(whale); math.Abs(got-20) > 1e-9 {
		t.Errorf("capped volume score = %v, want 20", got)
	}
}

func TestEarlyScoreAlwaysInBounds(t *testing.T) {
	t.Parallel()

	inputs := []EarlyInput{
		{},
		{PriorUniqueBuyers: -5, TotalUniqueBuyers: 0},
		{PriorUniqueBuyers: 1000, TotalUniqueBuyers: 10},
		{HasLiquidity: true, LiquidityUSD: -100},
		{HasLiquidity: true, LiquidityUSD: 1e12},
		{BuyValueUSD: 1e9, WindowVolumeUSD: 1},
		{BuyValueUSD: -50, WindowVolumeUSD: 100},
		{TotalUniqueBuyers: 1, HasLiquidity: true, BuyValueUSD: 1e6, WindowVolumeUSD: 1e6},
	}

	for i, in := range inputs {
		got := EarlyScore(in)
		if got < 0 || got > 100 {
			t.Errorf("input %d: EarlyScore = %v, out of [0,100]", i, got)
		}
	}
}
