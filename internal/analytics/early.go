package analytics

// EarlyScore quantifies how early a buy was, on a 0-100 scale:
//
//	40 pts — buyer rank: earlier unique buyer = higher
//	40 pts — market cap at buy, estimated as 3x liquidity, scaled
//	         linearly below a $1M target (neutral 20 when liquidity is
//	         unknown)
//	20 pts — the buy's share of token volume around the trade, capped at
//	         50% participation

const (
	earlyTargetMC         = 1_000_000
	earlyLiquidityToMC    = 3
	earlyParticipationCap = 0.5
)

// EarlyInput carries the observations EarlyScore is computed from. All
// counts refer to the token the buy was in.
type EarlyInput struct {
	PriorUniqueBuyers int     // unique buyers strictly before this trade
	TotalUniqueBuyers int     // unique buyers overall
	LiquidityUSD      float64 // token liquidity at evaluation time
	HasLiquidity      bool    // false when no source reported liquidity
	BuyValueUSD       float64 // this trade's USD value
	WindowVolumeUSD   float64 // token volume in the surrounding window
}

// EarlyScore returns the composite score, always within [0, 100].
func EarlyScore(in EarlyInput) float64 {
	score := rankScore(in) + mcScore(in) + volumeScore(in)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func rankScore(in EarlyInput) float64 {
	total := in.TotalUniqueBuyers
	if total < 1 {
		total = 1
	}
	percentile := float64(in.PriorUniqueBuyers) / float64(total)
	if percentile > 1 {
		percentile = 1
	}
	return 40 * (1 - percentile)
}

func mcScore(in EarlyInput) float64 {
	if !in.HasLiquidity {
		return 20
	}
	estimatedMC := in.LiquidityUSD * earlyLiquidityToMC
	if estimatedMC >= earlyTargetMC {
		return 0
	}
	proportion := (earlyTargetMC - estimatedMC) / earlyTargetMC
	if proportion < 0 {
		proportion = 0
	}
	return 40 * proportion
}

func volumeScore(in EarlyInput) float64 {
	if in.WindowVolumeUSD <= 0 || in.BuyValueUSD <= 0 {
		return 0
	}
	participation := in.BuyValueUSD / in.WindowVolumeUSD
	if participation > earlyParticipationCap {
		participation = earlyParticipationCap
	}
	return 20 * (participation / earlyParticipationCap)
}
