package analytics

import (
	"sort"
	"time"

	"alpha-scout/pkg/types"
)

// Bot heuristic thresholds. Conservative on purpose: a false positive
// removes a wallet from the watchlist pool, a false negative only leaves a
// noisy wallet in it.
const (
	botMinTrades       = 10
	botMaxAvgHold      = 60 * time.Second
	botRapidGap        = 15 * time.Second
	botRapidRatioLimit = 0.5
	botSingleFlipLimit = 0.7
)

// BotVerdict is the outcome of the bot heuristics, with the first rule
// that fired.
type BotVerdict struct {
	IsBot  bool
	Reason string
}

// DetectBot applies the bot heuristics to a wallet's recent trades.
// Contracts are always bots. Wallets with fewer than 10 trades are never
// flagged: not enough evidence.
func DetectBot(isContract bool, trades []types.Trade) BotVerdict {
	if isContract {
		return BotVerdict{IsBot: true, Reason: "contract"}
	}
	if len(trades) < botMinTrades {
		return BotVerdict{}
	}

	if avg, ok := avgHoldTime(trades); ok && avg < botMaxAvgHold {
		return BotVerdict{IsBot: true, Reason: "short_avg_hold"}
	}
	if rapidRatio(trades) > botRapidRatioLimit {
		return BotVerdict{IsBot: true, Reason: "rapid_trades"}
	}
	if singleFlipRatio(trades) > botSingleFlipLimit {
		return BotVerdict{IsBot: true, Reason: "single_flips"}
	}
	return BotVerdict{}
}

// avgHoldTime pairs each buy with the next sell of the same token and
// averages the gaps. ok is false when no buy-sell pair exists.
func avgHoldTime(trades []types.Trade) (time.Duration, bool) {
	var total time.Duration
	var n int
	for _, tokenTrades := range GroupByToken(trades) {
		var buys, sells []types.Trade
		for _, t := range tokenTrades {
			if t.Side == types.Buy {
				buys = append(buys, t)
			} else if t.Side == types.Sell {
				sells = append(sells, t)
			}
		}
		for _, buy := range buys {
			for _, sell := range sells {
				if sell.Timestamp.After(buy.Timestamp) {
					total += sell.Timestamp.Sub(buy.Timestamp)
					n++
					break
				}
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / time.Duration(n), true
}

// rapidRatio is the share of consecutive trades less than 15 seconds
// apart, a proxy for same-block activity.
func rapidRatio(trades []types.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	sorted := append([]types.Trade(nil), trades...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	rapid := 0
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i+1].Timestamp.Sub(sorted[i].Timestamp) < botRapidGap {
			rapid++
		}
	}
	return float64(rapid) / float64(len(trades)-1)
}

// singleFlipRatio is the share of traded tokens with exactly one buy and
// one sell.
func singleFlipRatio(trades []types.Trade) float64 {
	byToken := GroupByToken(trades)
	if len(byToken) == 0 {
		return 0
	}
	flips := 0
	for _, tokenTrades := range byToken {
		var buys, sells int
		for _, t := range tokenTrades {
			if t.Side == types.Buy {
				buys++
			} else if t.Side == types.Sell {
				sells++
			}
		}
		if buys == 1 && sells == 1 {
			flips++
		}
	}
	return float64(flips) / float64(len(byToken))
}
