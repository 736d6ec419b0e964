// Package analytics holds the pure calculation engines: FIFO P&L,
// EarlyScore, bot detection heuristics, and the rolling stats rollup that
// ties them to the store. Everything except the rollup operates on plain
// trade slices so it can be recomputed deterministically at any time.
package analytics

import (
	"log/slog"
	"sort"

	"alpha-scout/pkg/types"
)

// Lot is one open FIFO buy lot. Cost includes the buy fee.
type Lot struct {
	Qty     float64
	CostUSD float64
}

// PnLResult is the outcome of replaying one (wallet, token) trade history.
type PnLResult struct {
	RealizedUSD   float64
	UnrealizedUSD float64
	OpenLots      []Lot
	MarkUSD       float64
}

// OpenQty returns the total open quantity across lots.
func (r PnLResult) OpenQty() float64 {
	var qty float64
	for _, lot := range r.OpenLots {
		qty += lot.Qty
	}
	return qty
}

// OpenCostUSD returns the total cost basis across open lots.
func (r PnLResult) OpenCostUSD() float64 {
	var cost float64
	for _, lot := range r.OpenLots {
		cost += lot.CostUSD
	}
	return cost
}

// ComputeTokenPnL replays trades for one (wallet, token) pair in time order
// and returns realized P&L, open lots, and unrealized P&L at markUSD.
//
// Buys enqueue a lot with cost = usd_value + fee. Sells consume lots front
// to back with proceeds = usd_value - fee prorated by the share of the
// sell's quantity each lot covers. A sell that exceeds the open quantity is
// truncated: the excess contributes no realized P&L and is logged, never
// fatal.
func ComputeTokenPnL(trades []types.Trade, markUSD float64, logger *slog.Logger) PnLResult {
	var queue []Lot
	var realized float64

	for _, trade := range trades {
		switch trade.Side {
		case types.Buy:
			queue = append(queue, Lot{Qty: trade.QtyToken, CostUSD: trade.ValueUSD + trade.FeeUSD})

		case types.Sell:
			var delta, excess float64
			queue, delta, excess = consumeSell(queue, trade)
			realized += delta
			if excess > 0 && logger != nil {
				logger.Warn("sell exceeds open lots, excess truncated",
					"wallet", trade.Wallet, "token", trade.Token, "tx", trade.TxHash, "excess_qty", excess)
			}
		}
	}

	var unrealized float64
	for _, lot := range queue {
		unrealized += lot.Qty*markUSD - lot.CostUSD
	}

	return PnLResult{
		RealizedUSD:   realized,
		UnrealizedUSD: unrealized,
		OpenLots:      queue,
		MarkUSD:       markUSD,
	}
}

// consumeSell matches one sell against the FIFO queue. Proceeds are
// prorated by the share of the sell's quantity each lot covers; any
// quantity beyond the open lots is returned as excess and realizes nothing.
func consumeSell(queue []Lot, trade types.Trade) (remaining []Lot, realized, excess float64) {
	sellQty := trade.QtyToken
	proceeds := trade.ValueUSD - trade.FeeUSD

	for sellQty > 0 && len(queue) > 0 {
		lot := queue[0]
		if sellQty >= lot.Qty {
			// Consume the whole lot.
			proportion := lot.Qty / trade.QtyToken
			realized += proceeds*proportion - lot.CostUSD
			sellQty -= lot.Qty
			queue = queue[1:]
		} else {
			// Partial consumption.
			proportion := sellQty / trade.QtyToken
			costShare := (sellQty / lot.Qty) * lot.CostUSD
			realized += proceeds*proportion - costShare
			queue[0] = Lot{Qty: lot.Qty - sellQty, CostUSD: lot.CostUSD - costShare}
			sellQty = 0
		}
	}
	return queue, realized, sellQty
}

// RealizedSeries replays a wallet's full trade history (all tokens, time
// order) and returns cumulative realized P&L sampled after every sell.
// Feed the result to MaxDrawdownPct.
func RealizedSeries(trades []types.Trade) []float64 {
	queues := make(map[string][]Lot)
	var cumulative float64
	var series []float64

	for _, trade := range trades {
		switch trade.Side {
		case types.Buy:
			queues[trade.Token] = append(queues[trade.Token], Lot{Qty: trade.QtyToken, CostUSD: trade.ValueUSD + trade.FeeUSD})
		case types.Sell:
			queue, delta, _ := consumeSell(queues[trade.Token], trade)
			queues[trade.Token] = queue
			cumulative += delta
			series = append(series, cumulative)
		}
	}
	return series
}

// GroupByToken splits a wallet's trades per token, preserving input order
// within each group.
func GroupByToken(trades []types.Trade) map[string][]types.Trade {
	out := make(map[string][]types.Trade)
	for _, t := range trades {
		out[t.Token] = append(out[t.Token], t)
	}
	return out
}

// BestTradeMultiple returns the wallet's best average-sell over average-buy
// price ratio across tokens that have both sides, floored at 1.0.
func BestTradeMultiple(trades []types.Trade) float64 {
	best := 1.0
	for _, tokenTrades := range GroupByToken(trades) {
		var buySum, sellSum float64
		var buyN, sellN int
		for _, t := range tokenTrades {
			switch t.Side {
			case types.Buy:
				buySum += t.PriceUSD
				buyN++
			case types.Sell:
				sellSum += t.PriceUSD
				sellN++
			}
		}
		if buyN == 0 || sellN == 0 {
			continue
		}
		avgBuy := buySum / float64(buyN)
		avgSell := sellSum / float64(sellN)
		if avgBuy > 0 && avgSell/avgBuy > best {
			best = avgSell / avgBuy
		}
	}
	return best
}

// MaxDrawdownPct returns the largest peak-to-trough decline, in percent of
// the peak, over a cumulative P&L series. Zero when the series never draws
// down or the peak is not positive.
func MaxDrawdownPct(cumulative []float64) float64 {
	var peak, worst float64
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Median returns the median of values, 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
