package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alpha-scout/internal/source"
	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

// statsWindow is the rolling lookback the per-wallet rollup covers.
const statsWindow = 30 * 24 * time.Hour

// Rollup recomputes each wallet's 30-day stats from its full trade history:
// FIFO P&L per token, best trade multiple, EarlyScore median, drawdown, and
// the bot verdict. Open positions are marked via the price router, falling
// back to the last recorded trade price when every source fails.
type Rollup struct {
	store  *store.Store
	pricer source.Pricer
	logger *slog.Logger
}

func NewRollup(st *store.Store, pricer source.Pricer, logger *slog.Logger) *Rollup {
	return &Rollup{store: st, pricer: pricer, logger: logger.With("component", "stats_rollup")}
}

// Run rolls up every wallet active inside the stats window. Per-wallet
// failures are logged and skipped.
func (r *Rollup) Run(ctx context.Context, now time.Time) error {
	wallets, err := r.store.ActiveWallets(ctx, now.Add(-statsWindow))
	if err != nil {
		return fmt.Errorf("stats rollup: %w", err)
	}

	done := 0
	for _, w := range wallets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.RollupWallet(ctx, w, now); err != nil {
			r.logger.Error("wallet rollup failed", "wallet", w.Address, "chain", w.Chain, "error", err)
			continue
		}
		done++
	}
	r.logger.Info("stats rollup complete", "wallets", done, "of", len(wallets))
	return nil
}

// RollupWallet recomputes and stores one wallet's stats.
func (r *Rollup) RollupWallet(ctx context.Context, w store.Wallet, now time.Time) error {
	trades, err := r.store.WalletTrades(ctx, w.Chain, w.Address, now.Add(-statsWindow))
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	verdict := DetectBot(w.IsContract, trades)
	if verdict.IsBot && !w.IsBot {
		r.logger.Info("wallet flagged as bot", "wallet", w.Address, "reason", verdict.Reason)
		if err := r.store.SetWalletFlags(ctx, w.Chain, w.Address, w.IsContract, true); err != nil {
			return err
		}
	}

	var totalRealized, totalUnrealized float64
	for token, tokenTrades := range GroupByToken(trades) {
		mark := r.markPrice(ctx, w.Chain, token, tokenTrades)
		pnl := ComputeTokenPnL(tokenTrades, mark, r.logger)
		totalRealized += pnl.RealizedUSD
		totalUnrealized += pnl.UnrealizedUSD

		err := r.store.UpsertPosition(ctx, store.PositionRow{
			Wallet:           w.Address,
			Token:            token,
			Chain:            w.Chain,
			Qty:              pnl.OpenQty(),
			CostBasisUSD:     pnl.OpenCostUSD(),
			RealizedPnLUSD:   pnl.RealizedUSD,
			UnrealizedPnLUSD: pnl.UnrealizedUSD,
			LastPriceUSD:     mark,
			LastUpdate:       now,
		})
		if err != nil {
			return err
		}
	}

	median, err := r.earlyScoreMedian(ctx, w.Chain, trades)
	if err != nil {
		return err
	}

	return r.store.UpsertWalletStats(ctx, store.WalletStats{
		Address:           w.Address,
		Chain:             w.Chain,
		TradesCount:       len(trades),
		RealizedPnLUSD:    totalRealized,
		UnrealizedPnLUSD:  totalUnrealized,
		BestTradeMultiple: BestTradeMultiple(trades),
		EarlyScoreMedian:  median,
		MaxDrawdownPct:    MaxDrawdownPct(RealizedSeries(trades)),
		LastUpdate:        now,
	})
}

// markPrice resolves the mark for unrealized P&L: live quote first, last
// recorded trade price when the router is stale.
func (r *Rollup) markPrice(ctx context.Context, chain types.Chain, token string, tokenTrades []types.Trade) float64 {
	quote := r.pricer.TokenPrice(ctx, chain, token)
	if !quote.Stale && quote.PriceUSD > 0 {
		return quote.PriceUSD
	}
	last, err := r.store.LastTradePrice(ctx, chain, token)
	if err == nil && last > 0 {
		return last
	}
	// Final fallback: the newest price among the wallet's own trades.
	for i := len(tokenTrades) - 1; i >= 0; i-- {
		if tokenTrades[i].PriceUSD > 0 {
			return tokenTrades[i].PriceUSD
		}
	}
	return 0
}

// earlyScoreMedian scores every buy in the window and takes the median.
func (r *Rollup) earlyScoreMedian(ctx context.Context, chain types.Chain, trades []types.Trade) (float64, error) {
	var scores []float64
	for _, t := range trades {
		if t.Side != types.Buy {
			continue
		}
		prior, total, err := r.store.TokenBuyerCounts(ctx, chain, t.Token, t.Timestamp)
		if err != nil {
			return 0, err
		}
		volume, err := r.store.TokenWindowVolume(ctx, chain, t.Token, t.Timestamp.Add(-time.Hour), t.Timestamp.Add(time.Hour))
		if err != nil {
			return 0, err
		}

		in := EarlyInput{
			PriorUniqueBuyers: prior,
			TotalUniqueBuyers: total,
			BuyValueUSD:       t.ValueUSD,
			WindowVolumeUSD:   volume,
		}
		token, err := r.store.GetToken(ctx, chain, t.Token)
		if err != nil {
			return 0, err
		}
		if token != nil && token.LiquidityUSD > 0 {
			in.HasLiquidity = true
			in.LiquidityUSD = token.LiquidityUSD
		}
		scores = append(scores, EarlyScore(in))
	}
	return Median(scores), nil
}
