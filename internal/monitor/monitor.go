// Package monitor polls the monitored wallet set for new trades and turns
// them into signals: every trade feeds the confluence detector, buy-side
// hits open paper positions and fire confluence alerts, lone buys fire
// single-wallet alerts with the wallet's 30-day record attached.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"alpha-scout/internal/alert"
	"alpha-scout/internal/confluence"
	"alpha-scout/internal/paper"
	"alpha-scout/internal/source"
	"alpha-scout/internal/store"
	"alpha-scout/internal/watchlist"
	"alpha-scout/pkg/types"
)

// Deps wires the monitor's collaborators.
type Deps struct {
	Store    *store.Store
	Adapters map[types.Chain]source.ChainAdapter
	Ranker   *watchlist.Ranker
	Detector *confluence.Detector
	Trader   *paper.Trader
	Pricer   source.Pricer
	Alerter  alert.Alerter
	Redis    *redis.Client
}

// Monitor runs the wallet-monitoring cycle.
type Monitor struct {
	deps       Deps
	cursors    *cursorStore
	fetchLimit int
	paperOn    bool
	logger     *slog.Logger
}

func New(deps Deps, fetchLimit int, paperOn bool, logger *slog.Logger) *Monitor {
	l := logger.With("component", "monitor")
	return &Monitor{
		deps:       deps,
		cursors:    newCursorStore(deps.Redis, l),
		fetchLimit: fetchLimit,
		paperOn:    paperOn,
		logger:     l,
	}
}

// Run polls every monitored wallet once. Per-wallet failures are logged
// and cost that wallet's cycle only.
func (m *Monitor) Run(ctx context.Context, now time.Time) error {
	set, err := m.deps.Ranker.MonitoredSet(ctx, now)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	processed := 0
	for _, rw := range set {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := m.pollWallet(ctx, rw.Chain, rw.Address)
		if err != nil {
			m.logger.Warn("wallet poll failed", "wallet", rw.Address, "chain", rw.Chain, "error", err)
			continue
		}
		processed += n
	}
	m.logger.Info("monitoring cycle complete", "wallets", len(set), "new_trades", processed)
	return nil
}

func (m *Monitor) pollWallet(ctx context.Context, chain types.Chain, wallet string) (int, error) {
	adapter, ok := m.deps.Adapters[chain]
	if !ok {
		return 0, nil
	}

	trades, err := adapter.RecentWalletTrades(ctx, wallet, m.fetchLimit)
	if err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, nil
	}

	cursor := m.cursors.Get(ctx, chain, wallet)
	fresh := trimAtCursor(trades, cursor)

	processed := 0
	for _, trade := range fresh {
		if types.IsExcluded(chain, trade.Token) {
			continue
		}
		inserted, err := m.deps.Store.InsertTrade(ctx, trade)
		if err != nil {
			m.logger.Error("trade insert failed", "tx", trade.TxHash, "error", err)
			continue
		}
		if !inserted {
			continue
		}
		if _, err := m.deps.Store.TouchWallet(ctx, chain, wallet, trade.Timestamp); err != nil {
			m.logger.Error("wallet touch failed", "wallet", wallet, "error", err)
		}
		m.handleTrade(ctx, trade)
		processed++
	}

	// trades are newest first; remember the newest hash either way.
	m.cursors.Set(ctx, chain, wallet, trades[0].TxHash)
	return processed, nil
}

func (m *Monitor) handleTrade(ctx context.Context, trade types.Trade) {
	ev := confluence.Event{
		Wallet:   trade.Wallet,
		TS:       trade.Timestamp.Unix(),
		TxHash:   trade.TxHash,
		PriceUSD: trade.PriceUSD,
		ValueUSD: trade.ValueUSD,
	}
	if err := m.deps.Detector.Record(ctx, trade.Side, trade.Chain, trade.Token, ev); err != nil {
		m.logger.Error("confluence record failed", "tx", trade.TxHash, "error", err)
	}

	// Sells only feed the whale-exit window; the position manager reads it.
	if trade.Side != types.Buy {
		return
	}

	events, hit := m.deps.Detector.Check(ctx, types.Buy, trade.Chain, trade.Token)
	if hit {
		m.handleConfluence(ctx, trade, events)
		m.deps.Detector.Clear(ctx, types.Buy, trade.Chain, trade.Token)
		return
	}
	m.emitSingle(ctx, trade)
}

func (m *Monitor) handleConfluence(ctx context.Context, trade types.Trade, events []confluence.Event) {
	wallets := make([]string, len(events))
	for i, ev := range events {
		wallets[i] = ev.Wallet
	}

	profile := m.tokenProfile(ctx, trade)
	payload := types.AlertPayload{
		Type:        types.AlertConfluence,
		Timestamp:   trade.Timestamp,
		Chain:       trade.Chain,
		Token:       trade.Token,
		TokenSymbol: profile.Symbol,
		Side:        types.Buy,
		Wallets:     wallets,
		PriceUSD:    profile.PriceUSD,
		ValueUSD:    trade.ValueUSD,
		TxHash:      trade.TxHash,
		ExplorerURL: trade.Chain.ExplorerTxURL(trade.TxHash),
	}
	if _, err := m.deps.Store.InsertAlert(ctx, payload); err != nil {
		m.logger.Error("alert persist failed", "token", trade.Token, "error", err)
	}
	if err := m.deps.Alerter.Emit(ctx, payload); err != nil {
		m.logger.Warn("alert delivery failed", "token", trade.Token, "error", err)
	}

	if !m.paperOn {
		return
	}
	entered, reason := m.deps.Trader.Enter(paper.EntrySignal{
		Chain:     trade.Chain,
		Token:     trade.Token,
		Profile:   profile,
		NumWhales: len(wallets),
		Reason:    fmt.Sprintf("%d whale confluence", len(wallets)),
	})
	if !entered && reason != "already_held" {
		m.logger.Info("paper entry refused", "token", trade.Token, "reason", reason)
	}
}

func (m *Monitor) emitSingle(ctx context.Context, trade types.Trade) {
	payload := types.AlertPayload{
		Type:        types.AlertSingle,
		Timestamp:   trade.Timestamp,
		Chain:       trade.Chain,
		Token:       trade.Token,
		Side:        trade.Side,
		Wallets:     []string{trade.Wallet},
		PriceUSD:    trade.PriceUSD,
		ValueUSD:    trade.ValueUSD,
		TxHash:      trade.TxHash,
		ExplorerURL: trade.Chain.ExplorerTxURL(trade.TxHash),
	}
	if stats, err := m.deps.Store.GetWalletStats(ctx, trade.Chain, trade.Wallet); err == nil && stats != nil {
		payload.Note = fmt.Sprintf("30d: %d trades, realized $%.0f, best %.1fx",
			stats.TradesCount, stats.RealizedPnLUSD, stats.BestTradeMultiple)
	}

	if _, err := m.deps.Store.InsertAlert(ctx, payload); err != nil {
		m.logger.Error("alert persist failed", "token", trade.Token, "error", err)
	}
	if err := m.deps.Alerter.Emit(ctx, payload); err != nil {
		m.logger.Warn("alert delivery failed", "token", trade.Token, "error", err)
	}
}

// tokenProfile assembles the market snapshot the entry filter needs: live
// price when available, symbol and liquidity from the token record, 24h
// volume from the latest trending observation.
func (m *Monitor) tokenProfile(ctx context.Context, trade types.Trade) paper.TokenProfile {
	profile := paper.TokenProfile{PriceUSD: trade.PriceUSD}

	if quote := m.deps.Pricer.TokenPrice(ctx, trade.Chain, trade.Token); !quote.Stale && quote.PriceUSD > 0 {
		profile.PriceUSD = quote.PriceUSD
	}
	if token, err := m.deps.Store.GetToken(ctx, trade.Chain, trade.Token); err == nil && token != nil {
		profile.Symbol = token.Symbol
		profile.LiquidityUSD = token.LiquidityUSD
	}
	if seed, err := m.deps.Store.LatestSeed(ctx, trade.Chain, trade.Token); err == nil && seed != nil {
		profile.Volume24hUSD = seed.Volume24hUSD
	}
	return profile
}

// trimAtCursor keeps the trades newer than the cursor hash and returns
// them oldest first. An unknown cursor means everything is new.
func trimAtCursor(newestFirst []types.Trade, cursor string) []types.Trade {
	end := len(newestFirst)
	if cursor != "" {
		for i, t := range newestFirst {
			if t.TxHash == cursor {
				end = i
				break
			}
		}
	}
	fresh := make([]types.Trade, end)
	for i := 0; i < end; i++ {
		fresh[i] = newestFirst[end-1-i]
	}
	return fresh
}
