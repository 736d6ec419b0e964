package paper

import (
	"context"
	"log/slog"

	"alpha-scout/internal/confluence"
	"alpha-scout/internal/source"
	"alpha-scout/pkg/types"
)

// Manager drives the periodic mark cycle: refresh each open position's
// price, count sell-side whale activity, and let the trader apply its exit
// rules.
type Manager struct {
	trader   *Trader
	pricer   source.Pricer
	detector *confluence.Detector
	logger   *slog.Logger
}

func NewManager(trader *Trader, pricer source.Pricer, detector *confluence.Detector, logger *slog.Logger) *Manager {
	return &Manager{
		trader:   trader,
		pricer:   pricer,
		detector: detector,
		logger:   logger.With("component", "paper_manager"),
	}
}

// Run marks every open position once. A stale quote marks at zero, which
// the trader treats as hold.
func (m *Manager) Run(ctx context.Context) error {
	for _, pos := range m.trader.OpenPositions() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		mark := 0.0
		quote := m.pricer.TokenPrice(ctx, pos.Chain, pos.Token)
		if !quote.Stale && quote.PriceUSD > 0 {
			mark = quote.PriceUSD
		}

		whaleSells := m.detector.Stats(ctx, types.Sell, pos.Chain, pos.Token).UniqueWallets

		if closed, ok := m.trader.Mark(pos.Token, mark, whaleSells); ok {
			m.logger.Info("position closed",
				"token", closed.Token, "profit", closed.ProfitUSD,
				"pct", closed.ProfitPct, "reason", closed.SellReason)
		}
	}
	return nil
}
