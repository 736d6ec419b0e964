package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alpha-scout/pkg/types"
)

// WalletStats is a wallet's rolling 30-day rollup, recomputed from trades by
// the stats job.
type WalletStats struct {
	Address           string      `json:"address"`
	Chain             types.Chain `json:"chain_id"`
	TradesCount       int         `json:"trades_count"`
	RealizedPnLUSD    float64     `json:"realized_pnl_usd"`
	UnrealizedPnLUSD  float64     `json:"unrealized_pnl_usd"`
	BestTradeMultiple float64     `json:"best_trade_multiple"`
	EarlyScoreMedian  float64     `json:"earlyscore_median"`
	MaxDrawdownPct    float64     `json:"max_drawdown_pct"`
	LastUpdate        time.Time   `json:"last_update"`
}

// UpsertWalletStats replaces the rollup row for a wallet.
func (s *Store) UpsertWalletStats(ctx context.Context, st WalletStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_stats_30d (wallet_address, chain_id, trades_count, realized_pnl_usd, unrealized_pnl_usd, best_trade_multiple, earlyscore_median, max_drawdown_pct, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wallet_address, chain_id) DO UPDATE SET
			trades_count = excluded.trades_count,
			realized_pnl_usd = excluded.realized_pnl_usd,
			unrealized_pnl_usd = excluded.unrealized_pnl_usd,
			best_trade_multiple = excluded.best_trade_multiple,
			earlyscore_median = excluded.earlyscore_median,
			max_drawdown_pct = excluded.max_drawdown_pct,
			last_update = excluded.last_update`,
		st.Address, st.Chain, st.TradesCount, st.RealizedPnLUSD, st.UnrealizedPnLUSD,
		st.BestTradeMultiple, st.EarlyScoreMedian, st.MaxDrawdownPct, st.LastUpdate.Unix())
	if err != nil {
		return fmt.Errorf("upsert wallet stats %s: %w", st.Address, err)
	}
	return nil
}

// GetWalletStats returns a wallet's rollup, or nil when none exists yet.
func (s *Store) GetWalletStats(ctx context.Context, chain types.Chain, address string) (*WalletStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_address, chain_id, trades_count, realized_pnl_usd, unrealized_pnl_usd,
		       COALESCE(best_trade_multiple, 0), COALESCE(earlyscore_median, 0), COALESCE(max_drawdown_pct, 0), last_update
		FROM wallet_stats_30d WHERE wallet_address = ? AND chain_id = ?`, address, chain)
	st, err := scanStats(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet stats %s: %w", address, err)
	}
	return &st, nil
}

// AllWalletStats returns every rollup row for non-bot wallets, the ranker's
// candidate pool.
func (s *Store) AllWalletStats(ctx context.Context) ([]WalletStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ws.wallet_address, ws.chain_id, ws.trades_count, ws.realized_pnl_usd, ws.unrealized_pnl_usd,
		       COALESCE(ws.best_trade_multiple, 0), COALESCE(ws.earlyscore_median, 0), COALESCE(ws.max_drawdown_pct, 0), ws.last_update
		FROM wallet_stats_30d ws
		JOIN wallets w ON w.address = ws.wallet_address AND w.chain_id = ws.chain_id
		WHERE w.is_bot_flag = 0`)
	if err != nil {
		return nil, fmt.Errorf("all wallet stats: %w", err)
	}
	defer rows.Close()

	var out []WalletStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// TopWalletStats returns the best rollups by realized P&L, for the
// dashboard.
func (s *Store) TopWalletStats(ctx context.Context, limit int) ([]WalletStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, chain_id, trades_count, realized_pnl_usd, unrealized_pnl_usd,
		       COALESCE(best_trade_multiple, 0), COALESCE(earlyscore_median, 0), COALESCE(max_drawdown_pct, 0), last_update
		FROM wallet_stats_30d
		ORDER BY realized_pnl_usd DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top wallet stats: %w", err)
	}
	defer rows.Close()

	var out []WalletStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStats(row scanner) (WalletStats, error) {
	var st WalletStats
	var update int64
	err := row.Scan(&st.Address, &st.Chain, &st.TradesCount, &st.RealizedPnLUSD, &st.UnrealizedPnLUSD,
		&st.BestTradeMultiple, &st.EarlyScoreMedian, &st.MaxDrawdownPct, &update)
	if err != nil {
		return WalletStats{}, err
	}
	st.LastUpdate = time.Unix(update, 0).UTC()
	return st, nil
}

// PositionRow is the open-position snapshot per (wallet, token), written by
// the stats rollup.
type PositionRow struct {
	Wallet           string
	Token            string
	Chain            types.Chain
	Qty              float64
	CostBasisUSD     float64
	RealizedPnLUSD   float64
	UnrealizedPnLUSD float64
	LastPriceUSD     float64
	LastUpdate       time.Time
}

// UpsertPosition replaces the position snapshot for a (wallet, token) pair.
func (s *Store) UpsertPosition(ctx context.Context, p PositionRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (wallet_address, token_address, chain_id, qty, cost_basis_usd, realized_pnl_usd, unrealized_pnl_usd, last_price_usd, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wallet_address, token_address) DO UPDATE SET
			qty = excluded.qty,
			cost_basis_usd = excluded.cost_basis_usd,
			realized_pnl_usd = excluded.realized_pnl_usd,
			unrealized_pnl_usd = excluded.unrealized_pnl_usd,
			last_price_usd = excluded.last_price_usd,
			last_update = excluded.last_update`,
		p.Wallet, p.Token, p.Chain, p.Qty, p.CostBasisUSD, p.RealizedPnLUSD, p.UnrealizedPnLUSD, p.LastPriceUSD, p.LastUpdate.Unix())
	if err != nil {
		return fmt.Errorf("upsert position %s/%s: %w", p.Wallet, p.Token, err)
	}
	return nil
}

// WalletPositions returns a wallet's open positions (qty > 0).
func (s *Store) WalletPositions(ctx context.Context, wallet string) ([]PositionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, token_address, chain_id, qty, cost_basis_usd, realized_pnl_usd, unrealized_pnl_usd, COALESCE(last_price_usd, 0), last_update
		FROM positions WHERE wallet_address = ? AND qty > 0`, wallet)
	if err != nil {
		return nil, fmt.Errorf("wallet positions %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var p PositionRow
		var update int64
		if err := rows.Scan(&p.Wallet, &p.Token, &p.Chain, &p.Qty, &p.CostBasisUSD, &p.RealizedPnLUSD, &p.UnrealizedPnLUSD, &p.LastPriceUSD, &update); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.LastUpdate = time.Unix(update, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
