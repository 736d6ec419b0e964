package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alpha-scout/pkg/types"
)

// InsertTrade stores a trade keyed by tx_hash. Re-inserting a known hash is
// a no-op; the return value reports whether the row was new.
func (s *Store) InsertTrade(ctx context.Context, t types.Trade) (bool, error) {
	if !t.Side.Valid() {
		return false, fmt.Errorf("insert trade %s: invalid side %q", t.TxHash, t.Side)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades (tx_hash, ts, chain_id, wallet_address, token_address, side, qty_token, price_usd, usd_value, fee_usd, venue)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TxHash, t.Timestamp.Unix(), t.Chain, t.Wallet, t.Token, t.Side, t.QtyToken, t.PriceUSD, t.ValueUSD, t.FeeUSD, t.Venue)
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", t.TxHash, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// WalletTrades returns a wallet's trades since the cutoff in ascending time
// order, the order the FIFO engine consumes them in.
func (s *Store) WalletTrades(ctx context.Context, chain types.Chain, wallet string, since time.Time) ([]types.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, ts, chain_id, wallet_address, token_address, side, qty_token, price_usd, usd_value, fee_usd, COALESCE(venue, '')
		FROM trades
		WHERE wallet_address = ? AND chain_id = ? AND ts >= ?
		ORDER BY ts ASC, tx_hash ASC`, wallet, chain, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("wallet trades %s: %w", wallet, err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// RecentTrades returns the newest trades across all wallets, for the
// dashboard feed.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]types.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, ts, chain_id, wallet_address, token_address, side, qty_token, price_usd, usd_value, fee_usd, COALESCE(venue, '')
		FROM trades ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// LastTradePrice returns the most recent trade price recorded for a token,
// used as the mark fallback when every live price source fails.
func (s *Store) LastTradePrice(ctx context.Context, chain types.Chain, token string) (float64, error) {
	var price float64
	err := s.db.QueryRowContext(ctx, `
		SELECT price_usd FROM trades
		WHERE token_address = ? AND chain_id = ? AND price_usd > 0
		ORDER BY ts DESC LIMIT 1`, token, chain).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last trade price %s: %w", token, err)
	}
	return price, nil
}

// TokenBuyerCounts returns how many unique wallets bought the token before
// ts, and how many have bought it in total.
func (s *Store) TokenBuyerCounts(ctx context.Context, chain types.Chain, token string, before time.Time) (prior, total int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(DISTINCT wallet_address) FROM trades WHERE token_address = ? AND chain_id = ? AND side = 'buy' AND ts < ?),
		       (SELECT COUNT(DISTINCT wallet_address) FROM trades WHERE token_address = ? AND chain_id = ? AND side = 'buy')`,
		token, chain, before.Unix(), token, chain).Scan(&prior, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("token buyer counts %s: %w", token, err)
	}
	return prior, total, nil
}

// TokenWindowVolume sums traded USD value for the token inside [start, end].
func (s *Store) TokenWindowVolume(ctx context.Context, chain types.Chain, token string, start, end time.Time) (float64, error) {
	var volume sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(usd_value) FROM trades
		WHERE token_address = ? AND chain_id = ? AND ts >= ? AND ts <= ?`,
		token, chain, start.Unix(), end.Unix()).Scan(&volume)
	if err != nil {
		return 0, fmt.Errorf("token window volume %s: %w", token, err)
	}
	return volume.Float64, nil
}

func scanTrades(rows *sql.Rows) ([]types.Trade, error) {
	var out []types.Trade
	for rows.Next() {
		var t types.Trade
		var ts int64
		if err := rows.Scan(&t.TxHash, &ts, &t.Chain, &t.Wallet, &t.Token, &t.Side, &t.QtyToken, &t.PriceUSD, &t.ValueUSD, &t.FeeUSD, &t.Venue); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
