package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alpha-scout/pkg/types"
)

// Token is a tokens row: metadata plus risk flags when a source provides
// them. IsHoneypot is nil when no source has reported either way.
type Token struct {
	Address      string
	Chain        types.Chain
	Symbol       string
	FirstSeenAt  time.Time
	LastPriceUSD float64
	LiquidityUSD float64
	IsHoneypot   *bool
	BuyTaxPct    float64
	SellTaxPct   float64
}

// UpsertToken creates or refreshes a token row. First-seen is preserved on
// conflict; price, liquidity and risk flags take the latest observation.
func (s *Store) UpsertToken(ctx context.Context, t Token) error {
	var honeypot any
	if t.IsHoneypot != nil {
		honeypot = *t.IsHoneypot
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (token_address, chain_id, symbol, first_seen_at, last_price_usd, liquidity_usd, is_honeypot, buy_tax_pct, sell_tax_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (token_address, chain_id) DO UPDATE SET
			symbol = excluded.symbol,
			last_price_usd = excluded.last_price_usd,
			liquidity_usd = excluded.liquidity_usd,
			is_honeypot = COALESCE(excluded.is_honeypot, tokens.is_honeypot),
			buy_tax_pct = excluded.buy_tax_pct,
			sell_tax_pct = excluded.sell_tax_pct`,
		t.Address, t.Chain, t.Symbol, t.FirstSeenAt.Unix(), t.LastPriceUSD, t.LiquidityUSD, honeypot, t.BuyTaxPct, t.SellTaxPct)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", t.Address, err)
	}
	return nil
}

// GetToken returns the token row, or nil when unknown.
func (s *Store) GetToken(ctx context.Context, chain types.Chain, address string) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_address, chain_id, COALESCE(symbol, ''), first_seen_at,
		       COALESCE(last_price_usd, 0), COALESCE(liquidity_usd, 0),
		       is_honeypot, COALESCE(buy_tax_pct, 0), COALESCE(sell_tax_pct, 0)
		FROM tokens WHERE token_address = ? AND chain_id = ?`, address, chain)

	var t Token
	var seen int64
	var honeypot sql.NullBool
	err := row.Scan(&t.Address, &t.Chain, &t.Symbol, &seen, &t.LastPriceUSD, &t.LiquidityUSD, &honeypot, &t.BuyTaxPct, &t.SellTaxPct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", address, err)
	}
	t.FirstSeenAt = time.Unix(seen, 0).UTC()
	if honeypot.Valid {
		v := honeypot.Bool
		t.IsHoneypot = &v
	}
	return &t, nil
}

// InsertSeed records one trending-token observation.
func (s *Store) InsertSeed(ctx context.Context, e types.SeedEntry, source string, snapshotTS time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seed_tokens (token_address, chain_id, snapshot_ts, source, rank_24h, vol_24h_usd, pct_change_24h, liquidity_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Token, e.Chain, snapshotTS.Unix(), source, e.Rank, e.Volume24hUSD, e.Change24hPct, e.LiquidityUSD)
	if err != nil {
		return fmt.Errorf("insert seed %s: %w", e.Token, err)
	}
	return nil
}

// SeedRow is one stored trending observation.
type SeedRow struct {
	Token        string
	Chain        types.Chain
	SnapshotTS   time.Time
	Source       string
	Rank         int
	Volume24hUSD float64
	Change24hPct float64
	LiquidityUSD float64
}

// RecentSeeds returns the best-ranked seed tokens observed since the cutoff,
// deduplicated by (token, chain) keeping the most recent observation.
func (s *Store) RecentSeeds(ctx context.Context, since time.Time, limit int) ([]SeedRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_address, chain_id, MAX(snapshot_ts), source,
		       COALESCE(rank_24h, 0), COALESCE(vol_24h_usd, 0),
		       COALESCE(pct_change_24h, 0), COALESCE(liquidity_usd, 0)
		FROM seed_tokens
		WHERE snapshot_ts >= ?
		GROUP BY token_address, chain_id
		ORDER BY rank_24h ASC
		LIMIT ?`, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("recent seeds: %w", err)
	}
	defer rows.Close()

	var out []SeedRow
	for rows.Next() {
		var r SeedRow
		var ts int64
		if err := rows.Scan(&r.Token, &r.Chain, &ts, &r.Source, &r.Rank, &r.Volume24hUSD, &r.Change24hPct, &r.LiquidityUSD); err != nil {
			return nil, fmt.Errorf("scan seed: %w", err)
		}
		r.SnapshotTS = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSeed returns the newest trending observation of a token, nil when
// the token was never seeded.
func (s *Store) LatestSeed(ctx context.Context, chain types.Chain, token string) (*SeedRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_address, chain_id, snapshot_ts, source,
		       COALESCE(rank_24h, 0), COALESCE(vol_24h_usd, 0),
		       COALESCE(pct_change_24h, 0), COALESCE(liquidity_usd, 0)
		FROM seed_tokens
		WHERE token_address = ? AND chain_id = ?
		ORDER BY snapshot_ts DESC
		LIMIT 1`, token, chain)

	var r SeedRow
	var ts int64
	err := row.Scan(&r.Token, &r.Chain, &ts, &r.Source, &r.Rank, &r.Volume24hUSD, &r.Change24hPct, &r.LiquidityUSD)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest seed: %w", err)
	}
	r.SnapshotTS = time.Unix(ts, 0).UTC()
	return &r, nil
}

// SeedRankPercentile returns the token's rank percentile (0 = top) among
// seeds observed since the cutoff, and whether the token was seeded at all.
func (s *Store) SeedRankPercentile(ctx context.Context, chain types.Chain, token string, since time.Time) (float64, bool, error) {
	var rank, total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT MIN(rank_24h) FROM seed_tokens WHERE token_address = ? AND chain_id = ? AND snapshot_ts >= ?),
		       (SELECT COUNT(DISTINCT token_address) FROM seed_tokens WHERE chain_id = ? AND snapshot_ts >= ?)`,
		token, chain, since.Unix(), chain, since.Unix()).Scan(&rank, &total)
	if err != nil {
		return 0, false, fmt.Errorf("seed rank percentile: %w", err)
	}
	if !rank.Valid || total.Int64 == 0 {
		return 0, false, nil
	}
	return float64(rank.Int64-1) / float64(total.Int64), true, nil
}
