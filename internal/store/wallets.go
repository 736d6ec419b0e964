package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alpha-scout/pkg/types"
)

// Wallet is a wallets row.
type Wallet struct {
	Address      string
	Chain        types.Chain
	IsContract   bool
	IsBot        bool
	FirstSeenAt  time.Time
	LastActiveAt time.Time
}

// TouchWallet creates the wallet on first sight and bumps last_active_at on
// every subsequent call. Returns true when the wallet was newly created.
func (s *Store) TouchWallet(ctx context.Context, chain types.Chain, address string, activeAt time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallets WHERE address = ? AND chain_id = ?)`,
		address, chain).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("touch wallet %s: %w", address, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallets (address, chain_id, first_seen_at, last_active_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			last_active_at = MAX(COALESCE(wallets.last_active_at, 0), excluded.last_active_at)`,
		address, chain, activeAt.Unix(), activeAt.Unix())
	if err != nil {
		return false, fmt.Errorf("touch wallet %s: %w", address, err)
	}
	return !exists, nil
}

// SetWalletFlags records the contract and bot classification for a wallet.
// The bot flag is sticky: once set it is never cleared here.
func (s *Store) SetWalletFlags(ctx context.Context, chain types.Chain, address string, isContract, isBot bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wallets SET is_contract = ?, is_bot_flag = MAX(is_bot_flag, ?)
		WHERE address = ? AND chain_id = ?`,
		isContract, isBot, address, chain)
	if err != nil {
		return fmt.Errorf("set wallet flags %s: %w", address, err)
	}
	return nil
}

// GetWallet returns the wallet row, or nil when unknown.
func (s *Store) GetWallet(ctx context.Context, chain types.Chain, address string) (*Wallet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, chain_id, is_contract, is_bot_flag, first_seen_at, COALESCE(last_active_at, 0)
		FROM wallets WHERE address = ? AND chain_id = ?`, address, chain)

	var w Wallet
	var seen, active int64
	err := row.Scan(&w.Address, &w.Chain, &w.IsContract, &w.IsBot, &seen, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet %s: %w", address, err)
	}
	w.FirstSeenAt = time.Unix(seen, 0).UTC()
	if active > 0 {
		w.LastActiveAt = time.Unix(active, 0).UTC()
	}
	return &w, nil
}

// ActiveWallets returns non-bot wallets active since the cutoff, used by the
// stats rollup to bound its work.
func (s *Store) ActiveWallets(ctx context.Context, since time.Time) ([]Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, chain_id, is_contract, is_bot_flag, first_seen_at, COALESCE(last_active_at, 0)
		FROM wallets
		WHERE is_bot_flag = 0 AND last_active_at >= ?`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("active wallets: %w", err)
	}
	defer rows.Close()
	return scanWallets(rows)
}

func scanWallets(rows *sql.Rows) ([]Wallet, error) {
	var out []Wallet
	for rows.Next() {
		var w Wallet
		var seen, active int64
		if err := rows.Scan(&w.Address, &w.Chain, &w.IsContract, &w.IsBot, &seen, &active); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.FirstSeenAt = time.Unix(seen, 0).UTC()
		if active > 0 {
			w.LastActiveAt = time.Unix(active, 0).UTC()
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ————————————————————————————————————————————————————————————————————————
// Monitored watchlist (auto-ranked pool)
// ————————————————————————————————————————————————————————————————————————

// WatchlistEntry is one monitored wallet on the auto-ranked watchlist.
// Inactive entries are tombstones: removal never deletes the row.
type WatchlistEntry struct {
	Address       string
	Chain         types.Chain
	Score         float64
	AddedAt       time.Time
	UpdatedAt     time.Time
	IsActive      bool
	RemovedReason string
}

// UpsertWatchlistEntry activates (or re-activates) a wallet on the monitored
// set with its current composite score.
func (s *Store) UpsertWatchlistEntry(ctx context.Context, chain types.Chain, address string, score float64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlist_entries (address, chain_id, score, added_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at,
			is_active = 1,
			removed_reason = NULL`,
		address, chain, score, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert watchlist entry %s: %w", address, err)
	}
	return nil
}

// DeactivateWatchlistEntry soft-removes a wallet from the monitored set,
// recording why. Stats and trades are untouched.
func (s *Store) DeactivateWatchlistEntry(ctx context.Context, chain types.Chain, address, reason string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE watchlist_entries
		SET is_active = 0, removed_reason = ?, updated_at = ?
		WHERE address = ? AND chain_id = ?`,
		reason, now.Unix(), address, chain)
	if err != nil {
		return fmt.Errorf("deactivate watchlist entry %s: %w", address, err)
	}
	return nil
}

// ActiveWatchlist returns the active monitored entries, highest score first.
func (s *Store) ActiveWatchlist(ctx context.Context) ([]WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, chain_id, score, added_at, updated_at, is_active, COALESCE(removed_reason, '')
		FROM watchlist_entries WHERE is_active = 1
		ORDER BY score DESC`)
	if err != nil {
		return nil, fmt.Errorf("active watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		var added, updated int64
		if err := rows.Scan(&e.Address, &e.Chain, &e.Score, &added, &updated, &e.IsActive, &e.RemovedReason); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		e.AddedAt = time.Unix(added, 0).UTC()
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// ————————————————————————————————————————————————————————————————————————
// Custom watchlist (user-submitted)
// ————————————————————————————————————————————————————————————————————————

// CustomWallet is one user-submitted wallet monitored alongside the auto
// pool.
type CustomWallet struct {
	Address  string      `json:"address"`
	Chain    types.Chain `json:"chain_id"`
	AddedAt  time.Time   `json:"added_at"`
	AddedBy  string      `json:"added_by,omitempty"`
	Label    string      `json:"label,omitempty"`
	Notes    string      `json:"notes,omitempty"`
	IsActive bool        `json:"is_active"`
}

// AddCustomWallet adds or re-activates a custom watchlist wallet.
func (s *Store) AddCustomWallet(ctx context.Context, w CustomWallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_watchlist_wallets (address, chain_id, added_at, added_by, label, notes, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			label = excluded.label,
			notes = excluded.notes,
			is_active = 1`,
		w.Address, w.Chain, w.AddedAt.Unix(), w.AddedBy, w.Label, w.Notes)
	if err != nil {
		return fmt.Errorf("add custom wallet %s: %w", w.Address, err)
	}
	return nil
}

// RemoveCustomWallet deactivates a custom wallet. Returns false when the
// wallet was not on the list.
func (s *Store) RemoveCustomWallet(ctx context.Context, chain types.Chain, address string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE custom_watchlist_wallets SET is_active = 0
		WHERE address = ? AND chain_id = ? AND is_active = 1`, address, chain)
	if err != nil {
		return false, fmt.Errorf("remove custom wallet %s: %w", address, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CustomWallets returns the active custom watchlist.
func (s *Store) CustomWallets(ctx context.Context) ([]CustomWallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, chain_id, added_at, COALESCE(added_by, ''), COALESCE(label, ''), COALESCE(notes, ''), is_active
		FROM custom_watchlist_wallets WHERE is_active = 1
		ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("custom wallets: %w", err)
	}
	defer rows.Close()

	var out []CustomWallet
	for rows.Next() {
		var w CustomWallet
		var added int64
		if err := rows.Scan(&w.Address, &w.Chain, &added, &w.AddedBy, &w.Label, &w.Notes, &w.IsActive); err != nil {
			return nil, fmt.Errorf("scan custom wallet: %w", err)
		}
		w.AddedAt = time.Unix(added, 0).UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}
