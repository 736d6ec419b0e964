// Package store persists the scout's entities in a local SQLite database:
// tokens, trending snapshots, wallets, trades, positions, rolling wallet
// stats, the monitored watchlist, custom watchlist wallets, and the alert
// log. All writes are idempotent where the domain demands it (trades keyed
// by tx_hash) so jobs can re-run over overlapping windows safely.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{db: db, logger: logger.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	s.logger.Info("database opened", "path", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS tokens (
				token_address      TEXT NOT NULL,
				chain_id           TEXT NOT NULL,
				symbol             TEXT,
				first_seen_at      INTEGER NOT NULL,
				last_price_usd     REAL,
				liquidity_usd      REAL,
				is_honeypot        INTEGER,
				buy_tax_pct        REAL,
				sell_tax_pct       REAL,
				PRIMARY KEY (token_address, chain_id)
			);
			CREATE INDEX IF NOT EXISTS idx_tokens_chain ON tokens(chain_id);

			CREATE TABLE IF NOT EXISTS seed_tokens (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				token_address  TEXT NOT NULL,
				chain_id       TEXT NOT NULL,
				snapshot_ts    INTEGER NOT NULL,
				source         TEXT NOT NULL,
				rank_24h       INTEGER,
				vol_24h_usd    REAL,
				pct_change_24h REAL,
				liquidity_usd  REAL
			);
			CREATE INDEX IF NOT EXISTS idx_seed_tokens_snapshot ON seed_tokens(snapshot_ts);
			CREATE INDEX IF NOT EXISTS idx_seed_tokens_token_chain ON seed_tokens(token_address, chain_id);

			CREATE TABLE IF NOT EXISTS wallets (
				address        TEXT NOT NULL,
				chain_id       TEXT NOT NULL,
				is_contract    INTEGER NOT NULL DEFAULT 0,
				is_bot_flag    INTEGER NOT NULL DEFAULT 0,
				first_seen_at  INTEGER NOT NULL,
				last_active_at INTEGER,
				PRIMARY KEY (address, chain_id)
			);
			CREATE INDEX IF NOT EXISTS idx_wallets_chain ON wallets(chain_id);

			CREATE TABLE IF NOT EXISTS trades (
				tx_hash        TEXT PRIMARY KEY,
				ts             INTEGER NOT NULL,
				chain_id       TEXT NOT NULL,
				wallet_address TEXT NOT NULL,
				token_address  TEXT NOT NULL,
				side           TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
				qty_token      REAL NOT NULL,
				price_usd      REAL NOT NULL,
				usd_value      REAL NOT NULL,
				fee_usd        REAL NOT NULL DEFAULT 0,
				venue          TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_trades_wallet_ts ON trades(wallet_address, ts);
			CREATE INDEX IF NOT EXISTS idx_trades_token_ts ON trades(token_address, ts);
			CREATE INDEX IF NOT EXISTS idx_trades_chain_ts ON trades(chain_id, ts);

			CREATE TABLE IF NOT EXISTS positions (
				wallet_address     TEXT NOT NULL,
				token_address      TEXT NOT NULL,
				chain_id           TEXT NOT NULL,
				qty                REAL NOT NULL DEFAULT 0,
				cost_basis_usd     REAL NOT NULL DEFAULT 0,
				realized_pnl_usd   REAL NOT NULL DEFAULT 0,
				unrealized_pnl_usd REAL NOT NULL DEFAULT 0,
				last_price_usd     REAL,
				last_update        INTEGER NOT NULL,
				PRIMARY KEY (wallet_address, token_address)
			);
			CREATE INDEX IF NOT EXISTS idx_positions_wallet ON positions(wallet_address);

			CREATE TABLE IF NOT EXISTS wallet_stats_30d (
				wallet_address      TEXT NOT NULL,
				chain_id            TEXT NOT NULL,
				trades_count        INTEGER NOT NULL DEFAULT 0,
				realized_pnl_usd    REAL NOT NULL DEFAULT 0,
				unrealized_pnl_usd  REAL NOT NULL DEFAULT 0,
				best_trade_multiple REAL,
				earlyscore_median   REAL,
				max_drawdown_pct    REAL,
				last_update         INTEGER NOT NULL,
				PRIMARY KEY (wallet_address, chain_id)
			);
			CREATE INDEX IF NOT EXISTS idx_wallet_stats_pnl ON wallet_stats_30d(realized_pnl_usd);

			CREATE TABLE IF NOT EXISTS watchlist_entries (
				address        TEXT NOT NULL,
				chain_id       TEXT NOT NULL,
				score          REAL NOT NULL DEFAULT 0,
				added_at       INTEGER NOT NULL,
				updated_at     INTEGER NOT NULL,
				is_active      INTEGER NOT NULL DEFAULT 1,
				removed_reason TEXT,
				PRIMARY KEY (address, chain_id)
			);
			CREATE INDEX IF NOT EXISTS idx_watchlist_active ON watchlist_entries(is_active);

			CREATE TABLE IF NOT EXISTS custom_watchlist_wallets (
				address   TEXT NOT NULL,
				chain_id  TEXT NOT NULL,
				added_at  INTEGER NOT NULL,
				added_by  TEXT DEFAULT 'user',
				label     TEXT,
				notes     TEXT,
				is_active INTEGER NOT NULL DEFAULT 1,
				PRIMARY KEY (address, chain_id)
			);
			CREATE INDEX IF NOT EXISTS idx_custom_watchlist_active ON custom_watchlist_wallets(is_active);

			CREATE TABLE IF NOT EXISTS alerts (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				ts            INTEGER NOT NULL,
				type          TEXT NOT NULL CHECK (type IN ('single', 'confluence')),
				token_address TEXT NOT NULL,
				chain_id      TEXT NOT NULL,
				wallets_json  TEXT NOT NULL,
				payload_json  TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts);
			CREATE INDEX IF NOT EXISTS idx_alerts_token ON alerts(token_address);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		s.logger.Info("applied migration", "version", 1)
	}

	return nil
}
