package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alpha-scout/pkg/types"
)

// AlertRow is one persisted alert. The payload carries the full triggering
// conditions; wallets are duplicated into their own column for querying.
type AlertRow struct {
	ID      int64              `json:"id"`
	TS      time.Time          `json:"ts"`
	Type    types.AlertType    `json:"type"`
	Token   string             `json:"token"`
	Chain   types.Chain        `json:"chain_id"`
	Wallets []string           `json:"wallets"`
	Payload types.AlertPayload `json:"payload"`
}

// InsertAlert persists an alert and returns its id. Alerts are written
// before any delivery attempt so the log survives sink failures.
func (s *Store) InsertAlert(ctx context.Context, p types.AlertPayload) (int64, error) {
	wallets, err := json.Marshal(p.Wallets)
	if err != nil {
		return 0, fmt.Errorf("marshal alert wallets: %w", err)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal alert payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (ts, type, token_address, chain_id, wallets_json, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Timestamp.Unix(), p.Type, p.Token, p.Chain, string(wallets), string(payload))
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	return res.LastInsertId()
}

// AlertsSince returns alerts at or after the cutoff, newest first. The
// adaptive weight pass and the dashboard both read from here.
func (s *Store) AlertsSince(ctx context.Context, since time.Time, limit int) ([]AlertRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, type, token_address, chain_id, wallets_json, COALESCE(payload_json, '')
		FROM alerts WHERE ts >= ?
		ORDER BY ts DESC LIMIT ?`, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("alerts since: %w", err)
	}
	defer rows.Close()

	var out []AlertRow
	for rows.Next() {
		var a AlertRow
		var ts int64
		var walletsJSON, payloadJSON string
		if err := rows.Scan(&a.ID, &ts, &a.Type, &a.Token, &a.Chain, &walletsJSON, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.TS = time.Unix(ts, 0).UTC()
		if err := json.Unmarshal([]byte(walletsJSON), &a.Wallets); err != nil {
			return nil, fmt.Errorf("unmarshal alert %d wallets: %w", a.ID, err)
		}
		if payloadJSON != "" {
			if err := json.Unmarshal([]byte(payloadJSON), &a.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal alert %d payload: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
