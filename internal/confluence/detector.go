// Package confluence tracks trade events per (side, chain, token) in a
// rolling window and reports when enough distinct watchlist wallets acted
// on the same token. The buy side drives entries, the sell side drives
// whale-exit signals. State lives in Redis sorted sets scored by event time
// so multiple processes share the window; an in-memory mirror keeps
// detection working when Redis is down.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// Event is one recorded watchlist trade inside the window.
type Event struct {
	Wallet   string  `json:"wallet"`
	TS       int64   `json:"ts"`
	TxHash   string  `json:"tx_hash,omitempty"`
	PriceUSD float64 `json:"price_usd,omitempty"`
	ValueUSD float64 `json:"value_usd,omitempty"`
}

// WindowStats summarizes the current window for one token.
type WindowStats struct {
	TotalBuys     int `json:"total_buys"`
	UniqueWallets int `json:"unique_wallets"`
	WindowMinutes int `json:"window_minutes"`
}

// Detector records buy events and answers confluence queries.
type Detector struct {
	client     *redis.Client
	window     time.Duration
	grace      time.Duration
	minWallets int
	logger     *slog.Logger

	redisOK atomic.Bool

	memMu sync.Mutex
	mem   map[string][]Event

	now func() time.Time
}

func NewDetector(client *redis.Client, cfg config.ConfluenceConfig, logger *slog.Logger) *Detector {
	d := &Detector{
		client:     client,
		window:     cfg.Window(),
		grace:      time.Duration(cfg.ExpiryGraceSecond) * time.Second,
		minWallets: cfg.MinWallets,
		logger:     logger.With("component", "confluence"),
		mem:        make(map[string][]Event),
		now:        time.Now,
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			d.logger.Warn("redis unavailable, using in-memory window", "error", err)
		} else {
			d.redisOK.Store(true)
		}
	}
	return d
}

// MinWallets returns the configured confluence threshold.
func (d *Detector) MinWallets() int { return d.minWallets }

func (d *Detector) key(side types.Side, chain types.Chain, token string) string {
	return fmt.Sprintf("confluence:%s:%s:%s", side, chain, token)
}

// Record stores one trade event. Recording the same (wallet, tx) twice is
// a no-op: the serialized event is the sorted-set member, so a replay
// overwrites itself.
func (d *Detector) Record(ctx context.Context, side types.Side, chain types.Chain, token string, ev Event) error {
	key := d.key(side, chain, token)

	// The memory mirror is always written so a Redis outage never loses
	// the current window.
	d.recordMem(key, ev)

	if d.client == nil || !d.redisOK.Load() {
		return nil
	}

	member, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal confluence event: %w", err)
	}

	pipe := d.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ev.TS), Member: string(member)})
	pipe.Expire(ctx, key, d.window+d.grace)
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Warn("redis record failed, memory window only", "error", err)
		d.redisOK.Store(false)
	}
	return nil
}

// Check evicts expired events and returns the unique-wallet events in the
// window, oldest first, when at least minWallets distinct wallets acted.
// Repeat trades by the same wallet count once, first trade wins.
func (d *Detector) Check(ctx context.Context, side types.Side, chain types.Chain, token string) ([]Event, bool) {
	return d.CheckMin(ctx, side, chain, token, d.minWallets)
}

// CheckMin is Check with an explicit wallet threshold, used for the
// whale-exit rule whose count is configured separately.
func (d *Detector) CheckMin(ctx context.Context, side types.Side, chain types.Chain, token string, minWallets int) ([]Event, bool) {
	key := d.key(side, chain, token)
	cutoff := d.now().Add(-d.window).Unix()

	events := d.fetch(ctx, key, cutoff)
	unique := dedupeByWallet(events)
	if len(unique) < minWallets {
		return nil, false
	}

	d.logger.Info("confluence detected",
		"side", side, "chain", chain, "token", token, "wallets", len(unique))
	return unique, true
}

// Stats returns the window totals for one (side, token), after eviction.
func (d *Detector) Stats(ctx context.Context, side types.Side, chain types.Chain, token string) WindowStats {
	key := d.key(side, chain, token)
	cutoff := d.now().Add(-d.window).Unix()

	events := d.fetch(ctx, key, cutoff)
	return WindowStats{
		TotalBuys:     len(events),
		UniqueWallets: len(dedupeByWallet(events)),
		WindowMinutes: int(d.window / time.Minute),
	}
}

// Clear drops the window for one (side, token), typically after an alert
// fired.
func (d *Detector) Clear(ctx context.Context, side types.Side, chain types.Chain, token string) {
	key := d.key(side, chain, token)

	d.memMu.Lock()
	delete(d.mem, key)
	d.memMu.Unlock()

	if d.client != nil && d.redisOK.Load() {
		if err := d.client.Del(ctx, key).Err(); err != nil {
			d.logger.Warn("redis clear failed", "key", key, "error", err)
			d.redisOK.Store(false)
		}
	}
}

// fetch returns the live events for key, preferring Redis and falling back
// to the memory mirror. Expired entries are removed from both.
func (d *Detector) fetch(ctx context.Context, key string, cutoff int64) []Event {
	d.evictMem(key, cutoff)

	if d.client == nil || !d.redisOK.Load() {
		return d.memEvents(key)
	}

	if err := d.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff-1)).Err(); err != nil {
		d.logger.Warn("redis evict failed, memory window only", "error", err)
		d.redisOK.Store(false)
		return d.memEvents(key)
	}

	members, err := d.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		d.logger.Warn("redis read failed, memory window only", "error", err)
		d.redisOK.Store(false)
		return d.memEvents(key)
	}

	events := make([]Event, 0, len(members))
	for _, m := range members {
		var ev Event
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			d.logger.Warn("dropping malformed confluence entry", "key", key, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (d *Detector) recordMem(key string, ev Event) {
	d.memMu.Lock()
	defer d.memMu.Unlock()

	for _, have := range d.mem[key] {
		if have.Wallet == ev.Wallet && have.TS == ev.TS && have.TxHash == ev.TxHash {
			return
		}
	}
	d.mem[key] = append(d.mem[key], ev)
}

func (d *Detector) evictMem(key string, cutoff int64) {
	d.memMu.Lock()
	defer d.memMu.Unlock()

	events := d.mem[key]
	kept := events[:0]
	for _, ev := range events {
		if ev.TS >= cutoff {
			kept = append(kept, ev)
		}
	}
	if len(kept) == 0 {
		delete(d.mem, key)
		return
	}
	d.mem[key] = kept
}

func (d *Detector) memEvents(key string) []Event {
	d.memMu.Lock()
	defer d.memMu.Unlock()
	return append([]Event(nil), d.mem[key]...)
}

func dedupeByWallet(events []Event) []Event {
	sorted := append([]Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TS < sorted[j].TS })

	seen := make(map[string]struct{}, len(sorted))
	var unique []Event
	for _, ev := range sorted {
		if _, ok := seen[ev.Wallet]; ok {
			continue
		}
		seen[ev.Wallet] = struct{}{}
		unique = append(unique, ev)
	}
	return unique
}
