package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"alpha-scout/pkg/types"
)

// Cursors are kept for 30 days; a wallet idle longer than that is simply
// re-scanned from the top of its history.
const cursorTTL = 30 * 24 * time.Hour

// cursorStore remembers the newest processed tx hash per wallet. Redis is
// preferred so restarts resume where they left off; a memory map covers
// outages.
type cursorStore struct {
	client  *redis.Client
	logger  *slog.Logger
	redisOK atomic.Bool

	mu  sync.Mutex
	mem map[string]string
}

func newCursorStore(client *redis.Client, logger *slog.Logger) *cursorStore {
	c := &cursorStore{
		client: client,
		logger: logger,
		mem:    make(map[string]string),
	}
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, cursors are memory only", "error", err)
		} else {
			c.redisOK.Store(true)
		}
	}
	return c
}

func cursorKey(chain types.Chain, wallet string) string {
	return fmt.Sprintf("cursor:%s:%s", chain, wallet)
}

// Get returns the last processed tx hash, empty when the wallet is new.
func (c *cursorStore) Get(ctx context.Context, chain types.Chain, wallet string) string {
	key := cursorKey(chain, wallet)

	if c.client != nil && c.redisOK.Load() {
		val, err := c.client.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			c.logger.Warn("redis cursor read failed", "error", err)
			c.redisOK.Store(false)
		default:
			return val
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem[key]
}

// Set records the newest processed tx hash.
func (c *cursorStore) Set(ctx context.Context, chain types.Chain, wallet, txHash string) {
	key := cursorKey(chain, wallet)

	c.mu.Lock()
	c.mem[key] = txHash
	c.mu.Unlock()

	if c.client != nil && c.redisOK.Load() {
		if err := c.client.Set(ctx, key, txHash, cursorTTL).Err(); err != nil {
			c.logger.Warn("redis cursor write failed", "error", err)
			c.redisOK.Store(false)
		}
	}
}
