// Package source implements the external data adapters:
//
//   - DexScreener, GeckoTerminal, Birdeye, CoinGecko — trending tokens and
//     spot prices over public REST APIs
//   - EVMAdapter — Alchemy-style JSON-RPC transfer scans for Ethereum, Base
//     and Arbitrum, with a pool-side swap heuristic
//   - SolanaAdapter — Helius-style enhanced transaction history
//   - PriceRouter — multi-source price lookup with failure budgets and a
//     short TTL cache
//
// Every adapter degrades to an empty result on upstream failure; callers
// treat missing data as "nothing new this cycle", never as fatal.
package source

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// ChainAdapter reads raw trading activity from a chain indexer.
type ChainAdapter interface {
	Chain() types.Chain

	// RecentTokenBuyers returns recent swap buys of the token, one trade
	// per buyer transfer, newest first.
	RecentTokenBuyers(ctx context.Context, token string, limit int) ([]types.Trade, error)

	// RecentWalletTrades returns the wallet's recent swaps, both sides,
	// newest first. Cursor trimming in the monitor depends on the order.
	RecentWalletTrades(ctx context.Context, wallet string, limit int) ([]types.Trade, error)
}

// Pricer resolves a token's current USD price. Implementations return a
// stale quote (price 0) rather than an error when no source can answer.
type Pricer interface {
	TokenPrice(ctx context.Context, chain types.Chain, token string) types.TokenQuote
}

// newHTTPClient builds a resty client with the retry policy shared by every
// adapter: retry on transport errors and 5xx, never on 4xx.
func newHTTPClient(baseURL string, cfg config.SourcesConfig) *resty.Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
}
