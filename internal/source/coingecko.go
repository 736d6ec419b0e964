package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// CoinGecko resolves prices for listed tokens. It only knows tokens that
// have made it onto CoinGecko, so it sits last in the price router order.
type CoinGecko struct {
	http   *resty.Client
	rl     *TokenBucket
	logger *slog.Logger
}

func NewCoinGecko(cfg config.SourcesConfig, logger *slog.Logger) *CoinGecko {
	client := newHTTPClient("https://api.coingecko.com/api/v3", cfg)
	if cfg.CoinGeckoAPIKey != "" {
		client.SetHeader("x-cg-demo-api-key", cfg.CoinGeckoAPIKey)
	}
	return &CoinGecko{
		http: client,
		// The free tier is strict: roughly one request every two seconds.
		rl:     NewTokenBucket(1, 0.5),
		logger: logger.With("component", "coingecko"),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// coingeckoPlatform maps chain ids to CoinGecko asset platform slugs.
func coingeckoPlatform(chain types.Chain) string {
	if chain == types.Arbitrum {
		return "arbitrum-one"
	}
	return string(chain)
}

// TokenPriceUSD returns the token's spot price, or 0 when CoinGecko does
// not list it.
func (c *CoinGecko) TokenPriceUSD(ctx context.Context, chain types.Chain, token string) (float64, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return 0, err
	}

	var result map[string]struct {
		USD float64 `json:"usd"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"contract_addresses": token,
			"vs_currencies":      "usd",
		}).
		SetResult(&result).
		Get("/simple/token_price/" + coingeckoPlatform(chain))
	if err != nil {
		return 0, fmt.Errorf("coingecko price: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("coingecko price: status %d", resp.StatusCode())
	}

	// Keys come back lowercased for EVM addresses.
	if entry, ok := result[strings.ToLower(token)]; ok {
		return entry.USD, nil
	}
	if entry, ok := result[token]; ok {
		return entry.USD, nil
	}
	return 0, nil
}
