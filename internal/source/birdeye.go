package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// Birdeye fetches Solana trending tokens and multi-chain prices. Requires
// an API key (X-API-KEY header); without one the adapter still constructs
// but every call returns an auth error that callers treat as a source
// failure.
type Birdeye struct {
	http   *resty.Client
	rl     *TokenBucket
	logger *slog.Logger
}

func NewBirdeye(cfg config.SourcesConfig, logger *slog.Logger) *Birdeye {
	client := newHTTPClient("https://public-api.birdeye.so", cfg)
	if cfg.BirdeyeAPIKey != "" {
		client.SetHeader("X-API-KEY", cfg.BirdeyeAPIKey)
	}
	return &Birdeye{
		http:   client,
		rl:     newPolitenessBucket(cfg.RequestsPerSec),
		logger: logger.With("component", "birdeye"),
	}
}

func (b *Birdeye) Name() string { return "birdeye" }

// birdeyeChain maps chain ids to Birdeye's x-chain header values.
func birdeyeChain(chain types.Chain) string {
	if chain == types.Ethereum {
		return "ethereum"
	}
	return string(chain)
}

type beTrendingResponse struct {
	Data struct {
		Tokens []struct {
			Address          string  `json:"address"`
			Symbol           string  `json:"symbol"`
			Rank             int     `json:"rank"`
			Price            float64 `json:"price"`
			Liquidity        float64 `json:"liquidity"`
			Volume24hUSD     float64 `json:"v24hUSD"`
			Change24hPercent float64 `json:"v24hChangePercent"`
		} `json:"tokens"`
	} `json:"data"`
}

// Trending returns Solana's trending tokens ranked by Birdeye.
func (b *Birdeye) Trending(ctx context.Context) ([]types.SeedEntry, error) {
	if err := b.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var result beTrendingResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("x-chain", "solana").
		SetQueryParams(map[string]string{"sort_by": "rank", "sort_type": "asc"}).
		SetResult(&result).
		Get("/defi/trending_tokens")
	if err != nil {
		return nil, fmt.Errorf("birdeye trending: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("birdeye trending: status %d", resp.StatusCode())
	}

	var out []types.SeedEntry
	for _, t := range result.Data.Tokens {
		if t.Address == "" {
			continue
		}
		rank := t.Rank
		if rank == 0 {
			rank = len(out) + 1
		}
		out = append(out, types.SeedEntry{
			Token:        t.Address,
			Chain:        types.Solana,
			Symbol:       t.Symbol,
			Rank:         rank,
			PriceUSD:     t.Price,
			LiquidityUSD: t.Liquidity,
			Volume24hUSD: t.Volume24hUSD,
			Change24hPct: t.Change24hPercent,
		})
		if len(out) >= 50 {
			break
		}
	}
	b.logger.Debug("fetched trending", "tokens", len(out))
	return out, nil
}

type beOverviewResponse struct {
	Data struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

// TokenPriceUSD returns the spot price from the token overview endpoint.
func (b *Birdeye) TokenPriceUSD(ctx context.Context, chain types.Chain, token string) (float64, error) {
	if err := b.rl.Wait(ctx); err != nil {
		return 0, err
	}

	var result beOverviewResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("x-chain", birdeyeChain(chain)).
		SetQueryParam("address", token).
		SetResult(&result).
		Get("/defi/token_overview")
	if err != nil {
		return 0, fmt.Errorf("birdeye price: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("birdeye price: status %d", resp.StatusCode())
	}
	return result.Data.Price, nil
}
