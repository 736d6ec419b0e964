package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// GeckoTerminal fetches trending pools from the public GeckoTerminal API.
type GeckoTerminal struct {
	http   *resty.Client
	rl     *TokenBucket
	logger *slog.Logger
}

func NewGeckoTerminal(cfg config.SourcesConfig, logger *slog.Logger) *GeckoTerminal {
	return &GeckoTerminal{
		http:   newHTTPClient("https://api.geckoterminal.com/api/v2", cfg),
		rl:     newPolitenessBucket(cfg.RequestsPerSec),
		logger: logger.With("component", "geckoterminal"),
	}
}

func (g *GeckoTerminal) Name() string { return "geckoterminal" }

// geckoNetwork maps chain ids to GeckoTerminal network slugs.
func geckoNetwork(chain types.Chain) string {
	if chain == types.Ethereum {
		return "eth"
	}
	return string(chain)
}

type gtPool struct {
	Attributes struct {
		Name              string `json:"name"`
		Address           string `json:"address"`
		BaseTokenPriceUSD string `json:"base_token_price_usd"`
		ReserveInUSD      string `json:"reserve_in_usd"`
		VolumeUSD         struct {
			H24 string `json:"h24"`
		} `json:"volume_usd"`
		PriceChangePercentage struct {
			H24 string `json:"h24"`
		} `json:"price_change_percentage"`
	} `json:"attributes"`
	Relationships struct {
		BaseToken struct {
			Data struct {
				ID string `json:"id"` // "<network>_<address>"
			} `json:"data"`
		} `json:"base_token"`
	} `json:"relationships"`
}

type gtTrendingResponse struct {
	Data []gtPool `json:"data"`
}

// Trending returns the chain's trending pools mapped to their base tokens.
func (g *GeckoTerminal) Trending(ctx context.Context, chain types.Chain) ([]types.SeedEntry, error) {
	if err := g.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var result gtTrendingResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/networks/%s/trending_pools", geckoNetwork(chain)))
	if err != nil {
		return nil, fmt.Errorf("geckoterminal trending: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("geckoterminal trending: status %d", resp.StatusCode())
	}

	var out []types.SeedEntry
	for _, pool := range result.Data {
		attrs := pool.Attributes

		// Base token id is "<network>_<address>".
		id := pool.Relationships.BaseToken.Data.ID
		_, address, found := strings.Cut(id, "_")
		if !found || attrs.BaseTokenPriceUSD == "" {
			continue
		}

		// Pool name is "BASE / QUOTE"; the base symbol is the first part.
		symbol := "UNKNOWN"
		if base, _, ok := strings.Cut(attrs.Name, "/"); ok {
			symbol = strings.TrimSpace(base)
		}

		price, _ := strconv.ParseFloat(attrs.BaseTokenPriceUSD, 64)
		liquidity, _ := strconv.ParseFloat(attrs.ReserveInUSD, 64)
		volume, _ := strconv.ParseFloat(attrs.VolumeUSD.H24, 64)
		change, _ := strconv.ParseFloat(attrs.PriceChangePercentage.H24, 64)

		out = append(out, types.SeedEntry{
			Token:        address,
			Chain:        chain,
			Symbol:       symbol,
			Rank:         len(out) + 1,
			PriceUSD:     price,
			LiquidityUSD: liquidity,
			Volume24hUSD: volume,
			Change24hPct: change,
		})
		if len(out) >= 50 {
			break
		}
	}
	g.logger.Debug("fetched trending", "chain", chain, "tokens", len(out))
	return out, nil
}
