package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// DexScreener fetches trending pairs and token prices from the public
// DEX Screener API. No API key required.
type DexScreener struct {
	http   *resty.Client
	rl     *TokenBucket
	logger *slog.Logger
}

func NewDexScreener(cfg config.SourcesConfig, logger *slog.Logger) *DexScreener {
	return &DexScreener{
		http:   newHTTPClient("https://api.dexscreener.com/latest", cfg),
		rl:     newPolitenessBucket(cfg.RequestsPerSec),
		logger: logger.With("component", "dexscreener"),
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

type dsPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	DexID       string `json:"dexId"`
	PriceUSD    string `json:"priceUsd"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
}

type dsPairsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

// Trending returns the top pairs for a chain, ranked by 24h volume.
func (d *DexScreener) Trending(ctx context.Context, chain types.Chain) ([]types.SeedEntry, error) {
	if err := d.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var result dsPairsResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("q", "chainId:"+string(chain)).
		SetResult(&result).
		Get("/dex/search")
	if err != nil {
		return nil, fmt.Errorf("dexscreener trending: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("dexscreener trending: status %d", resp.StatusCode())
	}

	var out []types.SeedEntry
	for _, p := range result.Pairs {
		if p.ChainID != string(chain) || p.BaseToken.Address == "" {
			continue
		}
		price, _ := strconv.ParseFloat(p.PriceUSD, 64)
		out = append(out, types.SeedEntry{
			Token:        p.BaseToken.Address,
			Chain:        chain,
			Symbol:       p.BaseToken.Symbol,
			Rank:         len(out) + 1,
			PriceUSD:     price,
			LiquidityUSD: p.Liquidity.USD,
			Volume24hUSD: p.Volume.H24,
			Change24hPct: p.PriceChange.H24,
		})
		if len(out) >= 50 {
			break
		}
	}
	d.logger.Debug("fetched trending", "chain", chain, "tokens", len(out))
	return out, nil
}

// TokenInfo returns the token's best pair (highest liquidity) across all
// chains it trades on.
func (d *DexScreener) TokenInfo(ctx context.Context, token string) (*types.SeedEntry, error) {
	if err := d.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var result dsPairsResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/dex/tokens/" + token)
	if err != nil {
		return nil, fmt.Errorf("dexscreener token info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("dexscreener token info: status %d", resp.StatusCode())
	}
	if len(result.Pairs) == 0 {
		return nil, nil
	}

	best := result.Pairs[0]
	for _, p := range result.Pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	price, _ := strconv.ParseFloat(best.PriceUSD, 64)
	return &types.SeedEntry{
		Token:        token,
		Chain:        types.Chain(best.ChainID),
		Symbol:       best.BaseToken.Symbol,
		PriceUSD:     price,
		LiquidityUSD: best.Liquidity.USD,
		Volume24hUSD: best.Volume.H24,
		Change24hPct: best.PriceChange.H24,
	}, nil
}

// TokenPriceUSD returns the spot price, or 0 when the token is unknown.
func (d *DexScreener) TokenPriceUSD(ctx context.Context, chain types.Chain, token string) (float64, error) {
	info, err := d.TokenInfo(ctx, token)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, nil
	}
	return info.PriceUSD, nil
}
