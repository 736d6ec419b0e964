package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// SolanaAdapter reads enhanced transaction history from Helius. A swap is
// recognized when any instruction targets a known DEX program; direction
// comes from the sign of the wallet's token balance change.
type SolanaAdapter struct {
	http   *resty.Client
	apiKey string
	pricer Pricer
	rl     *TokenBucket
	logger *slog.Logger
}

func NewSolanaAdapter(cfg config.SourcesConfig, pricer Pricer, logger *slog.Logger) *SolanaAdapter {
	return &SolanaAdapter{
		http:   newHTTPClient("https://api.helius.xyz/v0", cfg),
		apiKey: cfg.HeliusAPIKey,
		pricer: pricer,
		rl:     newPolitenessBucket(cfg.RequestsPerSec),
		logger: logger.With("component", "solana_adapter"),
	}
}

func (a *SolanaAdapter) Chain() types.Chain { return types.Solana }

type heliusTx struct {
	Signature    string `json:"signature"`
	Timestamp    int64  `json:"timestamp"`
	FeePayer     string `json:"feePayer"`
	Instructions []struct {
		ProgramID string `json:"programId"`
	} `json:"instructions"`
	TokenBalanceChanges []heliusBalanceChange `json:"tokenBalanceChanges"`
}

type heliusBalanceChange struct {
	Mint           string `json:"mint"`
	UserAccount    string `json:"userAccount"`
	RawTokenAmount struct {
		TokenAmount string `json:"tokenAmount"`
		Decimals    int32  `json:"decimals"`
	} `json:"rawTokenAmount"`
}

func (a *SolanaAdapter) transactions(ctx context.Context, address string, limit int) ([]heliusTx, error) {
	if err := a.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var result []heliusTx
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api-key": a.apiKey,
			"limit":   fmt.Sprintf("%d", min(limit, 100)),
		}).
		SetResult(&result).
		Get("/addresses/" + address + "/transactions")
	if err != nil {
		return nil, fmt.Errorf("helius transactions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("helius transactions: status %d", resp.StatusCode())
	}
	return result, nil
}

// swapVenue returns the DEX name when any instruction targets a known swap
// program, or "" for a plain transfer.
func swapVenue(tx heliusTx) string {
	for _, inst := range tx.Instructions {
		if name := dexName(inst.ProgramID); name != "" {
			return name
		}
	}
	return ""
}

// changeQty parses a token balance change into a signed token quantity.
func changeQty(c heliusBalanceChange) float64 {
	amount, err := decimal.NewFromString(c.RawTokenAmount.TokenAmount)
	if err != nil {
		return 0
	}
	qty, _ := amount.Shift(-c.RawTokenAmount.Decimals).Float64()
	return qty
}

// RecentTokenBuyers returns recent swap buys of the mint. The fee payer of
// a DEX transaction that increased a balance of the mint is the buyer.
func (a *SolanaAdapter) RecentTokenBuyers(ctx context.Context, token string, limit int) ([]types.Trade, error) {
	txs, err := a.transactions(ctx, token, limit)
	if err != nil {
		return nil, err
	}

	quote := a.pricer.TokenPrice(ctx, types.Solana, token)

	var out []types.Trade
	for _, tx := range txs {
		venue := swapVenue(tx)
		if venue == "" || tx.FeePayer == "" {
			continue
		}
		for _, change := range tx.TokenBalanceChanges {
			if change.Mint != token {
				continue
			}
			qty := changeQty(change)
			if qty <= 0 {
				continue
			}
			out = append(out, a.buildTrade(tx, tx.FeePayer, token, types.Buy, qty, quote, venue))
			break
		}
	}
	return out, nil
}

// RecentWalletTrades returns the wallet's recent swaps; buys and sells are
// told apart by the sign of the wallet's own balance change.
func (a *SolanaAdapter) RecentWalletTrades(ctx context.Context, wallet string, limit int) ([]types.Trade, error) {
	txs, err := a.transactions(ctx, wallet, limit)
	if err != nil {
		return nil, err
	}

	var out []types.Trade
	for _, tx := range txs {
		venue := swapVenue(tx)
		if venue == "" {
			continue
		}
		for _, change := range tx.TokenBalanceChanges {
			if change.UserAccount != wallet || change.Mint == "" {
				continue
			}
			qty := changeQty(change)
			if qty == 0 {
				continue
			}
			side := types.Buy
			if qty < 0 {
				side = types.Sell
				qty = -qty
			}
			quote := a.pricer.TokenPrice(ctx, types.Solana, change.Mint)
			out = append(out, a.buildTrade(tx, wallet, change.Mint, side, qty, quote, venue))
			break
		}
	}
	return out, nil
}

func (a *SolanaAdapter) buildTrade(tx heliusTx, wallet, token string, side types.Side, qty float64, quote types.TokenQuote, venue string) types.Trade {
	value := 0.0
	if !quote.Stale && quote.PriceUSD > 0 {
		value = qty * quote.PriceUSD
	}
	ts := time.Now().UTC()
	if tx.Timestamp > 0 {
		ts = time.Unix(tx.Timestamp, 0).UTC()
	}
	return types.Trade{
		TxHash:    tx.Signature,
		Timestamp: ts,
		Chain:     types.Solana,
		Wallet:    wallet,
		Token:     token,
		Side:      side,
		QtyToken:  qty,
		PriceUSD:  quote.PriceUSD,
		ValueUSD:  value,
		Venue:     venue,
	}
}
