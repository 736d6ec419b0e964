// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the scout — chains, trade sides,
// raw transfers, normalized trades, trending entries, and alert payloads. It
// has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import (
	"strings"
	"time"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of a trade: buy or sell.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Chain identifies a supported blockchain.
type Chain string

const (
	Ethereum Chain = "ethereum"
	Base     Chain = "base"
	Arbitrum Chain = "arbitrum"
	Solana   Chain = "solana"
)

// IsEVM reports whether the chain speaks EVM JSON-RPC.
func (c Chain) IsEVM() bool {
	return c != Solana
}

// Valid reports whether c is one of the supported chains.
func (c Chain) Valid() bool {
	switch c {
	case Ethereum, Base, Arbitrum, Solana:
		return true
	}
	return false
}

// ParseChains parses a comma-separated chain list, e.g. the `chains` config
// value "ethereum,base,arbitrum,solana".
func ParseChains(s string) []Chain {
	var out []Chain
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, Chain(part))
		}
	}
	return out
}

// ExplorerTxURL returns the block-explorer link for a transaction.
func (c Chain) ExplorerTxURL(txHash string) string {
	switch c {
	case Base:
		return "https://basescan.org/tx/" + txHash
	case Arbitrum:
		return "https://arbiscan.io/tx/" + txHash
	case Solana:
		return "https://solscan.io/tx/" + txHash
	default:
		return "https://etherscan.io/tx/" + txHash
	}
}

// ————————————————————————————————————————————————————————————————————————
// Adapter outputs
// ————————————————————————————————————————————————————————————————————————

// Transfer is a raw on-chain token movement as reported by a chain indexer.
// Direction (buy vs sell) is not known at this level; the pool heuristic in
// the chain adapter classifies it.
type Transfer struct {
	TxHash    string
	Timestamp time.Time
	From      string
	To        string
	Token     string
	RawAmount string // hex or integer string in base units
	Decimals  int    // 0 when unknown; adapters default to 18 for EVM
}

// Trade is a normalized DEX trade attributed to a wallet. TxHash is the
// idempotency key throughout the system: storing the same hash twice is a
// no-op.
type Trade struct {
	TxHash    string    `json:"tx_hash"`
	Timestamp time.Time `json:"ts"`
	Chain     Chain     `json:"chain_id"`
	Wallet    string    `json:"wallet"`
	Token     string    `json:"token"`
	Side      Side      `json:"side"`
	QtyToken  float64   `json:"qty_token"`
	PriceUSD  float64   `json:"price_usd"`
	ValueUSD  float64   `json:"usd_value"`
	FeeUSD    float64   `json:"fee_usd,omitempty"`
	Venue     string    `json:"venue,omitempty"`
}

// SeedEntry is one trending-token observation from a market-data source.
type SeedEntry struct {
	Token        string
	Chain        Chain
	Symbol       string
	Rank         int
	PriceUSD     float64
	LiquidityUSD float64
	Volume24hUSD float64
	Change24hPct float64
	IsHoneypot   *bool   // nil when the source does not report it
	BuyTaxPct    float64 // 0 when unknown
	SellTaxPct   float64
}

// TokenQuote is a price router result. Stale means every source failed and
// the zero price must not be acted on.
type TokenQuote struct {
	PriceUSD  float64
	Source    string
	Stale     bool
	FetchedAt time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Alerts
// ————————————————————————————————————————————————————————————————————————

// AlertType distinguishes single-wallet signals from confluence signals.
type AlertType string

const (
	AlertSingle     AlertType = "single"
	AlertConfluence AlertType = "confluence"
)

// AlertPayload captures enough of the triggering conditions to reconstruct a
// signal after the fact. It is persisted verbatim on the alert row and handed
// to the Alerter sink.
type AlertPayload struct {
	Type        AlertType `json:"type"`
	Timestamp   time.Time `json:"ts"`
	Chain       Chain     `json:"chain_id"`
	Token       string    `json:"token"`
	TokenSymbol string    `json:"token_symbol,omitempty"`
	Side        Side      `json:"side"`
	Wallets     []string  `json:"wallets"`
	PriceUSD    float64   `json:"price_usd"`
	ValueUSD    float64   `json:"usd_value"`
	TxHash      string    `json:"tx_hash"`
	ExplorerURL string    `json:"explorer_url"`
	Note        string    `json:"note,omitempty"`
}

// ————————————————————————————————————————————————————————————————————————
// Exclusion set
// ————————————————————————————————————————————————————————————————————————

// excluded holds stable-coins and wrapped-native tokens per chain. Trades in
// these tokens are recorded but never feed confluence or the paper trader.
var excluded = map[Chain]map[string]bool{
	Ethereum: {
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": true, // WETH
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": true, // USDC
		"0xdac17f958d2ee523a2206206994597c13d831ec7": true, // USDT
		"0x6b175474e89094c44da98b954eedeac495271d0f": true, // DAI
	},
	Base: {
		"0x4200000000000000000000000000000000000006": true, // WETH
		"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": true, // USDC
	},
	Arbitrum: {
		"0x82af49447d8a07e3bd95bd0d56f35241523fbab1": true, // WETH
		"0xaf88d065e77c8cc2239327c5edb3a432268e5831": true, // USDC
		"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9": true, // USDT
	},
	Solana: {
		"So11111111111111111111111111111111111111112":  true, // wSOL
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
	},
}

// IsExcluded reports whether the token is a stable-coin or wrapped-native
// token on the given chain.
func IsExcluded(chain Chain, token string) bool {
	set, ok := excluded[chain]
	if !ok {
		return false
	}
	if chain.IsEVM() {
		token = strings.ToLower(token)
	}
	return set[token]
}
