package api

import (
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/paper"
	"alpha-scout/internal/scheduler"
	"alpha-scout/internal/watchlist"
)

// DashboardSnapshot is the complete dashboard state returned by /api/snapshot
// and pushed to fresh WebSocket clients.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Chains    []string  `json:"chains"`

	// Monitored wallet set
	WatchlistSize int                      `json:"watchlist_size"`
	TopWallets    []watchlist.RankedWallet `json:"top_wallets"`

	// Paper portfolio
	Paper         paper.Report     `json:"paper"`
	OpenPositions []paper.Position `json:"open_positions"`

	// Operational health
	Jobs          []scheduler.JobHealth `json:"jobs"`
	PriceFailures map[string]int        `json:"price_failures"`

	Config ConfigSummary `json:"config"`
}

// ConfigSummary is the subset of configuration the dashboard displays.
type ConfigSummary struct {
	Chains string `json:"chains"`

	// Confluence
	ConfluenceWindowMinutes int `json:"confluence_window_minutes"`
	ConfluenceMinWallets    int `json:"confluence_min_wallets"`

	// Discovery
	SeedHorizonHours int     `json:"seed_horizon_hours"`
	MinUniqueBuyers  int     `json:"min_unique_buyers_24h"`
	WhaleMinTradeUSD float64 `json:"whale_min_trade_usd"`

	// Watchlist
	WatchlistTopK   int  `json:"watchlist_top_k"`
	AdaptiveWeights bool `json:"adaptive_weights"`

	// Paper trading
	PaperEnabled         bool    `json:"paper_enabled"`
	PaperStartingBalance float64 `json:"paper_starting_balance"`
	PaperMaxPositions    int     `json:"paper_max_positions"`
	PaperMaxHoldHours    int     `json:"paper_max_hold_hours"`
}

// NewConfigSummary extracts the display subset from the full config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Chains:                  cfg.Chains,
		ConfluenceWindowMinutes: cfg.Confluence.WindowMinutes,
		ConfluenceMinWallets:    cfg.Confluence.MinWallets,
		SeedHorizonHours:        cfg.Discovery.SeedHorizonHours,
		MinUniqueBuyers:         cfg.Discovery.MinUniqueBuyers,
		WhaleMinTradeUSD:        cfg.Discovery.WhaleMinTradeUSD,
		WatchlistTopK:           cfg.Watchlist.TopK,
		AdaptiveWeights:         cfg.Watchlist.AdaptiveWeights,
		PaperEnabled:            cfg.Paper.Enabled,
		PaperStartingBalance:    cfg.Paper.StartingBalance,
		PaperMaxPositions:       cfg.Paper.MaxPositions,
		PaperMaxHoldHours:       cfg.Paper.MaxHoldHours,
	}
}

// DashboardEvent is the wrapper for everything pushed over the WebSocket.
// Types: "snapshot", "alert", "trade_closed".
type DashboardEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
