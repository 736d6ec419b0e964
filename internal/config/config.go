// Package config defines all configuration for the wallet scout.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SCOUT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"alpha-scout/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Chains     string           `mapstructure:"chains"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Watchlist  WatchlistConfig  `mapstructure:"watchlist"`
	Confluence ConfluenceConfig `mapstructure:"confluence"`
	Paper      PaperConfig      `mapstructure:"paper"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// ChainList parses the comma-separated chains value.
func (c *Config) ChainList() []types.Chain {
	return types.ParseChains(c.Chains)
}

// DatabaseConfig sets where the sqlite entity store lives.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig points at the Redis used for confluence windows and monitor
// cursors. When Redis is unreachable the detectors fall back to in-process
// state, so Addr may be left empty in development.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SourcesConfig holds external API endpoints and keys. All keys are
// overridable via SCOUT_SOURCES_* env vars; free-tier sources (DexScreener,
// GeckoTerminal, CoinGecko) need no key.
type SourcesConfig struct {
	AlchemyAPIKey   string        `mapstructure:"alchemy_api_key"`
	HeliusAPIKey    string        `mapstructure:"helius_api_key"`
	BirdeyeAPIKey   string        `mapstructure:"birdeye_api_key"`
	CoinGeckoAPIKey string        `mapstructure:"coingecko_api_key"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	// RequestsPerSec is the per-host politeness ceiling applied on top of
	// each adapter's own limits.
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`

	// Price router tuning.
	PriceCacheTTL     time.Duration `mapstructure:"price_cache_ttl"`
	PriceFailureLimit int           `mapstructure:"price_failure_limit"`
	PriceFailureReset time.Duration `mapstructure:"price_failure_reset"`
}

// JobsConfig sets the cadence of every scheduled job. The scheduler derives
// each job's timeout as 2x its cadence.
type JobsConfig struct {
	RunnerSeedMinutes         int    `mapstructure:"runner_seed_minutes"`
	WalletDiscoveryMinutes    int    `mapstructure:"wallet_discovery_minutes"`
	WhaleDiscoveryMinutes     int    `mapstructure:"whale_discovery_minutes"`
	WalletMonitoringMinutes   int    `mapstructure:"wallet_monitoring_minutes"`
	StatsRollupMinutes        int    `mapstructure:"stats_rollup_minutes"`
	PositionManagementMinutes int    `mapstructure:"position_management_minutes"`
	WatchlistMaintenanceCron  string `mapstructure:"watchlist_maintenance_cron"`
}

// DiscoveryConfig tunes seed and wallet discovery.
type DiscoveryConfig struct {
	SeedHorizonHours  int     `mapstructure:"seed_horizon_hours"`
	SeedTokenLimit    int     `mapstructure:"seed_token_limit"`
	BuyerFetchLimit   int     `mapstructure:"buyer_fetch_limit"`
	WhaleMinTradeUSD  float64 `mapstructure:"whale_min_trade_usd"`
	MinUniqueBuyers   int     `mapstructure:"min_unique_buyers_24h"`
	MaxTaxPct         float64 `mapstructure:"max_tax_pct"`
	PoolMinOccurrence int     `mapstructure:"pool_min_occurrence"`
}

// WatchlistConfig holds the nightly maintenance thresholds and ranking size.
type WatchlistConfig struct {
	TopK                 int     `mapstructure:"top_k"`
	AddMinTrades30d      int     `mapstructure:"add_min_trades_30d"`
	AddMinRealizedUSD    float64 `mapstructure:"add_min_realized_pnl_30d_usd"`
	AddMinBestMultiple   float64 `mapstructure:"add_min_best_trade_multiple"`
	RemoveRealizedBelow  float64 `mapstructure:"remove_if_realized_pnl_30d_lt"`
	RemoveDrawdownAbove  float64 `mapstructure:"remove_if_max_drawdown_pct_gt"`
	RemoveTradesBelow    int     `mapstructure:"remove_if_trades_30d_lt"`
	PoolMinUnrealizedUSD float64 `mapstructure:"pool_min_unrealized_pnl_usd"`
	PoolMinTrades        int     `mapstructure:"pool_min_trades"`
	AdaptiveWeights      bool    `mapstructure:"adaptive_weights"`
	AdaptiveLookbackDays int     `mapstructure:"adaptive_lookback_days"`
}

// ConfluenceConfig tunes the confluence detector.
type ConfluenceConfig struct {
	WindowMinutes     int `mapstructure:"window_minutes"`
	MinWallets        int `mapstructure:"min_wallets"`
	ExpiryGraceSecond int `mapstructure:"expiry_grace_seconds"`
}

// Window returns the confluence window as a duration.
func (c ConfluenceConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// PaperConfig tunes the paper-trading state machine. Sizing tiers are
// step-wise on the number of distinct wallets behind the signal.
type PaperConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	StartingBalance  float64 `mapstructure:"starting_balance"`
	MaxPositions     int     `mapstructure:"max_positions"`
	MinCashUSD       float64 `mapstructure:"min_cash_usd"`
	MaxHoldHours     int     `mapstructure:"max_hold_hours"`
	TrailActivatePct float64 `mapstructure:"trail_activate_pct"`
	TrailDropPts     float64 `mapstructure:"trail_drop_pts"`
	WhaleExitCount   int     `mapstructure:"whale_exit_count"`
	LogPath          string  `mapstructure:"log_path"`

	// Meme filter band applied at entry.
	MemePriceMin     float64 `mapstructure:"meme_price_min"`
	MemePriceMax     float64 `mapstructure:"meme_price_max"`
	MemeMinVolumeUSD float64 `mapstructure:"meme_min_volume_usd"`
	MemeMinLiquidity float64 `mapstructure:"meme_min_liquidity_usd"`
}

// TelegramConfig holds the alert sink credentials. Empty token disables the
// sink (alerts are still persisted).
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: SCOUT_SOURCES_ALCHEMY_API_KEY,
// SCOUT_SOURCES_HELIUS_API_KEY, SCOUT_SOURCES_BIRDEYE_API_KEY,
// SCOUT_TELEGRAM_BOT_TOKEN, SCOUT_REDIS_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("SCOUT_SOURCES_ALCHEMY_API_KEY"); key != "" {
		cfg.Sources.AlchemyAPIKey = key
	}
	if key := os.Getenv("SCOUT_SOURCES_HELIUS_API_KEY"); key != "" {
		cfg.Sources.HeliusAPIKey = key
	}
	if key := os.Getenv("SCOUT_SOURCES_BIRDEYE_API_KEY"); key != "" {
		cfg.Sources.BirdeyeAPIKey = key
	}
	if key := os.Getenv("SCOUT_SOURCES_COINGECKO_API_KEY"); key != "" {
		cfg.Sources.CoinGeckoAPIKey = key
	}
	if tok := os.Getenv("SCOUT_TELEGRAM_BOT_TOKEN"); tok != "" {
		cfg.Telegram.BotToken = tok
	}
	if pass := os.Getenv("SCOUT_REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chains", "ethereum,base,arbitrum,solana")
	v.SetDefault("database.path", "data/scout.db")
	v.SetDefault("sources.request_timeout", "10s")
	v.SetDefault("sources.retry_count", 3)
	v.SetDefault("sources.requests_per_sec", 4.0)
	v.SetDefault("sources.price_cache_ttl", "60s")
	v.SetDefault("sources.price_failure_limit", 5)
	v.SetDefault("sources.price_failure_reset", "1h")
	v.SetDefault("jobs.runner_seed_minutes", 5)
	v.SetDefault("jobs.wallet_discovery_minutes", 10)
	v.SetDefault("jobs.whale_discovery_minutes", 5)
	v.SetDefault("jobs.wallet_monitoring_minutes", 2)
	v.SetDefault("jobs.stats_rollup_minutes", 15)
	v.SetDefault("jobs.position_management_minutes", 5)
	v.SetDefault("jobs.watchlist_maintenance_cron", "0 2 * * *")
	v.SetDefault("discovery.seed_horizon_hours", 24)
	v.SetDefault("discovery.seed_token_limit", 50)
	v.SetDefault("discovery.buyer_fetch_limit", 100)
	v.SetDefault("discovery.whale_min_trade_usd", 10000)
	v.SetDefault("discovery.min_unique_buyers_24h", 30)
	v.SetDefault("discovery.max_tax_pct", 10.0)
	v.SetDefault("discovery.pool_min_occurrence", 3)
	v.SetDefault("watchlist.top_k", 30)
	v.SetDefault("watchlist.add_min_trades_30d", 5)
	v.SetDefault("watchlist.add_min_realized_pnl_30d_usd", 50000)
	v.SetDefault("watchlist.add_min_best_trade_multiple", 3.0)
	v.SetDefault("watchlist.remove_if_realized_pnl_30d_lt", 0.0)
	v.SetDefault("watchlist.remove_if_max_drawdown_pct_gt", 50.0)
	v.SetDefault("watchlist.remove_if_trades_30d_lt", 2)
	v.SetDefault("watchlist.pool_min_unrealized_pnl_usd", 500.0)
	v.SetDefault("watchlist.pool_min_trades", 2)
	v.SetDefault("watchlist.adaptive_weights", true)
	v.SetDefault("watchlist.adaptive_lookback_days", 7)
	v.SetDefault("confluence.window_minutes", 30)
	v.SetDefault("confluence.min_wallets", 2)
	v.SetDefault("confluence.expiry_grace_seconds", 300)
	v.SetDefault("paper.enabled", true)
	v.SetDefault("paper.starting_balance", 1000)
	v.SetDefault("paper.max_positions", 3)
	v.SetDefault("paper.min_cash_usd", 10)
	v.SetDefault("paper.max_hold_hours", 24)
	v.SetDefault("paper.trail_activate_pct", 15)
	v.SetDefault("paper.trail_drop_pts", 8)
	v.SetDefault("paper.whale_exit_count", 2)
	v.SetDefault("paper.log_path", "data/paper_trades.json")
	v.SetDefault("paper.meme_price_min", 0.000001)
	v.SetDefault("paper.meme_price_max", 0.01)
	v.SetDefault("paper.meme_min_volume_usd", 50000)
	v.SetDefault("paper.meme_min_liquidity_usd", 10000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.port", 8080)
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.ChainList()) == 0 {
		return fmt.Errorf("chains must name at least one chain (e.g. \"ethereum,solana\")")
	}
	for _, ch := range c.ChainList() {
		switch ch {
		case types.Ethereum, types.Base, types.Arbitrum, types.Solana:
		default:
			return fmt.Errorf("chains: unsupported chain %q", ch)
		}
		if ch.IsEVM() && c.Sources.AlchemyAPIKey == "" {
			return fmt.Errorf("sources.alchemy_api_key is required for EVM chains (set SCOUT_SOURCES_ALCHEMY_API_KEY)")
		}
		if ch == types.Solana && c.Sources.HeliusAPIKey == "" {
			return fmt.Errorf("sources.helius_api_key is required for solana (set SCOUT_SOURCES_HELIUS_API_KEY)")
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Jobs.RunnerSeedMinutes <= 0 || c.Jobs.WalletMonitoringMinutes <= 0 {
		return fmt.Errorf("jobs cadences must be > 0 minutes")
	}
	if c.Confluence.WindowMinutes <= 0 {
		return fmt.Errorf("confluence.window_minutes must be > 0")
	}
	if c.Confluence.MinWallets < 2 {
		return fmt.Errorf("confluence.min_wallets must be >= 2")
	}
	if c.Paper.StartingBalance <= 0 {
		return fmt.Errorf("paper.starting_balance must be > 0")
	}
	if c.Paper.MaxPositions <= 0 {
		return fmt.Errorf("paper.max_positions must be > 0")
	}
	if c.Watchlist.TopK <= 0 {
		return fmt.Errorf("watchlist.top_k must be > 0")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be a valid port")
	}
	return nil
}
