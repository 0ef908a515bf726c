// Package config defines the top-level configuration for the smartflow
// collector and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SMARTFLOW_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Nansen    NansenConfig    `toml:"nansen"`
	ZeroEx    ZeroExConfig    `toml:"zeroex"`
	Gecko     GeckoConfig     `toml:"gecko"`
	Chain     ChainConfig     `toml:"chain"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Collector CollectorConfig `toml:"collector"`
	Trading   TradingConfig   `toml:"trading"`
	Simulator SimulatorConfig `toml:"simulator"`
	Report    ReportConfig    `toml:"report"`
	Notify    NotifyConfig    `toml:"notify"`
	Bot       BotConfig       `toml:"bot"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials for live swap execution.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// NansenConfig holds the analytics API endpoint and credentials.
type NansenConfig struct {
	BaseURL     string `toml:"base_url"`
	ApiKey      string `toml:"api_key"`
	MaxRetries  int    `toml:"max_retries"`
	UseFixtures bool   `toml:"use_fixtures"`
}

// ZeroExConfig holds the swap-quote API endpoint and credentials.
type ZeroExConfig struct {
	BaseURL string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
	Version string `toml:"version"`
}

// GeckoConfig holds the spot-price API endpoint.
type GeckoConfig struct {
	BaseURL string `toml:"base_url"`
}

// ChainConfig holds the on-chain RPC endpoint used for live execution.
type ChainConfig struct {
	RPCURL  string `toml:"rpc_url"`
	ChainID int64  `toml:"chain_id"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	PriceTTLMinutes int    `toml:"price_ttl_minutes"`
}

// S3Config holds S3-compatible object storage parameters for report archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CollectorConfig holds pipeline thresholds, scoring weights, and upstream
// query filters.
type CollectorConfig struct {
	Chains             []string `toml:"chains"`
	MinUSDNotional     float64  `toml:"min_usd_notional"`
	DynamicThreshold   bool     `toml:"dynamic_threshold"`
	Quantile           float64  `toml:"quantile"`
	LookbackMinutes    int      `toml:"lookback_minutes"`
	MinSamples         int      `toml:"min_samples"`
	FallbackThreshold  float64  `toml:"fallback_threshold"`
	NetflowMinPositive float64  `toml:"netflow_min_positive"`
	VolumeZThreshold   float64  `toml:"volume_z_threshold"`
	LiquidityMinScore  float64  `toml:"liquidity_min_score"`

	WeightUSD        float64 `toml:"weight_usd"`
	WeightLabel      float64 `toml:"weight_label"`
	WeightAlpha      float64 `toml:"weight_alpha"`
	WeightVolZ       float64 `toml:"weight_volz"`
	WeightBias       float64 `toml:"weight_bias"`
	PenaltyExplosive float64 `toml:"penalty_explosive"`
	PenaltyLowLiq    float64 `toml:"penalty_low_liq"`

	DexIncludeLabels []string `toml:"dex_include_labels"`
	DexExcludeLabels []string `toml:"dex_exclude_labels"`
	TokenAgeMinDays  int      `toml:"token_age_min_days"`
	TokenAgeMaxDays  int      `toml:"token_age_max_days"`
	TradeValueMin    float64  `toml:"trade_value_min"`
	TradeValueMax    float64  `toml:"trade_value_max"`

	ScheduleInterval duration `toml:"schedule_interval"`
}

// TradingConfig holds swap-execution parameters.
type TradingConfig struct {
	SlippageBps    int      `toml:"slippage_bps"`
	WaitForReceipt bool     `toml:"wait_for_receipt"`
	ReceiptTimeout duration `toml:"receipt_timeout"`
}

// SimulatorConfig holds paper-trading parameters.
type SimulatorConfig struct {
	Enabled    bool     `toml:"enabled"`
	GainTarget float64  `toml:"gain_target"`
	Interval   duration `toml:"interval"`
}

// ReportConfig holds run-artifact output parameters.
type ReportConfig struct {
	Dir  string `toml:"dir"`
	TopN int    `toml:"top_n"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// BotConfig holds the Telegram control-bot parameters.
type BotConfig struct {
	Enabled       bool   `toml:"enabled"`
	AllowedChatID string `toml:"allowed_chat_id"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Nansen: NansenConfig{
			BaseURL:    "https://api.nansen.ai",
			MaxRetries: 3,
		},
		ZeroEx: ZeroExConfig{
			BaseURL: "https://api.0x.org",
			Version: "v2",
		},
		Gecko: GeckoConfig{
			BaseURL: "https://api.geckoterminal.com/api/v2",
		},
		Chain: ChainConfig{
			ChainID: 1,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "smartflow",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			DB:              0,
			PoolSize:        20,
			MaxRetries:      3,
			TLSEnabled:      false,
			PriceTTLMinutes: 10,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "smartflow-reports",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Collector: CollectorConfig{
			Chains:             []string{"ethereum", "solana", "base"},
			MinUSDNotional:     100_000,
			DynamicThreshold:   false,
			Quantile:           0.75,
			LookbackMinutes:    10_080,
			MinSamples:         30,
			FallbackThreshold:  10_000,
			NetflowMinPositive: 0.0,
			VolumeZThreshold:   1.645,
			LiquidityMinScore:  0.5,
			WeightUSD:          0.25,
			WeightLabel:        0.25,
			WeightAlpha:        0.25,
			WeightVolZ:         0.15,
			WeightBias:         0.10,
			PenaltyExplosive:   0.15,
			PenaltyLowLiq:      0.10,
			DexIncludeLabels:   []string{"Fund", "Smart Trader"},
			DexExcludeLabels:   []string{},
			TokenAgeMinDays:    1,
			TokenAgeMaxDays:    365,
			TradeValueMin:      10_000,
			TradeValueMax:      10_000_000,
			ScheduleInterval:   duration{1 * time.Hour},
		},
		Trading: TradingConfig{
			SlippageBps:    100,
			WaitForReceipt: true,
			ReceiptTimeout: duration{10 * time.Minute},
		},
		Simulator: SimulatorConfig{
			Enabled:    false,
			GainTarget: 0.3,
			Interval:   duration{15 * time.Minute},
		},
		Report: ReportConfig{
			Dir:  "reports",
			TopN: 10,
		},
		Notify: NotifyConfig{
			Events: []string{"run_completed", "run_failed", "signal", "trade_executed", "trade_failed"},
		},
		Mode:     "collect",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"collect":  true,
	"schedule": true,
	"simulate": true,
	"bot":      true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: collect, schedule, simulate, bot, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Nansen — the real client needs credentials; fixture mode does not.
	if !c.Nansen.UseFixtures {
		if c.Nansen.BaseURL == "" {
			errs = append(errs, "nansen: base_url must not be empty")
		}
		if c.Nansen.ApiKey == "" {
			errs = append(errs, "nansen: api_key is required unless use_fixtures is set")
		}
	}

	// Wallet — live execution needs a key source; both halves of the
	// encrypted-file option must be present together.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Collector
	if len(c.Collector.Chains) == 0 {
		errs = append(errs, "collector: chains must not be empty")
	}
	if c.Collector.Quantile <= 0 || c.Collector.Quantile >= 1 {
		errs = append(errs, fmt.Sprintf("collector: quantile must be in (0, 1), got %g", c.Collector.Quantile))
	}
	if c.Collector.MinSamples < 1 {
		errs = append(errs, "collector: min_samples must be >= 1")
	}
	if c.Collector.LookbackMinutes < 1 {
		errs = append(errs, "collector: lookback_minutes must be >= 1")
	}
	if c.Collector.FallbackThreshold < 0 {
		errs = append(errs, "collector: fallback_threshold must be >= 0")
	}
	if c.Collector.ScheduleInterval.Duration <= 0 {
		errs = append(errs, "collector: schedule_interval must be > 0")
	}

	// Trading
	if c.Trading.SlippageBps < 0 || c.Trading.SlippageBps > 10_000 {
		errs = append(errs, fmt.Sprintf("trading: slippage_bps must be 0-10000, got %d", c.Trading.SlippageBps))
	}
	if c.Trading.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "trading: receipt_timeout must be > 0")
	}

	// Simulator
	if c.Simulator.Enabled && c.Simulator.GainTarget <= 0 {
		errs = append(errs, "simulator: gain_target must be > 0 when enabled")
	}

	// Bot
	if c.Bot.Enabled && c.Notify.TelegramToken == "" {
		errs = append(errs, "bot: notify.telegram_token is required when bot is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
