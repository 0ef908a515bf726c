package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SMARTFLOW_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SMARTFLOW_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SMARTFLOW_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SMARTFLOW_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SMARTFLOW_WALLET_KEY_PASSWORD")

	// ── Nansen ──
	setStr(&cfg.Nansen.BaseURL, "SMARTFLOW_NANSEN_BASE_URL")
	setStr(&cfg.Nansen.ApiKey, "SMARTFLOW_NANSEN_API_KEY")
	setInt(&cfg.Nansen.MaxRetries, "SMARTFLOW_NANSEN_MAX_RETRIES")
	setBool(&cfg.Nansen.UseFixtures, "SMARTFLOW_NANSEN_USE_FIXTURES")

	// ── 0x ──
	setStr(&cfg.ZeroEx.BaseURL, "SMARTFLOW_ZEROEX_BASE_URL")
	setStr(&cfg.ZeroEx.ApiKey, "SMARTFLOW_ZEROEX_API_KEY")
	setStr(&cfg.ZeroEx.Version, "SMARTFLOW_ZEROEX_VERSION")

	// ── Gecko ──
	setStr(&cfg.Gecko.BaseURL, "SMARTFLOW_GECKO_BASE_URL")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "SMARTFLOW_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "SMARTFLOW_CHAIN_ID")

	// ── Database ──
	setStr(&cfg.Database.DSN, "SMARTFLOW_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "SMARTFLOW_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "SMARTFLOW_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SMARTFLOW_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SMARTFLOW_DATABASE_NAME")
	setStr(&cfg.Database.User, "SMARTFLOW_DATABASE_USER")
	setStr(&cfg.Database.Password, "SMARTFLOW_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SMARTFLOW_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "SMARTFLOW_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SMARTFLOW_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SMARTFLOW_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SMARTFLOW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SMARTFLOW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SMARTFLOW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SMARTFLOW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SMARTFLOW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SMARTFLOW_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.PriceTTLMinutes, "SMARTFLOW_REDIS_PRICE_TTL_MINUTES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SMARTFLOW_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SMARTFLOW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SMARTFLOW_S3_REGION")
	setStr(&cfg.S3.Bucket, "SMARTFLOW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SMARTFLOW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SMARTFLOW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SMARTFLOW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SMARTFLOW_S3_FORCE_PATH_STYLE")

	// ── Collector ──
	setStringSlice(&cfg.Collector.Chains, "SMARTFLOW_COLLECTOR_CHAINS")
	setFloat64(&cfg.Collector.MinUSDNotional, "SMARTFLOW_COLLECTOR_MIN_USD_NOTIONAL")
	setBool(&cfg.Collector.DynamicThreshold, "SMARTFLOW_COLLECTOR_DYNAMIC_THRESHOLD")
	setFloat64(&cfg.Collector.Quantile, "SMARTFLOW_COLLECTOR_QUANTILE")
	setInt(&cfg.Collector.LookbackMinutes, "SMARTFLOW_COLLECTOR_LOOKBACK_MINUTES")
	setInt(&cfg.Collector.MinSamples, "SMARTFLOW_COLLECTOR_MIN_SAMPLES")
	setFloat64(&cfg.Collector.FallbackThreshold, "SMARTFLOW_COLLECTOR_FALLBACK_THRESHOLD")
	setFloat64(&cfg.Collector.NetflowMinPositive, "SMARTFLOW_COLLECTOR_NETFLOW_MIN_POSITIVE")
	setFloat64(&cfg.Collector.VolumeZThreshold, "SMARTFLOW_COLLECTOR_VOLUME_Z_THRESHOLD")
	setFloat64(&cfg.Collector.LiquidityMinScore, "SMARTFLOW_COLLECTOR_LIQUIDITY_MIN_SCORE")
	setFloat64(&cfg.Collector.WeightUSD, "SMARTFLOW_COLLECTOR_WEIGHT_USD")
	setFloat64(&cfg.Collector.WeightLabel, "SMARTFLOW_COLLECTOR_WEIGHT_LABEL")
	setFloat64(&cfg.Collector.WeightAlpha, "SMARTFLOW_COLLECTOR_WEIGHT_ALPHA")
	setFloat64(&cfg.Collector.WeightVolZ, "SMARTFLOW_COLLECTOR_WEIGHT_VOLZ")
	setFloat64(&cfg.Collector.WeightBias, "SMARTFLOW_COLLECTOR_WEIGHT_BIAS")
	setFloat64(&cfg.Collector.PenaltyExplosive, "SMARTFLOW_COLLECTOR_PENALTY_EXPLOSIVE")
	setFloat64(&cfg.Collector.PenaltyLowLiq, "SMARTFLOW_COLLECTOR_PENALTY_LOW_LIQ")
	setStringSlice(&cfg.Collector.DexIncludeLabels, "SMARTFLOW_COLLECTOR_DEX_INCLUDE_LABELS")
	setStringSlice(&cfg.Collector.DexExcludeLabels, "SMARTFLOW_COLLECTOR_DEX_EXCLUDE_LABELS")
	setInt(&cfg.Collector.TokenAgeMinDays, "SMARTFLOW_COLLECTOR_TOKEN_AGE_MIN_DAYS")
	setInt(&cfg.Collector.TokenAgeMaxDays, "SMARTFLOW_COLLECTOR_TOKEN_AGE_MAX_DAYS")
	setFloat64(&cfg.Collector.TradeValueMin, "SMARTFLOW_COLLECTOR_TRADE_VALUE_MIN")
	setFloat64(&cfg.Collector.TradeValueMax, "SMARTFLOW_COLLECTOR_TRADE_VALUE_MAX")
	setDuration(&cfg.Collector.ScheduleInterval, "SMARTFLOW_COLLECTOR_SCHEDULE_INTERVAL")

	// ── Trading ──
	setInt(&cfg.Trading.SlippageBps, "SMARTFLOW_TRADING_SLIPPAGE_BPS")
	setBool(&cfg.Trading.WaitForReceipt, "SMARTFLOW_TRADING_WAIT_FOR_RECEIPT")
	setDuration(&cfg.Trading.ReceiptTimeout, "SMARTFLOW_TRADING_RECEIPT_TIMEOUT")

	// ── Simulator ──
	setBool(&cfg.Simulator.Enabled, "SMARTFLOW_SIMULATOR_ENABLED")
	setFloat64(&cfg.Simulator.GainTarget, "SMARTFLOW_SIMULATOR_GAIN_TARGET")
	setDuration(&cfg.Simulator.Interval, "SMARTFLOW_SIMULATOR_INTERVAL")

	// ── Report ──
	setStr(&cfg.Report.Dir, "SMARTFLOW_REPORT_DIR")
	setInt(&cfg.Report.TopN, "SMARTFLOW_REPORT_TOP_N")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SMARTFLOW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SMARTFLOW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SMARTFLOW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SMARTFLOW_NOTIFY_EVENTS")

	// ── Bot ──
	setBool(&cfg.Bot.Enabled, "SMARTFLOW_BOT_ENABLED")
	setStr(&cfg.Bot.AllowedChatID, "SMARTFLOW_BOT_ALLOWED_CHAT_ID")

	// ── Top-level ──
	setStr(&cfg.Mode, "SMARTFLOW_MODE")
	setStr(&cfg.LogLevel, "SMARTFLOW_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
