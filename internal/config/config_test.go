package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Nansen.UseFixtures = true
	return cfg
}

func TestDefaultsValidateWithFixtures(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultsRequireNansenApiKey(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "nansen: api_key is required unless use_fixtures is set")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Chain.ChainID = 0
	cfg.Collector.Quantile = 1.5
	cfg.Trading.SlippageBps = 20_000

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown mode "turbo"`)
	assert.ErrorContains(t, err, `unknown log_level "loud"`)
	assert.ErrorContains(t, err, "redis: addr must not be empty")
	assert.ErrorContains(t, err, "chain: chain_id must be positive")
	assert.ErrorContains(t, err, "collector: quantile must be in (0, 1)")
	assert.ErrorContains(t, err, "trading: slippage_bps must be 0-10000")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.EncryptedKeyPath = "/keys/wallet.json"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "wallet: key_password is required")

	cfg.Wallet.KeyPassword = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateBotNeedsTelegramToken(t *testing.T) {
	cfg := validConfig()
	cfg.Bot.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "bot: notify.telegram_token is required")
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Database.DSN = "postgres://u:p@db:5432/smartflow"
	cfg.Database.Host = ""
	cfg.Database.Database = ""
	assert.NoError(t, cfg.Validate())
}

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "schedule"
log_level = "debug"

[nansen]
use_fixtures = true

[collector]
schedule_interval = "30m"
min_usd_notional = 250000.0

[trading]
receipt_timeout = "2m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "schedule", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Nansen.UseFixtures)
	assert.Equal(t, 30*time.Minute, cfg.Collector.ScheduleInterval.Duration)
	assert.Equal(t, 250_000.0, cfg.Collector.MinUSDNotional)
	assert.Equal(t, 2*time.Minute, cfg.Trading.ReceiptTimeout.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.0x.org", cfg.ZeroEx.BaseURL)
	assert.Equal(t, 10, cfg.Report.TopN)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTOML(t, `
[nansen]
use_fixtures = true
api_key = "from-file"
`)

	t.Setenv("SMARTFLOW_NANSEN_API_KEY", "from-env")
	t.Setenv("SMARTFLOW_MODE", "full")
	t.Setenv("SMARTFLOW_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SMARTFLOW_COLLECTOR_CHAINS", "ethereum, base")
	t.Setenv("SMARTFLOW_COLLECTOR_SCHEDULE_INTERVAL", "45m")
	t.Setenv("SMARTFLOW_NOTIFY_DISCORD_WEBHOOK_URL", "https://discord.example/hook")
	t.Setenv("SMARTFLOW_S3_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Nansen.ApiKey)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"ethereum", "base"}, cfg.Collector.Chains)
	assert.Equal(t, 45*time.Minute, cfg.Collector.ScheduleInterval.Duration)
	assert.Equal(t, "https://discord.example/hook", cfg.Notify.DiscordWebhookURL)
	assert.True(t, cfg.S3.Enabled)
}

func TestLoadDatabaseURLAlias(t *testing.T) {
	path := writeTOML(t, `
[nansen]
use_fixtures = true
`)
	t.Setenv("SMARTFLOW_DATABASE_URL", "postgres://u:p@db:5432/smartflow")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/smartflow", cfg.Database.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Wallet.KeyPassword = "pw"
	cfg.Nansen.ApiKey = "nansen-key"
	cfg.ZeroEx.ApiKey = "zeroex-key"
	cfg.Chain.RPCURL = "https://mainnet.example/v3/token"
	cfg.Database.Password = "dbpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.AccessKey = "ak"
	cfg.S3.SecretKey = "sk"
	cfg.Notify.TelegramToken = "tg-token"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Wallet.KeyPassword)
	assert.Equal(t, "***", red.Nansen.ApiKey)
	assert.Equal(t, "***", red.ZeroEx.ApiKey)
	assert.Equal(t, "***", red.Chain.RPCURL)
	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.AccessKey)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "***", red.Notify.DiscordWebhookURL)

	// The original is untouched.
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "tg-token", cfg.Notify.TelegramToken)

	// Empty secrets stay empty rather than becoming "***".
	assert.Empty(t, red.Database.DSN)
}

func TestRedactedConfigCopiesSlices(t *testing.T) {
	cfg := validConfig()
	red := RedactedConfig(&cfg)

	red.Collector.Chains[0] = "mutated"
	assert.Equal(t, "ethereum", cfg.Collector.Chains[0])
}
