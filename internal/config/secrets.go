package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Nansen
	out.Nansen = cfg.Nansen
	redact(&out.Nansen.ApiKey)

	// 0x
	out.ZeroEx = cfg.ZeroEx
	redact(&out.ZeroEx.ApiKey)

	// Chain — RPC URLs frequently embed provider tokens.
	out.Chain = cfg.Chain
	redact(&out.Chain.RPCURL)

	// Database
	out.Database = cfg.Database
	redact(&out.Database.DSN)
	redact(&out.Database.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Collector.Chains != nil {
		out.Collector.Chains = make([]string, len(cfg.Collector.Chains))
		copy(out.Collector.Chains, cfg.Collector.Chains)
	}
	if cfg.Collector.DexIncludeLabels != nil {
		out.Collector.DexIncludeLabels = make([]string, len(cfg.Collector.DexIncludeLabels))
		copy(out.Collector.DexIncludeLabels, cfg.Collector.DexIncludeLabels)
	}
	if cfg.Collector.DexExcludeLabels != nil {
		out.Collector.DexExcludeLabels = make([]string, len(cfg.Collector.DexExcludeLabels))
		copy(out.Collector.DexExcludeLabels, cfg.Collector.DexExcludeLabels)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
