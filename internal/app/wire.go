package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/wycheng/smartflow/internal/blob/s3"
	"github.com/wycheng/smartflow/internal/cache/redis"
	"github.com/wycheng/smartflow/internal/chain"
	"github.com/wycheng/smartflow/internal/collector"
	"github.com/wycheng/smartflow/internal/config"
	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/notify"
	"github.com/wycheng/smartflow/internal/platform/gecko"
	"github.com/wycheng/smartflow/internal/platform/nansen"
	"github.com/wycheng/smartflow/internal/platform/zeroex"
	"github.com/wycheng/smartflow/internal/report"
	"github.com/wycheng/smartflow/internal/service"
	"github.com/wycheng/smartflow/internal/store/memory"
	"github.com/wycheng/smartflow/internal/store/postgres"
	"github.com/wycheng/smartflow/internal/trading"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	TokenStore          domain.TokenStore
	WalletStore         domain.WalletStore
	EventStore          domain.EventStore
	SignalStore         domain.SignalStore
	ExecutedTradeStore  domain.ExecutedTradeStore
	SimulatedTradeStore domain.SimulatedTradeStore
	RunStore            domain.RunStore

	// Redis
	PriceCache  domain.PriceCache
	LockManager domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter

	// Upstream clients
	Analytics collector.AnalyticsClient
	Prices    *gecko.Client

	// Services
	Pipeline   *collector.Pipeline
	Overview   *service.OverviewService
	Candidates *service.CandidateService
	Simulator  *service.Simulator
	Trading    *trading.Service
	Reporter   *report.Generator
	Notifier   *notify.Notifier
}

// needsRedis returns true for modes that use the price cache or the run lock.
// A one-shot collect run needs neither.
func needsRedis(mode string) bool {
	switch mode {
	case "schedule", "simulate", "bot", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Stores: in-memory for fixture runs, PostgreSQL otherwise ---
	if cfg.Nansen.UseFixtures {
		deps.TokenStore = memory.NewTokenStore()
		deps.WalletStore = memory.NewWalletStore()
		deps.EventStore = memory.NewEventStore()
		deps.SignalStore = memory.NewSignalStore()
		deps.ExecutedTradeStore = memory.NewExecutedTradeStore()
		deps.SimulatedTradeStore = memory.NewSimulatedTradeStore()
		deps.RunStore = memory.NewRunStore()
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.TokenStore = postgres.NewTokenStore(pool)
		deps.WalletStore = postgres.NewWalletStore(pool)
		deps.EventStore = postgres.NewEventStore(pool)
		deps.SignalStore = postgres.NewSignalStore(pool)
		deps.ExecutedTradeStore = postgres.NewExecutedTradeStore(pool)
		deps.SimulatedTradeStore = postgres.NewSimulatedTradeStore(pool)
		deps.RunStore = postgres.NewRunStore(pool)
	}

	// --- Redis (price cache + distributed run lock) ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		priceTTL := time.Duration(cfg.Redis.PriceTTLMinutes) * time.Minute
		deps.PriceCache = redis.NewPriceCache(redisClient, priceTTL)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Upstream clients ---
	if cfg.Nansen.UseFixtures {
		deps.Analytics = nansen.NewFixtureClient(cfg.Collector.Chains)
	} else {
		deps.Analytics = nansen.NewClient(cfg.Nansen.BaseURL, cfg.Nansen.ApiKey, cfg.Nansen.MaxRetries)
	}
	deps.Prices = gecko.NewClient(cfg.Gecko.BaseURL)

	// --- Collection pipeline ---
	alpha := service.NewWalletAlphaService(deps.WalletStore, deps.EventStore)
	enricher := collector.NewEnricher(deps.Analytics, alpha, !cfg.Nansen.UseFixtures, logger)
	correlator := collector.Correlator{NetflowMinPositive: cfg.Collector.NetflowMinPositive}
	filter := collector.NewThresholdFilter(collector.FilterConfig{
		MinUSDNotional:    cfg.Collector.MinUSDNotional,
		Dynamic:           cfg.Collector.DynamicThreshold,
		Quantile:          cfg.Collector.Quantile,
		LookbackMinutes:   cfg.Collector.LookbackMinutes,
		MinSamples:        cfg.Collector.MinSamples,
		FallbackThreshold: cfg.Collector.FallbackThreshold,
		LiquidityMinScore: cfg.Collector.LiquidityMinScore,
	}, deps.EventStore)
	scorer := collector.NewScorer(collector.ScorerConfig{
		MinUSDNotional:    cfg.Collector.MinUSDNotional,
		VolumeZThreshold:  cfg.Collector.VolumeZThreshold,
		LiquidityMinScore: cfg.Collector.LiquidityMinScore,
		WeightUSD:         cfg.Collector.WeightUSD,
		WeightLabel:       cfg.Collector.WeightLabel,
		WeightAlpha:       cfg.Collector.WeightAlpha,
		WeightVolZ:        cfg.Collector.WeightVolZ,
		WeightBias:        cfg.Collector.WeightBias,
		PenaltyExplosive:  cfg.Collector.PenaltyExplosive,
		PenaltyLowLiq:     cfg.Collector.PenaltyLowLiq,
	})
	deps.Pipeline = collector.NewPipeline(
		collector.QueryConfig{
			Chains:           cfg.Collector.Chains,
			MinUSDNotional:   cfg.Collector.MinUSDNotional,
			DexIncludeLabels: cfg.Collector.DexIncludeLabels,
			DexExcludeLabels: cfg.Collector.DexExcludeLabels,
			TokenAgeMinDays:  cfg.Collector.TokenAgeMinDays,
			TokenAgeMaxDays:  cfg.Collector.TokenAgeMaxDays,
			TradeValueMin:    cfg.Collector.TradeValueMin,
			TradeValueMax:    cfg.Collector.TradeValueMax,
			EnableLabels:     !cfg.Nansen.UseFixtures,
		},
		deps.Analytics,
		enricher,
		correlator,
		filter,
		scorer,
		collector.Stores{
			Tokens:  deps.TokenStore,
			Wallets: deps.WalletStore,
			Events:  deps.EventStore,
			Signals: deps.SignalStore,
			Runs:    deps.RunStore,
		},
		logger,
	)

	// --- Report services ---
	candidateCfg := service.DefaultCandidateConfig()
	if cfg.Report.TopN > 0 {
		candidateCfg.TopN = cfg.Report.TopN
	}
	deps.Overview = service.NewOverviewService()
	deps.Candidates = service.NewCandidateService(candidateCfg)
	deps.Reporter = report.NewGenerator(cfg.Report.Dir, deps.BlobWriter, logger)

	// --- Simulator ---
	deps.Simulator = service.NewSimulator(
		deps.SimulatedTradeStore,
		deps.Prices,
		deps.PriceCache,
		cfg.Simulator.GainTarget,
		logger,
	)

	// --- Trading (live execution is optional; without an RPC endpoint or a
	// wallet key the service still prices and records simulations) ---
	var backend trading.ChainBackend
	if cfg.Chain.RPCURL != "" {
		chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain rpc: %w", err)
		}
		closers = append(closers, chainClient.Close)
		backend = chainClient
	}

	var signer *chain.Signer
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		key, err := chain.LoadKey(chain.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err = chain.NewSigner(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
	}

	swapAPI := zeroex.NewClient(cfg.ZeroEx.BaseURL, cfg.ZeroEx.ApiKey, cfg.ZeroEx.Version)
	deps.Trading = trading.NewService(swapAPI, backend, signer, deps.ExecutedTradeStore, trading.Options{
		WaitForReceipt: cfg.Trading.WaitForReceipt,
		ReceiptTimeout: cfg.Trading.ReceiptTimeout.Duration,
	}, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
