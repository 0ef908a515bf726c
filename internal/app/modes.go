package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wycheng/smartflow/internal/collector"
	"github.com/wycheng/smartflow/internal/control"
	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/notify"
	"github.com/wycheng/smartflow/internal/report"
	"github.com/wycheng/smartflow/internal/service"
)

// simulatorSignalBatch is how many recent signals a standalone simulator
// sweep replays against open positions.
const simulatorSignalBatch = 100

// reportingRunner wraps the collection pipeline so every run, scheduled or
// manual, also produces the report artifact, the notifications, and (when
// enabled) a simulator sweep. Report and notification failures are logged,
// never propagated; the run itself already succeeded.
type reportingRunner struct {
	pipeline   *collector.Pipeline
	overview   *service.OverviewService
	candidates *service.CandidateService
	simulator  *service.Simulator
	reporter   *report.Generator
	notifier   *notify.Notifier
	simulate   bool
	logger     *slog.Logger
}

var _ control.Runner = (*reportingRunner)(nil)

func (r *reportingRunner) RunOnce(ctx context.Context) (*collector.Result, error) {
	result, err := r.pipeline.RunOnce(ctx)
	if err != nil {
		if nerr := r.notifier.Notify(ctx, notify.EventRunFailed, "Pipeline run failed", err.Error()); nerr != nil {
			r.logger.WarnContext(ctx, "run failure notification failed", slog.String("error", nerr.Error()))
		}
		return nil, err
	}

	overview := r.overview.Build(result.DexEvents, result.ScreenerEvents)
	candidates := r.candidates.Build(overview)
	artifact := report.Build(result.RunID, result.FinishedAt, result.Signals, overview, candidates)
	if path, werr := r.reporter.Write(ctx, artifact); werr != nil {
		r.logger.WarnContext(ctx, "report write failed", slog.String("error", werr.Error()))
	} else {
		r.logger.InfoContext(ctx, "report written", slog.String("path", path))
	}

	if r.simulate {
		stats, serr := r.simulator.ProcessSignals(ctx, result.Signals)
		if serr != nil {
			r.logger.WarnContext(ctx, "simulator sweep failed", slog.String("error", serr.Error()))
		} else if stats.Opened > 0 || stats.Closed > 0 {
			r.logger.InfoContext(ctx, "simulator sweep",
				slog.Int("opened", stats.Opened),
				slog.Int("closed", stats.Closed),
			)
		}
	}

	run := domain.PipelineRun{
		ID:          result.RunID,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		EventCount:  result.Stats["total_events"],
		SignalCount: len(result.Signals),
		Stats:       result.Stats,
	}
	title, message := notify.FormatRunSummary(run, result.Signals)
	if nerr := r.notifier.Notify(ctx, notify.EventRunCompleted, title, message); nerr != nil {
		r.logger.WarnContext(ctx, "run summary notification failed", slog.String("error", nerr.Error()))
	}

	return result, nil
}

func (a *App) newRunner(deps *Dependencies) *reportingRunner {
	return &reportingRunner{
		pipeline:   deps.Pipeline,
		overview:   deps.Overview,
		candidates: deps.Candidates,
		simulator:  deps.Simulator,
		reporter:   deps.Reporter,
		notifier:   deps.Notifier,
		simulate:   a.cfg.Simulator.Enabled,
		logger:     a.logger,
	}
}

func (a *App) newScheduler(deps *Dependencies) *control.Scheduler {
	return control.NewScheduler(
		a.newRunner(deps),
		deps.LockManager,
		a.cfg.Collector.ScheduleInterval.Duration,
		0, // lock TTL defaults to the interval
		a.logger,
	)
}

// CollectMode executes one pipeline run and exits.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting collect mode")

	result, err := a.newRunner(deps).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("collect mode: %w", err)
	}

	a.logger.InfoContext(ctx, "collect run finished",
		slog.String("run_id", result.RunID),
		slog.Int("signals", len(result.Signals)),
		slog.Int("buy", result.BuySignals),
		slog.Int("sell", result.SellSignals),
	)
	return nil
}

// ScheduleMode runs the pipeline on the configured interval until cancelled.
func (a *App) ScheduleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting schedule mode",
		slog.Duration("interval", a.cfg.Collector.ScheduleInterval.Duration),
	)

	if err := a.newScheduler(deps).Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("schedule mode: %w", err)
	}
	return nil
}

// SimulateMode sweeps open paper positions against current prices on the
// simulator interval, replaying recent signals to open new positions.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Simulator.Interval.Duration
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	a.logger.InfoContext(ctx, "starting simulate mode",
		slog.Duration("interval", interval),
	)

	sweep := func() {
		signals, err := deps.SignalStore.ListRecent(ctx, simulatorSignalBatch)
		if err != nil {
			a.logger.ErrorContext(ctx, "simulate mode: list signals failed",
				slog.String("error", err.Error()),
			)
			return
		}
		stats, err := deps.Simulator.ProcessSignals(ctx, signals)
		if err != nil {
			a.logger.ErrorContext(ctx, "simulate mode: sweep failed",
				slog.String("error", err.Error()),
			)
			return
		}
		a.logger.InfoContext(ctx, "simulator sweep",
			slog.Int("opened", stats.Opened),
			slog.Int("closed", stats.Closed),
		)
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "simulate mode stopped")
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}

// BotMode runs the Telegram control bot alongside the scheduler so operators
// can trigger and inspect runs remotely.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")

	scheduler := a.newScheduler(deps)
	bot := control.NewBot(
		a.cfg.Notify.TelegramToken,
		a.allowedChatIDs(),
		scheduler,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := bot.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

// FullMode starts every subsystem: the scheduler, the control bot when
// enabled, and the standalone simulator sweep when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	scheduler := a.newScheduler(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if a.cfg.Bot.Enabled && a.cfg.Notify.TelegramToken != "" {
		bot := control.NewBot(
			a.cfg.Notify.TelegramToken,
			a.allowedChatIDs(),
			scheduler,
			a.logger,
		)
		g.Go(func() error {
			err := bot.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	// The per-run sweep only sees that run's signals; this loop keeps
	// closing positions as prices move between runs.
	if a.cfg.Simulator.Enabled {
		g.Go(func() error {
			return a.SimulateMode(ctx, deps)
		})
	}

	return g.Wait()
}

// allowedChatIDs parses the configured chat allowlist. Invalid entries are
// logged and skipped; an empty result means the bot serves every chat.
func (a *App) allowedChatIDs() []int64 {
	var ids []int64
	for _, part := range strings.Split(a.cfg.Bot.AllowedChatID, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			a.logger.Warn("ignoring invalid allowed chat id", slog.String("value", part))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
