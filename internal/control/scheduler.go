// Package control runs the pipeline on a schedule and exposes an operator
// surface over Telegram for triggering and inspecting runs.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wycheng/smartflow/internal/collector"
	"github.com/wycheng/smartflow/internal/domain"
)

// runLockKey is the distributed lock guarding pipeline execution. One lock
// for the whole deployment: scheduled ticks and manual /run commands contend
// on the same key.
const runLockKey = "pipeline:run"

// Runner executes one pipeline pass.
type Runner interface {
	RunOnce(ctx context.Context) (*collector.Result, error)
}

// Status is a snapshot of the scheduler for the operator bot.
type Status struct {
	ScheduleEnabled bool
	Running         bool
	LastRunID       string
	LastRunAt       time.Time
	LastSignals     int
	LastError       string
}

// PipelineController is the operator surface the control bot drives.
type PipelineController interface {
	RunNow(ctx context.Context) (*collector.Result, error)
	EnableSchedule()
	DisableSchedule()
	Status() Status
}

// Scheduler runs the pipeline at a fixed interval while enabled, skipping
// ticks when another instance holds the run lock. It also serves manual runs
// through the PipelineController interface.
type Scheduler struct {
	runner   Runner
	locks    domain.LockManager
	interval time.Duration
	lockTTL  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	enabled bool
	running bool
	last    Status
}

var _ PipelineController = (*Scheduler)(nil)

// NewScheduler creates a Scheduler. locks may be nil, in which case runs are
// guarded only within this process. The schedule starts enabled.
func NewScheduler(
	runner Runner,
	locks domain.LockManager,
	interval time.Duration,
	lockTTL time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &Scheduler{
		runner:   runner,
		locks:    locks,
		interval: interval,
		lockTTL:  lockTTL,
		enabled:  true,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Run executes the schedule loop until ctx is cancelled. The first pass runs
// immediately; subsequent passes follow the ticker.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler starting",
		slog.Duration("interval", s.interval),
	)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()
	if !enabled {
		return
	}

	if _, err := s.runLocked(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
		s.logger.ErrorContext(ctx, "scheduled run failed",
			slog.String("error", err.Error()),
		)
	}
}

// RunNow executes one pipeline pass immediately, regardless of whether the
// schedule is enabled. It still contends on the run lock.
func (s *Scheduler) RunNow(ctx context.Context) (*collector.Result, error) {
	return s.runLocked(ctx)
}

// EnableSchedule resumes scheduled runs.
func (s *Scheduler) EnableSchedule() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
}

// DisableSchedule pauses scheduled runs. Manual runs remain available.
func (s *Scheduler) DisableSchedule() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

// Status returns a snapshot of the scheduler state and the last run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.last
	status.ScheduleEnabled = s.enabled
	status.Running = s.running
	return status
}

func (s *Scheduler) runLocked(ctx context.Context) (*collector.Result, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, runLockKey, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.InfoContext(ctx, "run lock held, skipping")
			}
			return nil, err
		}
		defer unlock()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, domain.ErrLockHeld
	}
	s.running = true
	s.mu.Unlock()

	result, err := s.runner.RunOnce(ctx)

	s.mu.Lock()
	s.running = false
	if err != nil {
		s.last.LastError = err.Error()
		s.last.LastRunAt = time.Now().UTC()
	} else {
		s.last = Status{
			LastRunID:   result.RunID,
			LastRunAt:   result.FinishedAt,
			LastSignals: len(result.Signals),
		}
	}
	s.mu.Unlock()

	return result, err
}
