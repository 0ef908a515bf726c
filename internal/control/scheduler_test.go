package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/collector"
	"github.com/wycheng/smartflow/internal/domain"
)

type stubRunner struct {
	mu     sync.Mutex
	calls  int
	result *collector.Result
	err    error
}

func (s *stubRunner) RunOnce(ctx context.Context) (*collector.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memLockManager grants or denies every acquire, recording unlock calls.
type memLockManager struct {
	held     bool
	acquired int
	released int
}

func (m *memLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if m.held {
		return nil, domain.ErrLockHeld
	}
	m.acquired++
	return func() { m.released++ }, nil
}

func schedLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testResult() *collector.Result {
	return &collector.Result{
		RunID:      "run-1",
		Signals:    []domain.Signal{{Score: 0.5, Type: domain.SignalBuy}},
		FinishedAt: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
	}
}

func TestSchedulerRunNowUpdatesStatus(t *testing.T) {
	runner := &stubRunner{result: testResult()}
	locks := &memLockManager{}
	s := NewScheduler(runner, locks, time.Hour, 0, schedLogger())

	result, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 1, runner.callCount())
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released)

	status := s.Status()
	assert.True(t, status.ScheduleEnabled)
	assert.False(t, status.Running)
	assert.Equal(t, "run-1", status.LastRunID)
	assert.Equal(t, 1, status.LastSignals)
	assert.Empty(t, status.LastError)
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	runner := &stubRunner{result: testResult()}
	locks := &memLockManager{held: true}
	s := NewScheduler(runner, locks, time.Hour, 0, schedLogger())

	_, err := s.RunNow(context.Background())
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, 0, runner.callCount())
}

func TestSchedulerRecordsRunFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("upstream exploded")}
	s := NewScheduler(runner, nil, time.Hour, 0, schedLogger())

	_, err := s.RunNow(context.Background())
	require.Error(t, err)

	status := s.Status()
	assert.Equal(t, "upstream exploded", status.LastError)
	assert.False(t, status.LastRunAt.IsZero())
}

func TestSchedulerDisableSkipsTicks(t *testing.T) {
	runner := &stubRunner{result: testResult()}
	s := NewScheduler(runner, nil, time.Hour, 0, schedLogger())

	s.DisableSchedule()
	s.tick(context.Background())
	assert.Equal(t, 0, runner.callCount())

	status := s.Status()
	assert.False(t, status.ScheduleEnabled)

	// Manual runs still work while the schedule is paused.
	_, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.callCount())

	s.EnableSchedule()
	s.tick(context.Background())
	assert.Equal(t, 2, runner.callCount())
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	runner := &stubRunner{result: testResult()}
	s := NewScheduler(runner, nil, time.Hour, 0, schedLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The first pass runs immediately; give it a moment, then cancel.
	require.Eventually(t, func() bool { return runner.callCount() >= 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
