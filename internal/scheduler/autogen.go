// Package scheduler runs the periodic auto-regeneration sweep that keeps
// every active contract's rolling job horizon topped up.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/metrics"
	"github.com/clearcrew/fieldops/internal/recurring"
)

const (
	// DefaultInterval is the sweep cadence when none is configured
	DefaultInterval = 6 * time.Hour
	// MinInterval is the floor for a configured sweep cadence; anything
	// shorter falls back to DefaultInterval
	MinInterval = time.Minute
	// DefaultLockTTL bounds how long a crashed instance can hold the sweep
	// lock
	DefaultLockTTL = 5 * time.Minute
)

// Sweeper runs one auto-regeneration cycle over all eligible contracts
type Sweeper interface {
	RunRecurringJobsAutoRegenerationCycle(ctx context.Context, today time.Time) (*recurring.CycleResult, error)
}

// State is a snapshot of the scheduler's run history, exposed for monitoring
type State struct {
	LastRun     time.Time              `json:"last_run"`
	LastSuccess time.Time              `json:"last_success"`
	LastError   string                 `json:"last_error,omitempty"`
	RunCount    int64                  `json:"run_count"`
	LastResult  *recurring.CycleResult `json:"last_result,omitempty"`
}

// AutogenScheduler periodically triggers the recurring-job sweep. Cycles
// never overlap: a tick arriving while the previous cycle is still running is
// skipped, and with a Redis client configured a distributed lock extends the
// same guarantee across instances.
type AutogenScheduler struct {
	sweeper   Sweeper
	client    *redis.Client
	collector *metrics.Collector
	interval  time.Duration
	cronSched cron.Schedule
	lockTTL   time.Duration
	log       logger.Logger

	mu      sync.Mutex
	running bool

	stateMu sync.RWMutex
	state   State
}

// Config controls the sweep cadence
type Config struct {
	// Interval between sweep cycles; ignored when CronExpr is set
	Interval time.Duration
	// CronExpr is an optional standard 5-field cron expression that overrides
	// Interval
	CronExpr string
	// LockTTL for the cross-instance sweep lock
	LockTTL time.Duration
}

// NewAutogenScheduler creates the sweep scheduler. client may be nil when
// running a single instance without the distributed lock.
func NewAutogenScheduler(sweeper Sweeper, client *redis.Client, cfg Config, log logger.Logger) (*AutogenScheduler, error) {
	if log == nil {
		log = &logger.NoOpLogger{}
	}
	log = log.WithComponent(logger.ComponentScheduler)

	s := &AutogenScheduler{
		sweeper:   sweeper,
		client:    client,
		collector: metrics.Default(),
		interval:  cfg.Interval,
		lockTTL:   cfg.LockTTL,
		log:       log,
	}

	// A zero interval means none was configured; anything else below the
	// floor was configured badly and deserves a warning.
	if s.interval == 0 {
		s.interval = DefaultInterval
	} else if s.interval < MinInterval {
		log.Warn("Configured sweep interval invalid or below minimum, using default",
			"configured", cfg.Interval.String(),
			"minimum", MinInterval.String(),
			"default", DefaultInterval.String())
		s.interval = DefaultInterval
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultLockTTL
	}

	if cfg.CronExpr != "" {
		sched, err := cron.ParseStandard(cfg.CronExpr)
		if err != nil {
			return nil, err
		}
		s.cronSched = sched
	}

	return s, nil
}

// Start runs the sweep loop until ctx is canceled. The first cycle fires
// immediately so a fresh deployment does not wait a full interval to top up
// horizons.
func (s *AutogenScheduler) Start(ctx context.Context) {
	if s.cronSched != nil {
		s.log.Info("Auto-regeneration scheduler started", "cron", true)
		s.runCron(ctx)
		return
	}

	s.log.Info("Auto-regeneration scheduler started", "interval", s.interval.String())

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Auto-regeneration scheduler stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// runCron fires cycles on the configured cron schedule
func (s *AutogenScheduler) runCron(ctx context.Context) {
	for {
		next := s.cronSched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("Auto-regeneration scheduler stopping")
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce triggers a single sweep cycle, honoring the overlap guard and the
// distributed lock
func (s *AutogenScheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Previous auto-regeneration cycle still running, skipping")
		s.collector.RecordCycleSkipped()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.client != nil {
		lock, err := AcquireLock(ctx, s.client, sweepLockKey, s.lockTTL)
		if err != nil {
			s.log.Error("Failed to acquire sweep lock", "error", err.Error())
			s.collector.RecordCycleSkipped()
			return
		}
		if lock == nil {
			s.log.Debug("Sweep lock held by another instance, skipping")
			s.collector.RecordCycleSkipped()
			return
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				s.log.Error("Failed to release sweep lock", "error", err.Error())
			}
		}()
	}

	started := time.Now()
	result, err := s.cycle(ctx, started.UTC())
	duration := time.Since(started)

	s.recordOutcome(result, err, started, duration)
}

// cycle runs the sweep with panic containment
func (s *AutogenScheduler) cycle(ctx context.Context, today time.Time) (result *recurring.CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.NewPanicError(r)
		}
	}()
	return s.sweeper.RunRecurringJobsAutoRegenerationCycle(ctx, today)
}

// recordOutcome updates run state and metrics after a cycle
func (s *AutogenScheduler) recordOutcome(result *recurring.CycleResult, err error, started time.Time, duration time.Duration) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.state.LastRun = started
	s.state.RunCount++

	if err != nil {
		s.state.LastError = err.Error()
		s.collector.RecordCycleFailed()

		var panicErr *apperr.PanicError
		if errors.As(err, &panicErr) {
			s.log.Error("Auto-regeneration cycle panicked",
				"detail", apperr.FormatPanicForLog(panicErr))
		} else {
			s.log.Error("Auto-regeneration cycle failed", "error", err.Error())
		}
		return
	}

	s.state.LastSuccess = started
	s.state.LastError = ""
	s.state.LastResult = result
	s.collector.RecordCycle(result.Checked, result.Created, duration)
}

// GetState returns a snapshot of the scheduler's run history
func (s *AutogenScheduler) GetState() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}
