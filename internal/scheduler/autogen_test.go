package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/recurring"
)

// warnRecorder captures warn-level messages for assertions
type warnRecorder struct {
	logger.NoOpLogger
	warns []string
}

func (w *warnRecorder) Warn(msg string, args ...interface{}) {
	w.warns = append(w.warns, msg)
}

func (w *warnRecorder) WithComponent(c logger.Component) logger.Logger { return w }

// fakeSweeper is a controllable Sweeper for scheduler tests
type fakeSweeper struct {
	calls   atomic.Int64
	block   chan struct{} // when set, cycles block until closed
	panicOn bool
	err     error
	result  *recurring.CycleResult
}

func (f *fakeSweeper) RunRecurringJobsAutoRegenerationCycle(ctx context.Context, today time.Time) (*recurring.CycleResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.panicOn {
		panic("sweeper exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &recurring.CycleResult{}, nil
}

func newTestScheduler(t *testing.T, sweeper Sweeper, cfg Config) *AutogenScheduler {
	t.Helper()
	s, err := NewAutogenScheduler(sweeper, nil, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	return s
}

func TestRunOnce_RecordsState(t *testing.T) {
	sweeper := &fakeSweeper{result: &recurring.CycleResult{Checked: 3, GeneratedFor: 2, Created: 9}}
	s := newTestScheduler(t, sweeper, Config{})

	s.RunOnce(context.Background())

	state := s.GetState()
	if state.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", state.RunCount)
	}
	if state.LastError != "" {
		t.Errorf("LastError = %q, want empty", state.LastError)
	}
	if state.LastResult == nil || state.LastResult.Created != 9 {
		t.Errorf("LastResult = %+v, want Created 9", state.LastResult)
	}
	if state.LastSuccess.IsZero() {
		t.Error("LastSuccess not set")
	}
}

func TestRunOnce_OverlapGuard(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{})}
	s := newTestScheduler(t, sweeper, Config{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunOnce(context.Background())
	}()

	// Wait for the first cycle to be inside the sweeper
	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("First cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Second trigger while the first is still running must be a no-op
	s.RunOnce(context.Background())
	if got := sweeper.calls.Load(); got != 1 {
		t.Errorf("Sweeper called %d times during overlap, want 1", got)
	}

	close(sweeper.block)
	wg.Wait()

	// After the first finishes, triggers work again
	sweeper.block = nil
	s.RunOnce(context.Background())
	if got := sweeper.calls.Load(); got != 2 {
		t.Errorf("Sweeper calls = %d after guard cleared, want 2", got)
	}
}

func TestRunOnce_PanicContained(t *testing.T) {
	sweeper := &fakeSweeper{panicOn: true}
	s := newTestScheduler(t, sweeper, Config{})

	// Must not propagate the panic
	s.RunOnce(context.Background())

	state := s.GetState()
	if state.LastError == "" {
		t.Error("Panic did not surface in LastError")
	}
	if !state.LastSuccess.IsZero() {
		t.Error("Panicked cycle recorded as success")
	}

	// Scheduler remains usable
	sweeper.panicOn = false
	s.RunOnce(context.Background())
	if s.GetState().LastError != "" {
		t.Errorf("LastError not cleared after recovery: %q", s.GetState().LastError)
	}
}

func TestNewAutogenScheduler_IntervalFloor(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
		wantWarn bool
	}{
		{"unset uses default silently", 0, DefaultInterval, false},
		{"valid interval kept", 2 * time.Hour, 2 * time.Hour, false},
		{"exactly the minimum kept", time.Minute, time.Minute, false},
		{"sub-minimum warns and falls back", time.Second, DefaultInterval, true},
		{"unparseable config warns and falls back", -time.Millisecond, DefaultInterval, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &warnRecorder{}
			s, err := NewAutogenScheduler(&fakeSweeper{}, nil, Config{Interval: tt.interval}, rec)
			if err != nil {
				t.Fatalf("Failed to create scheduler: %v", err)
			}
			if s.interval != tt.want {
				t.Errorf("Interval = %v, want %v", s.interval, tt.want)
			}
			if warned := len(rec.warns) > 0; warned != tt.wantWarn {
				t.Errorf("Warned = %v (%v), want %v", warned, rec.warns, tt.wantWarn)
			}
		})
	}
}

func TestNewAutogenScheduler_CronExpr(t *testing.T) {
	s := newTestScheduler(t, &fakeSweeper{}, Config{CronExpr: "0 */6 * * *"})
	if s.cronSched == nil {
		t.Fatal("Cron schedule not parsed")
	}

	if _, err := NewAutogenScheduler(&fakeSweeper{}, nil, Config{CronExpr: "not a cron"}, nil); err == nil {
		t.Error("Invalid cron expression accepted")
	}
}

func TestRunOnce_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sweeper := &fakeSweeper{}
	s, err := NewAutogenScheduler(sweeper, client, Config{}, nil)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	// Lock held by "another instance": cycle must be skipped
	if err := client.Set(context.Background(), sweepLockKey, "other-token", time.Minute).Err(); err != nil {
		t.Fatalf("Failed to seed lock: %v", err)
	}
	s.RunOnce(context.Background())
	if sweeper.calls.Load() != 0 {
		t.Error("Cycle ran while lock was held elsewhere")
	}

	mr.Del(sweepLockKey)
	s.RunOnce(context.Background())
	if sweeper.calls.Load() != 1 {
		t.Errorf("Sweeper calls = %d after lock freed, want 1", sweeper.calls.Load())
	}

	// Lock released after the cycle
	if mr.Exists(sweepLockKey) {
		t.Error("Sweep lock not released after cycle")
	}
}
