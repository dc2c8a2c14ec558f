// Package metrics tracks scheduling-engine counters in memory: sweep cycles,
// jobs generated and canceled, and service-window rejections. Exposed as a
// JSON snapshot on the API's /metrics endpoint.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector tracks system-wide metrics in memory
type Collector struct {
	cyclesRun     atomic.Int64
	cyclesSkipped atomic.Int64
	cyclesFailed  atomic.Int64

	contractsChecked atomic.Int64
	jobsCreated      atomic.Int64
	jobsCanceled     atomic.Int64
	windowRejections atomic.Int64
	overridesUsed    atomic.Int64

	mu                 sync.RWMutex
	startTime          time.Time
	lastCycleAt        time.Time
	totalCycleDuration time.Duration
	cycleCount         int64
}

// Metrics represents a snapshot of current system metrics
type Metrics struct {
	CyclesRun        int64 `json:"cycles_run"`
	CyclesSkipped    int64 `json:"cycles_skipped"`
	CyclesFailed     int64 `json:"cycles_failed"`
	ContractsChecked int64 `json:"contracts_checked"`
	JobsCreated      int64 `json:"jobs_created"`
	JobsCanceled     int64 `json:"jobs_canceled"`
	WindowRejections int64 `json:"window_rejections"`
	OverridesUsed    int64 `json:"overrides_used"`

	AvgCycleDuration time.Duration `json:"avg_cycle_duration"`
	LastCycleAt      time.Time     `json:"last_cycle_at"`
	Uptime           time.Duration `json:"uptime"`
}

// Default returns the global metrics collector instance
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordCycle records a finished sweep cycle
func (c *Collector) RecordCycle(contractsChecked, jobsCreated int, duration time.Duration) {
	c.cyclesRun.Add(1)
	c.contractsChecked.Add(int64(contractsChecked))
	c.jobsCreated.Add(int64(jobsCreated))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCycleAt = time.Now()
	c.totalCycleDuration += duration
	c.cycleCount++
}

// RecordCycleSkipped records a sweep tick skipped because the previous cycle
// was still running or the lock was held elsewhere
func (c *Collector) RecordCycleSkipped() {
	c.cyclesSkipped.Add(1)
}

// RecordCycleFailed records a sweep cycle that ended in an error or panic
func (c *Collector) RecordCycleFailed() {
	c.cyclesFailed.Add(1)
}

// RecordJobsCreated adds to the generated-jobs counter, for generation
// triggered outside a sweep cycle
func (c *Collector) RecordJobsCreated(n int) {
	c.jobsCreated.Add(int64(n))
}

// RecordJobsCanceled adds to the canceled-jobs counter
func (c *Collector) RecordJobsCanceled(n int64) {
	c.jobsCanceled.Add(n)
}

// RecordWindowRejection counts an action rejected for being outside the
// service window
func (c *Collector) RecordWindowRejection() {
	c.windowRejections.Add(1)
}

// RecordOverrideUsed counts a manager override of window enforcement
func (c *Collector) RecordOverrideUsed() {
	c.overridesUsed.Add(1)
}

// GetMetrics returns a snapshot of current metrics
func (c *Collector) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var avgCycle time.Duration
	if c.cycleCount > 0 {
		avgCycle = c.totalCycleDuration / time.Duration(c.cycleCount)
	}

	return Metrics{
		CyclesRun:        c.cyclesRun.Load(),
		CyclesSkipped:    c.cyclesSkipped.Load(),
		CyclesFailed:     c.cyclesFailed.Load(),
		ContractsChecked: c.contractsChecked.Load(),
		JobsCreated:      c.jobsCreated.Load(),
		JobsCanceled:     c.jobsCanceled.Load(),
		WindowRejections: c.windowRejections.Load(),
		OverridesUsed:    c.overridesUsed.Load(),
		AvgCycleDuration: avgCycle,
		LastCycleAt:      c.lastCycleAt,
		Uptime:           time.Since(c.startTime),
	}
}

// Reset clears all metrics (useful for testing)
func (c *Collector) Reset() {
	c.cyclesRun.Store(0)
	c.cyclesSkipped.Store(0)
	c.cyclesFailed.Store(0)
	c.contractsChecked.Store(0)
	c.jobsCreated.Store(0)
	c.jobsCanceled.Store(0)
	c.windowRejections.Store(0)
	c.overridesUsed.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastCycleAt = time.Time{}
	c.totalCycleDuration = 0
	c.cycleCount = 0
}

// GetMetrics returns metrics from the global collector
func GetMetrics() Metrics {
	return Default().GetMetrics()
}

// ResetMetrics resets the global collector
func ResetMetrics() {
	Default().Reset()
}
