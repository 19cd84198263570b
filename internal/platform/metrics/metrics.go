package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	AssignmentsCreated   = "assignments_created"
	AssignmentsCancelled = "assignments_cancelled"
	CriteriaCreated      = "criteria_created"
	CriteriaRemoved      = "criteria_removed"
	MappingsCreated      = "mappings_created"
	ResolutionGaps       = "resolution_gaps"
	ActivityFailures     = "activity_failures"
)

// Collector keeps HTTP request totals and named domain counters. A nil
// *Collector is valid and records nothing.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	totalDurationMs uint64

	mu       sync.Mutex
	counters map[string]uint64
}

func New() *Collector {
	return &Collector{counters: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) Add(name string, delta int) {
	if c == nil || delta <= 0 {
		return
	}
	c.mu.Lock()
	c.counters[name] += uint64(delta)
	c.mu.Unlock()
}

func (c *Collector) Inc(name string) {
	c.Add(name, 1)
}

func (c *Collector) Counter(name string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

func (c *Collector) Snapshot() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	counters := map[string]uint64{}
	c.mu.Lock()
	for k, v := range c.counters {
		counters[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":   total,
		"errorsTotal":     errs,
		"avgDurationMs":   avg,
		"totalDurationMs": totalMs,
		"domain":          counters,
	}
}
