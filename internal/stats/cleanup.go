package stats

import (
	"sync"
	"time"
)

// CleanupStats tracks the retention cleanup cycles and per-strategy
// deletion counts.
type CleanupStats struct {
	Cycles Counter

	mu      sync.Mutex
	deleted map[string]*Counter
	lastRun time.Time
}

// NewCleanupStats returns an empty cleanup collector.
func NewCleanupStats() *CleanupStats {
	return &CleanupStats{deleted: make(map[string]*Counter)}
}

// MarkDeleted records n rows removed by the named strategy.
func (c *CleanupStats) MarkDeleted(strategy string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cnt := c.deleted[strategy]
	if cnt == nil {
		cnt = &Counter{}
		c.deleted[strategy] = cnt
	}
	cnt.Add(n)
}

// MarkCycle records a completed cleanup cycle.
func (c *CleanupStats) MarkCycle(at time.Time) {
	c.Cycles.Inc()
	c.mu.Lock()
	c.lastRun = at
	c.mu.Unlock()
}

// CleanupSnapshot is the dashboard view of the cleanup loop.
type CleanupSnapshot struct {
	Cycles  int64            `json:"cleanup_cycles_total"`
	Deleted map[string]int64 `json:"events_deleted_total"`
	LastRun time.Time        `json:"last_run,omitzero"`
}

// Snapshot produces a consistent view of the cleanup counters.
func (c *CleanupStats) Snapshot() CleanupSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CleanupSnapshot{
		Cycles:  c.Cycles.Value(),
		Deleted: counterValues(c.deleted),
		LastRun: c.lastRun,
	}
}
