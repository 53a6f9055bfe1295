// Package stats collects the receiver and pipeline counters, gauges, and
// latency histograms, and produces consistent point-in-time snapshots for
// the dashboard.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing count.
type Counter struct {
	v atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() { c.v.Add(1) }

// Add adds n.
func (c *Counter) Add(n int64) { c.v.Add(n) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge is an instantaneous value.
type Gauge struct {
	v atomic.Int64
}

// Set stores v.
func (g *Gauge) Set(v int64) { g.v.Store(v) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.v.Load() }

// maxHistogramSamples bounds each histogram's sample reservoir. Beyond
// this the oldest observations are overwritten ring-buffer style, which
// keeps snapshots weighted toward recent behavior.
const maxHistogramSamples = 4096

// Histogram records duration-style observations and reports percentile
// summaries.
type Histogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
	count   int64
	sum     float64
}

// Observe records one sample.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) < maxHistogramSamples && !h.full {
		h.samples = append(h.samples, v)
		if len(h.samples) == maxHistogramSamples {
			h.full = true
		}
	} else {
		h.samples[h.next] = v
		h.next = (h.next + 1) % maxHistogramSamples
	}
	h.count++
	h.sum += v
}

// ObserveDuration records d in milliseconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(float64(d) / float64(time.Millisecond))
}

// HistogramSummary is the percentile rollup of one histogram.
type HistogramSummary struct {
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Avg   float64 `json:"avg"`
	Count int64   `json:"count"`
}

// Summary computes the current percentile rollup.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := HistogramSummary{Count: h.count}
	if h.count == 0 {
		return s
	}
	s.Avg = h.sum / float64(h.count)

	sorted := make([]float64, len(h.samples))
	copy(sorted, h.samples)
	sort.Float64s(sorted)
	s.P50 = percentile(sorted, 0.50)
	s.P95 = percentile(sorted, 0.95)
	s.P99 = percentile(sorted, 0.99)
	return s
}

// percentile reads the nearest-rank percentile from a sorted sample set.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
