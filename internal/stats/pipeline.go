package stats

import (
	"sync"
	"time"
)

// PipelineStats tracks event flow through one pipeline and its sinks.
type PipelineStats struct {
	Processed Counter

	mu       sync.Mutex
	filtered map[string]*Counter // by reason
	errored  map[string]*Counter // by stage
	dropped  map[string]*Counter // by sink
	sinks    map[string]*SinkStats
	offices  map[string]*officeActivity

	PipelineLatency Histogram
	stageLatency    map[string]*Histogram
}

// SinkStats is the per-sink success/failure breakdown.
type SinkStats struct {
	Success  Counter
	Failures Counter
	// 0 closed, 1 open, 2 half-open
	CircuitState Gauge
}

type officeActivity struct {
	processed    Counter
	lastActivity time.Time
}

// NewPipelineStats returns an empty pipeline collector.
func NewPipelineStats() *PipelineStats {
	return &PipelineStats{
		filtered:     make(map[string]*Counter),
		errored:      make(map[string]*Counter),
		dropped:      make(map[string]*Counter),
		sinks:        make(map[string]*SinkStats),
		offices:      make(map[string]*officeActivity),
		stageLatency: make(map[string]*Histogram),
	}
}

// MarkFiltered counts an event rejected by a filter.
func (p *PipelineStats) MarkFiltered(reason string) {
	p.counterFor(&p.filtered, reason).Inc()
}

// MarkErrored counts an error at a stage.
func (p *PipelineStats) MarkErrored(stage string) {
	p.counterFor(&p.errored, stage).Inc()
}

// MarkDropped counts an event shed from a sink.
func (p *PipelineStats) MarkDropped(sink string) {
	p.counterFor(&p.dropped, sink).Inc()
}

// MarkOffice records activity for an issuing office. The timestamp is the
// event's receipt time.
func (p *PipelineStats) MarkOffice(cccc string, receivedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.offices[cccc]
	if o == nil {
		o = &officeActivity{}
		p.offices[cccc] = o
	}
	o.processed.Inc()
	if receivedAt.After(o.lastActivity) {
		o.lastActivity = receivedAt
	}
}

// Sink returns the named sink's collector, creating it on first use.
func (p *PipelineStats) Sink(name string) *SinkStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sinks[name]
	if s == nil {
		s = &SinkStats{}
		p.sinks[name] = s
	}
	return s
}

// StageLatency returns the named stage's histogram, creating it on first use.
func (p *PipelineStats) StageLatency(stage string) *Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.stageLatency[stage]
	if h == nil {
		h = &Histogram{}
		p.stageLatency[stage] = h
	}
	return h
}

func (p *PipelineStats) counterFor(m *map[string]*Counter, key string) *Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := (*m)[key]
	if c == nil {
		c = &Counter{}
		(*m)[key] = c
	}
	return c
}

// SinkSnapshot is the dashboard view of one sink.
type SinkSnapshot struct {
	Success      int64  `json:"sink_success_total"`
	Failures     int64  `json:"sink_failures_total"`
	CircuitState string `json:"sink_circuit_state"`
}

// OfficeSnapshot is the per-office activity rollup.
type OfficeSnapshot struct {
	Processed    int64     `json:"messages_processed_total"`
	LastActivity time.Time `json:"last_activity"`
}

// PipelineSnapshot is the dashboard view of one pipeline.
type PipelineSnapshot struct {
	Processed int64            `json:"events_processed_total"`
	Filtered  map[string]int64 `json:"events_filtered_total"`
	Errored   map[string]int64 `json:"events_errored_total"`
	Dropped   map[string]int64 `json:"events_dropped_total"`

	LatencyMs      HistogramSummary            `json:"pipeline_latency_ms"`
	StageLatencyMs map[string]HistogramSummary `json:"per_stage_latency_ms"`

	Sinks   map[string]SinkSnapshot   `json:"sinks"`
	Offices map[string]OfficeSnapshot `json:"offices"`
}

var circuitStateNames = map[int64]string{0: "closed", 1: "open", 2: "half_open"}

// Snapshot produces a consistent view of the pipeline counters.
func (p *PipelineStats) Snapshot() PipelineSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := PipelineSnapshot{
		Processed:      p.Processed.Value(),
		Filtered:       counterValues(p.filtered),
		Errored:        counterValues(p.errored),
		Dropped:        counterValues(p.dropped),
		LatencyMs:      p.PipelineLatency.Summary(),
		StageLatencyMs: make(map[string]HistogramSummary, len(p.stageLatency)),
		Sinks:          make(map[string]SinkSnapshot, len(p.sinks)),
		Offices:        make(map[string]OfficeSnapshot, len(p.offices)),
	}
	for stage, h := range p.stageLatency {
		snap.StageLatencyMs[stage] = h.Summary()
	}
	for name, s := range p.sinks {
		snap.Sinks[name] = SinkSnapshot{
			Success:      s.Success.Value(),
			Failures:     s.Failures.Value(),
			CircuitState: circuitStateNames[s.CircuitState.Value()],
		}
	}
	for cccc, o := range p.offices {
		snap.Offices[cccc] = OfficeSnapshot{
			Processed:    o.processed.Value(),
			LastActivity: o.lastActivity,
		}
	}
	return snap
}

func counterValues(m map[string]*Counter) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, c := range m {
		out[k] = c.Value()
	}
	return out
}
