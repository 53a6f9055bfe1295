package stats

import (
	"sync"
	"time"
)

// ReceiverStats tracks the health of the weather-wire connection.
type ReceiverStats struct {
	MessagesReceived  Counter
	MalformedEnvelope Counter
	MalformedHeader   Counter
	SequenceGaps      Counter
	MissedMessages    Counter
	Reconnects        Counter
	AuthFailures      Counter

	Connected  Gauge
	QueueDepth Gauge

	StanzaLatency Histogram
	PingLatency   Histogram

	mu          sync.Mutex
	startedAt   time.Time
	lastMessage time.Time
}

// NewReceiverStats returns a collector anchored at the current instant.
func NewReceiverStats() *ReceiverStats {
	return &ReceiverStats{startedAt: time.Now()}
}

// MarkMessage records receipt of a valid message.
func (r *ReceiverStats) MarkMessage(at time.Time) {
	r.MessagesReceived.Inc()
	r.mu.Lock()
	r.lastMessage = at
	r.mu.Unlock()
}

// ReceiverSnapshot is the dashboard view of the receiver.
type ReceiverSnapshot struct {
	MessagesReceived  int64 `json:"messages_received_total"`
	MalformedEnvelope int64 `json:"messages_malformed_envelope"`
	MalformedHeader   int64 `json:"messages_malformed_header"`
	SequenceGaps      int64 `json:"messages_sequence_gap_total"`
	MissedMessages    int64 `json:"messages_missed_total"`
	Reconnects        int64 `json:"reconnects_total"`
	AuthFailures      int64 `json:"auth_failures_total"`

	Connected         int64   `json:"connected"`
	QueueDepth        int64   `json:"queue_depth"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	LastMessageAgeSec float64 `json:"last_message_age_seconds"`

	StanzaLatencyMs HistogramSummary `json:"stanza_to_message_latency_ms"`
	PingLatencyMs   HistogramSummary `json:"ping_latency_ms"`
}

// Snapshot produces a consistent view at the current instant.
func (r *ReceiverStats) Snapshot() ReceiverSnapshot {
	r.mu.Lock()
	started := r.startedAt
	last := r.lastMessage
	r.mu.Unlock()

	snap := ReceiverSnapshot{
		MessagesReceived:  r.MessagesReceived.Value(),
		MalformedEnvelope: r.MalformedEnvelope.Value(),
		MalformedHeader:   r.MalformedHeader.Value(),
		SequenceGaps:      r.SequenceGaps.Value(),
		MissedMessages:    r.MissedMessages.Value(),
		Reconnects:        r.Reconnects.Value(),
		AuthFailures:      r.AuthFailures.Value(),
		Connected:         r.Connected.Value(),
		QueueDepth:        r.QueueDepth.Value(),
		UptimeSeconds:     time.Since(started).Seconds(),
		StanzaLatencyMs:   r.StanzaLatency.Summary(),
		PingLatencyMs:     r.PingLatency.Summary(),
	}
	if !last.IsZero() {
		snap.LastMessageAgeSec = time.Since(last).Seconds()
	}
	return snap
}
