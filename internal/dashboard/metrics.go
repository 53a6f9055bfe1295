package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wxwire/wxwire/internal/stats"
)

// statsCollector bridges the snapshot registries into Prometheus
// exposition without double-counting state: every scrape reads a fresh
// snapshot and emits const metrics.
type statsCollector struct {
	receiver *stats.ReceiverStats
	pipeline *stats.PipelineStats
	cleanup  *stats.CleanupStats

	msgsReceived  *prometheus.Desc
	malformedEnv  *prometheus.Desc
	malformedHdr  *prometheus.Desc
	sequenceGaps  *prometheus.Desc
	missed        *prometheus.Desc
	reconnects    *prometheus.Desc
	authFailures  *prometheus.Desc
	connected     *prometheus.Desc
	queueDepth    *prometheus.Desc
	processed     *prometheus.Desc
	filtered      *prometheus.Desc
	errored       *prometheus.Desc
	dropped       *prometheus.Desc
	sinkSuccess   *prometheus.Desc
	sinkFailures  *prometheus.Desc
	circuitState  *prometheus.Desc
	officeTotal   *prometheus.Desc
	cleanupCycles *prometheus.Desc
	deleted       *prometheus.Desc
}

func newStatsCollector(r *stats.ReceiverStats, p *stats.PipelineStats, c *stats.CleanupStats) *statsCollector {
	return &statsCollector{
		receiver: r,
		pipeline: p,
		cleanup:  c,

		msgsReceived:  prometheus.NewDesc("wxwire_messages_received_total", "Valid wire messages received.", nil, nil),
		malformedEnv:  prometheus.NewDesc("wxwire_messages_malformed_envelope_total", "Stanzas missing the product envelope.", nil, nil),
		malformedHdr:  prometheus.NewDesc("wxwire_messages_malformed_header_total", "Envelopes with invalid header attributes.", nil, nil),
		sequenceGaps:  prometheus.NewDesc("wxwire_messages_sequence_gap_total", "Sequence gaps observed on the feed.", nil, nil),
		missed:        prometheus.NewDesc("wxwire_messages_missed_total", "Products missed across sequence gaps.", nil, nil),
		reconnects:    prometheus.NewDesc("wxwire_reconnects_total", "Feed reconnections.", nil, nil),
		authFailures:  prometheus.NewDesc("wxwire_auth_failures_total", "Feed authentication failures.", nil, nil),
		connected:     prometheus.NewDesc("wxwire_connected", "Whether the feed connection is up.", nil, nil),
		queueDepth:    prometheus.NewDesc("wxwire_receiver_queue_depth", "Wire messages awaiting pipeline submission.", nil, nil),
		processed:     prometheus.NewDesc("wxwire_events_processed_total", "Events through the pipeline.", nil, nil),
		filtered:      prometheus.NewDesc("wxwire_events_filtered_total", "Events rejected by filters.", []string{"reason"}, nil),
		errored:       prometheus.NewDesc("wxwire_events_errored_total", "Stage errors.", []string{"stage"}, nil),
		dropped:       prometheus.NewDesc("wxwire_events_dropped_total", "Events shed at a sink.", []string{"sink"}, nil),
		sinkSuccess:   prometheus.NewDesc("wxwire_sink_success_total", "Successful sink deliveries.", []string{"sink"}, nil),
		sinkFailures:  prometheus.NewDesc("wxwire_sink_failures_total", "Failed sink deliveries.", []string{"sink"}, nil),
		circuitState:  prometheus.NewDesc("wxwire_sink_circuit_open", "Whether the sink breaker is open.", []string{"sink"}, nil),
		officeTotal:   prometheus.NewDesc("wxwire_office_messages_processed_total", "Events processed per issuing office.", []string{"cccc"}, nil),
		cleanupCycles: prometheus.NewDesc("wxwire_cleanup_cycles_total", "Completed retention cleanup cycles.", nil, nil),
		deleted:       prometheus.NewDesc("wxwire_events_deleted_total", "Rows removed by cleanup.", []string{"strategy"}, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	counter := prometheus.CounterValue
	gauge := prometheus.GaugeValue

	if c.receiver != nil {
		r := c.receiver.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.msgsReceived, counter, float64(r.MessagesReceived))
		ch <- prometheus.MustNewConstMetric(c.malformedEnv, counter, float64(r.MalformedEnvelope))
		ch <- prometheus.MustNewConstMetric(c.malformedHdr, counter, float64(r.MalformedHeader))
		ch <- prometheus.MustNewConstMetric(c.sequenceGaps, counter, float64(r.SequenceGaps))
		ch <- prometheus.MustNewConstMetric(c.missed, counter, float64(r.MissedMessages))
		ch <- prometheus.MustNewConstMetric(c.reconnects, counter, float64(r.Reconnects))
		ch <- prometheus.MustNewConstMetric(c.authFailures, counter, float64(r.AuthFailures))
		ch <- prometheus.MustNewConstMetric(c.connected, gauge, float64(r.Connected))
		ch <- prometheus.MustNewConstMetric(c.queueDepth, gauge, float64(r.QueueDepth))
	}

	if c.pipeline != nil {
		p := c.pipeline.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.processed, counter, float64(p.Processed))
		for reason, n := range p.Filtered {
			ch <- prometheus.MustNewConstMetric(c.filtered, counter, float64(n), reason)
		}
		for stage, n := range p.Errored {
			ch <- prometheus.MustNewConstMetric(c.errored, counter, float64(n), stage)
		}
		for sink, n := range p.Dropped {
			ch <- prometheus.MustNewConstMetric(c.dropped, counter, float64(n), sink)
		}
		for name, s := range p.Sinks {
			ch <- prometheus.MustNewConstMetric(c.sinkSuccess, counter, float64(s.Success), name)
			ch <- prometheus.MustNewConstMetric(c.sinkFailures, counter, float64(s.Failures), name)
			open := 0.0
			if s.CircuitState == "open" {
				open = 1.0
			}
			ch <- prometheus.MustNewConstMetric(c.circuitState, gauge, open, name)
		}
		for cccc, o := range p.Offices {
			ch <- prometheus.MustNewConstMetric(c.officeTotal, counter, float64(o.Processed), cccc)
		}
	}

	if c.cleanup != nil {
		cl := c.cleanup.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.cleanupCycles, counter, float64(cl.Cycles))
		for strategy, n := range cl.Deleted {
			ch <- prometheus.MustNewConstMetric(c.deleted, counter, float64(n), strategy)
		}
	}
}
