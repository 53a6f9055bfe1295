// Package mqtt publishes weather events to an MQTT broker, one topic
// per product, with optional retained-message expiry.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wxwire/wxwire/internal/sinks"
	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/internal/types"
	"github.com/wxwire/wxwire/pkg/config"
)

// maxPayloadBytes bounds a single publish. Brokers commonly reject
// larger payloads at the protocol level, so oversized events are
// terminal rather than retried.
const maxPayloadBytes = 256 * 1024

// connectPollInterval paces the worker's connectivity checks while the
// broker is unreachable.
const connectPollInterval = 500 * time.Millisecond

// Sink publishes events to an MQTT broker. Send enqueues onto an
// internal bounded buffer; the sink's own worker performs the broker
// I/O so a slow broker never blocks the pipeline's sink worker.
type Sink struct {
	client pahomqtt.Client
	cfg    config.MQTTData
	clock  clockwork.Clock
	logger *zap.SugaredLogger

	// stats shares the pipeline's per-sink counters so asynchronous
	// publish failures and abandoned queue entries surface in
	// sink_failures_total and events_dropped_total.
	stats *stats.PipelineStats

	pending chan *types.WeatherEvent
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	// retained topics awaiting expiry, by publish time
	retainedMu sync.Mutex
	retained   map[string]time.Time

	closed sync.Once
}

// New connects to the broker and starts the publish worker and, when
// retained expiry is configured, the expiry sweeper.
func New(cfg config.MQTTData, clock clockwork.Clock, st *stats.PipelineStats, logger *zap.SugaredLogger) (*Sink, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if st == nil {
		st = stats.NewPipelineStats()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Sink{
		cfg:      cfg,
		clock:    clock,
		logger:   logger.Named("mqtt"),
		stats:    st,
		pending:  make(chan *types.WeatherEvent, cfg.MaxQueueSize),
		retained: make(map[string]time.Time),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		s.logger.Infow("connected to broker", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.logger.Warnw("broker connection lost", "error", err)
	})

	s.client = pahomqtt.NewClient(opts)
	token := s.client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPublisher(ctx)
	}()

	if cfg.Retain && cfg.MessageExpiryMinutes > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runSweeper(ctx)
		}()
	}
	return s, nil
}

func (s *Sink) Name() string { return "mqtt" }

// Pending reports how many events await publish.
func (s *Sink) Pending() int { return len(s.pending) }

// Send enqueues a weather event for publish. Non-weather variants are
// ignored. A full buffer is a transient failure.
func (s *Sink) Send(_ context.Context, ev types.Event) sinks.Result {
	we, ok := ev.(*types.WeatherEvent)
	if !ok {
		return sinks.Ok()
	}
	select {
	case s.pending <- we:
		return sinks.Ok()
	default:
		return sinks.TransientErr(errors.New("mqtt publish buffer full"))
	}
}

// Close stops the worker and disconnects. Events still queued at that
// point are abandoned, each counted as dropped.
func (s *Sink) Close(ctx context.Context) error {
	s.closed.Do(func() {
		s.cancel()
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		s.client.Disconnect(250)
		s.drainAbandoned()
	})
	return nil
}

// drainAbandoned empties the pending buffer after the worker has
// stopped, counting every undelivered event.
func (s *Sink) drainAbandoned() {
	for {
		select {
		case we := <-s.pending:
			s.stats.MarkDropped(s.Name())
			s.logger.Warnw("abandoning queued event on close", "product_id", we.ProductID)
		default:
			return
		}
	}
}

// runPublisher drains the pending buffer in FIFO order, waiting out
// broker outages so nothing is reordered or lost while disconnected.
func (s *Sink) runPublisher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case we := <-s.pending:
			if !s.waitConnected(ctx) {
				return
			}
			if err := s.publish(we); err != nil {
				s.recordPublishFailure(we, err)
			}
		}
	}
}

// recordPublishFailure counts a failed broker publish against the
// sink's failure totals.
func (s *Sink) recordPublishFailure(we *types.WeatherEvent, err error) {
	s.stats.Sink(s.Name()).Failures.Inc()
	s.logger.Errorw("publish failed",
		"topic", s.Topic(we),
		"product_id", we.ProductID,
		"error", err)
}

func (s *Sink) waitConnected(ctx context.Context) bool {
	for !s.client.IsConnectionOpen() {
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(connectPollInterval):
		}
	}
	return true
}

func (s *Sink) publish(we *types.WeatherEvent) error {
	payload, err := json.Marshal(we)
	if err != nil {
		return err
	}
	if len(payload) > maxPayloadBytes {
		return fmt.Errorf("payload %d bytes exceeds %d limit", len(payload), maxPayloadBytes)
	}

	topic := s.Topic(we)
	token := s.client.Publish(topic, s.cfg.QoS, s.cfg.Retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	if s.cfg.Retain && s.cfg.MessageExpiryMinutes > 0 {
		s.retainedMu.Lock()
		s.retained[topic] = s.clock.Now()
		s.retainedMu.Unlock()
	}
	return nil
}

// Topic builds the publish topic for an event:
// {prefix}/{cccc}/{awips_id}/{product_id}, each component sanitized.
func (s *Sink) Topic(we *types.WeatherEvent) string {
	parts := []string{
		sanitizeTopicPart(s.cfg.TopicPrefix),
		sanitizeTopicPart(we.Cccc),
		sanitizeTopicPart(we.AwipsID),
		sanitizeTopicPart(we.ProductID),
	}
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			joined = append(joined, p)
		}
	}
	return strings.Join(joined, "/")
}

// sanitizeTopicPart replaces the MQTT wildcard and separator characters
// and whitespace with underscores.
func sanitizeTopicPart(p string) string {
	p = strings.Trim(p, "/")
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, p)
}

// runSweeper clears stale retained messages by republishing a
// zero-length retained payload once a topic's expiry window passes.
func (s *Sink) runSweeper(ctx context.Context) {
	expiry := time.Duration(s.cfg.MessageExpiryMinutes) * time.Minute
	ticker := s.clock.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweepRetained(expiry)
		}
	}
}

func (s *Sink) sweepRetained(expiry time.Duration) {
	now := s.clock.Now()

	s.retainedMu.Lock()
	var stale []string
	for topic, at := range s.retained {
		if now.Sub(at) >= expiry {
			stale = append(stale, topic)
			delete(s.retained, topic)
		}
	}
	s.retainedMu.Unlock()

	for _, topic := range stale {
		token := s.client.Publish(topic, s.cfg.QoS, true, []byte{})
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Warnw("retained expiry clear failed", "topic", topic, "error", err)
			continue
		}
		s.logger.Debugw("cleared expired retained message", "topic", topic)
	}
}
