package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wxwire/wxwire/internal/sinks"
	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/internal/types"
)

// ErrClosed is returned by Submit after the pipeline has stopped
// accepting events.
var ErrClosed = errors.New("pipeline closed")

// Options configures one pipeline.
type Options struct {
	Name      string
	QueueSize int
	SinkQueue int
	// DropOldest sheds the oldest queued event instead of blocking the
	// submitter when the ingress queue is full.
	DropOldest bool
	Policy     Policy
	// DrainGrace bounds how long each sink gets to finish during
	// shutdown before the pipeline hard-stops it.
	DrainGrace time.Duration
	// ProcessTimeout bounds each individual sink Send. Zero means no
	// per-send deadline.
	ProcessTimeout time.Duration

	Clock  clockwork.Clock
	Logger *zap.SugaredLogger
	Stats  *stats.PipelineStats
}

// delivery pairs an event with the bookkeeping needed to observe the
// ingress-to-last-ack latency once every sink has finished with it.
type delivery struct {
	ev  types.Event
	ack *ackTracker
}

type ackTracker struct {
	remaining atomic.Int32
	start     time.Time
	done      func(time.Duration)
}

func (t *ackTracker) ack(now time.Time) {
	if t.remaining.Add(-1) == 0 && t.done != nil {
		t.done(now.Sub(t.start))
	}
}

// sinkRunner owns one sink, its bounded queue, and its breaker. A
// single worker goroutine drains the queue, so each sink observes
// events in exactly the order the pipeline fanned them out.
type sinkRunner struct {
	sink    sinks.Sink
	queue   chan delivery
	breaker *breaker
	stats   *stats.SinkStats
}

// Pipeline stages events from a bounded ingress queue through filters
// and a transform, then fans out to every sink over independent
// per-sink queues. One worker drains ingress and each sink has exactly
// one worker, so events from the same office and product type reach
// every sink in submission order.
type Pipeline struct {
	name      string
	filters   []Filter
	transform Transform
	runners   []*sinkRunner

	ingress chan types.Event
	opts    Options
	clock   clockwork.Clock
	logger  *zap.SugaredLogger
	stats   *stats.PipelineStats

	ctx    context.Context
	cancel context.CancelFunc

	failMu  sync.Mutex
	failure error

	workerWG sync.WaitGroup
	sinkWG   sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
}

// New assembles a pipeline. Filters run in the given order; a nil
// transform means identity.
func New(opts Options, filters []Filter, transform Transform, sinkList []sinks.Sink) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewPipelineStats()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if transform == nil {
		transform = IdentityTransform{}
	}
	p := &Pipeline{
		name:      opts.Name,
		filters:   filters,
		transform: transform,
		ingress:   make(chan types.Event, opts.QueueSize),
		opts:      opts,
		clock:     opts.Clock,
		logger:    opts.Logger.Named("pipeline").With("pipeline", opts.Name),
		stats:     opts.Stats,
	}
	for _, s := range sinkList {
		p.runners = append(p.runners, &sinkRunner{
			sink:    s,
			queue:   make(chan delivery, opts.SinkQueue),
			breaker: newBreaker(opts.Policy.BreakerThreshold, opts.Policy.BreakerTimeout, opts.Clock),
			stats:   opts.Stats.Sink(s.Name()),
		})
	}
	return p
}

// Start launches the ingress worker and one worker per sink.
func (p *Pipeline) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.workerWG.Add(1)
	go func() {
		defer p.workerWG.Done()
		p.runIngress()
	}()

	for _, r := range p.runners {
		r := r
		p.sinkWG.Add(1)
		go func() {
			defer p.sinkWG.Done()
			p.runSink(r)
		}()
	}
}

// Submit delivers an event to the ingress queue. A full queue blocks
// the caller until space frees, which is the backpressure the receiver
// relies on; with DropOldest the oldest queued event is shed instead.
// Callers must not Submit concurrently with Stop.
func (p *Pipeline) Submit(ctx context.Context, ev types.Event) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if p.opts.DropOldest {
		for {
			select {
			case p.ingress <- ev:
				return nil
			default:
			}
			select {
			case <-p.ingress:
				p.stats.MarkDropped("ingress")
			default:
			}
		}
	}
	select {
	case p.ingress <- ev:
		return nil
	case <-p.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports the current ingress queue occupancy.
func (p *Pipeline) Depth() int { return len(p.ingress) }

// Err reports the failure that stopped the pipeline under the
// fail_fast strategy, if any.
func (p *Pipeline) Err() error {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	return p.failure
}

// Stop drains the pipeline: ingress stops accepting, queued events
// flush through filters and transform, and each sink gets the
// configured grace period to finish before a hard stop. The event
// producer must have stopped submitting before Stop is called.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.closed.Store(true)
	p.closeOnce.Do(func() { close(p.ingress) })
	p.workerWG.Wait()
	for _, r := range p.runners {
		close(r.queue)
	}

	drained := make(chan struct{})
	go func() {
		p.sinkWG.Wait()
		close(drained)
	}()

	grace := p.opts.DrainGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	timer := p.clock.NewTimer(grace)
	defer timer.Stop()

	var err error
	select {
	case <-drained:
	case <-timer.Chan():
		p.logger.Warnw("drain grace expired, hard-stopping sinks", "grace", grace)
		p.cancel()
		<-drained
		err = context.DeadlineExceeded
	case <-ctx.Done():
		p.cancel()
		<-drained
		err = ctx.Err()
	}

	for _, r := range p.runners {
		if cerr := r.sink.Close(ctx); cerr != nil {
			p.logger.Errorw("sink close failed", "sink", r.sink.Name(), "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}
	p.cancel()
	return err
}

func (p *Pipeline) runIngress() {
	for {
		select {
		case ev, ok := <-p.ingress:
			if !ok {
				return
			}
			p.process(ev)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pipeline) process(ev types.Event) {
	start := p.clock.Now()

	for _, f := range p.filters {
		ok, reason := f.Allow(ev)
		if !ok {
			p.stats.MarkFiltered(reason)
			p.logger.Debugw("event filtered", "filter", f.Name(), "reason", reason)
			return
		}
	}
	p.stats.StageLatency("filter").ObserveDuration(p.clock.Since(start))

	transformStart := p.clock.Now()
	out, err := p.transform.Apply(ev)
	if err != nil {
		p.stats.MarkErrored("transform")
		p.logger.Errorw("transform failed", "transform", p.transform.Name(), "error", err)
		if p.opts.Policy.Strategy == StrategyFailFast {
			p.failWith(fmt.Errorf("transform %s: %w", p.transform.Name(), err))
		}
		return
	}
	p.stats.StageLatency("transform").ObserveDuration(p.clock.Since(transformStart))

	if we, ok := out.(*types.WeatherEvent); ok {
		p.stats.MarkOffice(we.Cccc, we.ReceivedAt)
	}

	tracker := &ackTracker{start: start, done: p.stats.PipelineLatency.ObserveDuration}
	tracker.remaining.Store(int32(len(p.runners)))
	d := delivery{ev: out, ack: tracker}

	for _, r := range p.runners {
		select {
		case r.queue <- d:
		case <-p.ctx.Done():
			p.stats.MarkDropped(r.sink.Name())
			tracker.ack(p.clock.Now())
		}
	}
	p.stats.Processed.Inc()
}

func (p *Pipeline) runSink(r *sinkRunner) {
	for d := range r.queue {
		p.deliver(r, d.ev)
		d.ack.ack(p.clock.Now())
	}
}

// deliver pushes one event into a sink under the pipeline's error
// strategy.
func (p *Pipeline) deliver(r *sinkRunner, ev types.Event) {
	pol := p.opts.Policy
	name := r.sink.Name()

	if pol.Strategy == StrategyCircuitBreaker && !r.breaker.allow() {
		r.stats.CircuitState.Set(r.breaker.state)
		p.stats.MarkDropped(name)
		return
	}

	sendStart := p.clock.Now()
	res := p.send(r, ev)
	p.stats.StageLatency("sink:"+name).ObserveDuration(p.clock.Since(sendStart))

	if res.Status == sinks.Transient && pol.Strategy == StrategyRetry {
		res = p.resend(r, ev, res)
	}

	if res.Status == sinks.OK {
		r.stats.Success.Inc()
		if pol.Strategy == StrategyCircuitBreaker {
			r.breaker.onSuccess()
			r.stats.CircuitState.Set(r.breaker.state)
		}
		return
	}

	r.stats.Failures.Inc()
	p.stats.MarkErrored("sink:" + name)
	p.logger.Errorw("sink send failed",
		"sink", name,
		"terminal", res.Status == sinks.Terminal,
		"error", res.Err)

	switch pol.Strategy {
	case StrategyFailFast:
		p.failWith(fmt.Errorf("sink %s: %w", name, res.Err))
	case StrategyCircuitBreaker:
		r.breaker.onFailure()
		r.stats.CircuitState.Set(r.breaker.state)
	}
}

// send invokes the sink with the configured per-send deadline applied,
// so one hung sink cannot stall its worker indefinitely.
func (p *Pipeline) send(r *sinkRunner, ev types.Event) sinks.Result {
	if p.opts.ProcessTimeout <= 0 {
		return r.sink.Send(p.ctx, ev)
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.ProcessTimeout)
	defer cancel()
	return r.sink.Send(ctx, ev)
}

// resend retries a transient failure with exponential backoff. Terminal
// results and cancellation end the attempts early.
func (p *Pipeline) resend(r *sinkRunner, ev types.Event, last sinks.Result) sinks.Result {
	for attempt := 0; attempt < p.opts.Policy.MaxAttempts; attempt++ {
		timer := p.clock.NewTimer(p.opts.Policy.retryDelay(attempt))
		select {
		case <-timer.Chan():
		case <-p.ctx.Done():
			timer.Stop()
			return last
		}
		last = p.send(r, ev)
		if last.Status != sinks.Transient {
			return last
		}
		p.logger.Warnw("sink retry failed",
			"sink", r.sink.Name(),
			"attempt", attempt+1,
			"error", last.Err)
	}
	return last
}

// failWith records the first fatal error and stops accepting events.
// The ingress channel is left open; the worker exits through context
// cancellation so a concurrent Submit never hits a closed channel.
func (p *Pipeline) failWith(err error) {
	p.failMu.Lock()
	if p.failure == nil {
		p.failure = err
	}
	p.failMu.Unlock()
	p.closed.Store(true)
	p.cancel()
}
