package pipeline

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wxwire/wxwire/pkg/config"
)

// Strategy selects how a pipeline responds to sink errors.
type Strategy string

const (
	StrategyFailFast       Strategy = "fail_fast"
	StrategyContinue       Strategy = "continue"
	StrategyRetry          Strategy = "retry"
	StrategyCircuitBreaker Strategy = "circuit_breaker"
)

// Policy is the per-pipeline error-handling configuration.
type Policy struct {
	Strategy Strategy

	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// PolicyFromConfig maps the pipeline config group onto a Policy.
func PolicyFromConfig(p config.PipelineData) Policy {
	return Policy{
		Strategy:          Strategy(p.ErrorHandlingStrategy),
		MaxAttempts:       p.MaxRetries,
		BaseDelay:         secondsToDuration(p.RetryDelaySeconds),
		MaxDelay:          secondsToDuration(p.MaxRetryDelaySeconds),
		BackoffMultiplier: p.BackoffMultiplier,
		BreakerThreshold:  p.CircuitBreakerThreshold,
		BreakerTimeout:    secondsToDuration(p.CircuitBreakerTimeoutSeconds),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// retryDelay computes the backoff before retry attempt n (0-based),
// capped at MaxDelay.
func (p Policy) retryDelay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffMultiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Breaker states. The numeric values feed the sink_circuit_state gauge.
const (
	breakerClosed   int64 = 0
	breakerOpen     int64 = 1
	breakerHalfOpen int64 = 2
)

// breaker is a per-sink circuit breaker. Only the sink's worker
// goroutine touches it, so no locking is needed; the gauge it mirrors
// into is what concurrent readers observe.
type breaker struct {
	threshold int
	timeout   time.Duration
	clock     clockwork.Clock

	state       int64
	consecutive int
	openedAt    time.Time
}

func newBreaker(threshold int, timeout time.Duration, clock clockwork.Clock) *breaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &breaker{threshold: threshold, timeout: timeout, clock: clock}
}

// allow reports whether a send may proceed. While open, sends are shed
// until the timeout elapses; the first send after that is the half-open
// probe.
func (b *breaker) allow() bool {
	switch b.state {
	case breakerOpen:
		if b.clock.Since(b.openedAt) >= b.timeout {
			b.state = breakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) onSuccess() {
	b.consecutive = 0
	b.state = breakerClosed
}

func (b *breaker) onFailure() {
	b.consecutive++
	if b.state == breakerHalfOpen || b.consecutive >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.clock.Now()
	}
}
