// Package sinks defines the contract every terminal event consumer
// implements, and the result values the pipeline's error policy
// dispatches on.
package sinks

import (
	"context"

	"github.com/wxwire/wxwire/internal/types"
)

// Status classifies the outcome of one send.
type Status int

const (
	// OK means the sink accepted the event.
	OK Status = iota
	// Transient means the send failed but may succeed on retry.
	Transient
	// Terminal means the event can never be delivered to this sink.
	Terminal
)

// Result is the outcome of one send. Err is nil when Status is OK.
type Result struct {
	Status Status
	Err    error
}

// Ok is the successful result.
func Ok() Result { return Result{Status: OK} }

// TransientErr wraps a retryable failure.
func TransientErr(err error) Result { return Result{Status: Transient, Err: err} }

// TerminalErr wraps a permanent failure.
func TerminalErr(err error) Result { return Result{Status: Terminal, Err: err} }

// Sink is a terminal consumer of pipeline events. Send must honor the
// context deadline; the pipeline's per-sink worker is the only caller,
// so implementations need not be reentrant.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev types.Event) Result
	Close(ctx context.Context) error
}
