// Package console writes each event as a JSON line to standard output,
// mainly for development and for piping the feed into other tools.
package console

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wxwire/wxwire/internal/sinks"
	"github.com/wxwire/wxwire/internal/types"
)

// Sink emits one JSON document per event.
type Sink struct {
	mu     sync.Mutex
	out    io.Writer
	pretty bool
	logger *zap.SugaredLogger
}

// New returns a console sink writing to stdout.
func New(pretty bool, logger *zap.SugaredLogger) *Sink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sink{out: os.Stdout, pretty: pretty, logger: logger.Named("console")}
}

// NewWriter returns a console sink writing to w.
func NewWriter(w io.Writer, pretty bool, logger *zap.SugaredLogger) *Sink {
	s := New(pretty, logger)
	s.out = w
	return s
}

func (s *Sink) Name() string { return "console" }

// Send encodes the event as JSON. Encoding failures are terminal for
// the event; write failures are transient.
func (s *Sink) Send(_ context.Context, ev types.Event) sinks.Result {
	doc := consoleDoc(ev)

	var (
		buf []byte
		err error
	)
	if s.pretty {
		buf, err = json.MarshalIndent(doc, "", "  ")
	} else {
		buf, err = json.Marshal(doc)
	}
	if err != nil {
		return sinks.TerminalErr(err)
	}
	buf = append(buf, '\n')

	s.mu.Lock()
	_, err = s.out.Write(buf)
	s.mu.Unlock()
	if err != nil {
		return sinks.TransientErr(err)
	}
	return sinks.Ok()
}

func (s *Sink) Close(context.Context) error { return nil }

// consoleDoc shapes each event variant for output. Weather events go
// out whole; the other variants get a small wrapper naming their kind.
func consoleDoc(ev types.Event) interface{} {
	switch e := ev.(type) {
	case *types.WeatherEvent:
		return e
	case *types.RecordEvent:
		return e.Fields
	case *types.ControlEvent:
		return map[string]interface{}{"kind": "control", "op": e.Op, "at": e.At}
	case *types.ErrorEvent:
		return map[string]interface{}{"kind": "error", "stage": e.Stage, "detail": e.Detail, "at": e.At}
	default:
		return map[string]interface{}{"kind": ev.EventKind().String()}
	}
}
