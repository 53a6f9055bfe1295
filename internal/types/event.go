package types

import "time"

// EventKind tags the variants that flow through a pipeline.
type EventKind int

const (
	KindWeather EventKind = iota
	KindControl
	KindError
	KindRecord
)

func (k EventKind) String() string {
	switch k {
	case KindWeather:
		return "weather"
	case KindControl:
		return "control"
	case KindError:
		return "error"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Event is the tagged union of everything a pipeline can carry. Filters
// and transforms switch over the concrete variants.
type Event interface {
	EventKind() EventKind
}

// EventKind marks WeatherEvent as the weather variant.
func (e *WeatherEvent) EventKind() EventKind { return KindWeather }

// ControlEvent signals a lifecycle operation through the pipeline.
type ControlEvent struct {
	Op string
	At time.Time
}

func (e *ControlEvent) EventKind() EventKind { return KindControl }

// ErrorEvent carries a stage failure as data.
type ErrorEvent struct {
	Stage  string
	Detail string
	At     time.Time
}

func (e *ErrorEvent) EventKind() EventKind { return KindError }

// RecordEvent is a schema-mapped event produced by the attribute-mapper
// transform when a sink wants a shape other than WeatherEvent.
type RecordEvent struct {
	Fields map[string]interface{}
}

func (e *RecordEvent) EventKind() EventKind { return KindRecord }
