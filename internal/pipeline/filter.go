// Package pipeline stages parsed weather events from a bounded ingress
// queue through filters and a transform, then fans them out to sinks
// over independent per-sink queues.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wxwire/wxwire/internal/types"
)

// Filter decides whether an event continues down the pipeline. A reject
// carries a reason used for the filtered-event counters.
type Filter interface {
	Name() string
	Allow(ev types.Event) (ok bool, reason string)
}

// fieldValue resolves a named field on an event variant. RecordEvent
// fields resolve by map key; the other variants expose their snake_case
// field names.
func fieldValue(ev types.Event, name string) (interface{}, bool) {
	switch e := ev.(type) {
	case *types.WeatherEvent:
		switch name {
		case "event_id":
			return e.EventID, true
		case "product_id":
			return e.ProductID, true
		case "wmo":
			return e.WMO, true
		case "cccc":
			return e.Cccc, true
		case "awips_id":
			return e.AwipsID, true
		case "product_category":
			return e.ProductCategory, true
		case "issued_at":
			return e.IssuedAt, true
		case "received_at":
			return e.ReceivedAt, true
		case "text":
			return e.Text, true
		case "fingerprint":
			return e.Fingerprint, true
		}
	case *types.ControlEvent:
		if name == "op" {
			return e.Op, true
		}
	case *types.ErrorEvent:
		switch name {
		case "stage":
			return e.Stage, true
		case "detail":
			return e.Detail, true
		}
	case *types.RecordEvent:
		v, ok := e.Fields[name]
		return v, ok
	}
	return nil, false
}

// AttributeFilter passes events whose named field equals one of the
// allowed values. An event lacking the field is rejected.
type AttributeFilter struct {
	Field   string
	Allowed []string
}

func (f *AttributeFilter) Name() string { return "attribute:" + f.Field }

func (f *AttributeFilter) Allow(ev types.Event) (bool, string) {
	v, ok := fieldValue(ev, f.Field)
	if !ok {
		return false, "missing_field:" + f.Field
	}
	s := fmt.Sprintf("%v", v)
	for _, want := range f.Allowed {
		if s == want {
			return true, ""
		}
	}
	return false, "attribute:" + f.Field
}

// RegexFilter passes events whose named string field matches the
// pattern.
type RegexFilter struct {
	Field   string
	Pattern *regexp.Regexp
}

// NewRegexFilter compiles pattern against the named field.
func NewRegexFilter(field, pattern string) (*RegexFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex filter on %s: %w", field, err)
	}
	return &RegexFilter{Field: field, Pattern: re}, nil
}

func (f *RegexFilter) Name() string { return "regex:" + f.Field }

func (f *RegexFilter) Allow(ev types.Event) (bool, string) {
	v, ok := fieldValue(ev, f.Field)
	if !ok {
		return false, "missing_field:" + f.Field
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	if f.Pattern.MatchString(s) {
		return true, ""
	}
	return false, "regex:" + f.Field
}

// FuncFilter wraps a caller-supplied predicate.
type FuncFilter struct {
	FilterName string
	Fn         func(types.Event) bool
}

func (f *FuncFilter) Name() string { return f.FilterName }

func (f *FuncFilter) Allow(ev types.Event) (bool, string) {
	if f.Fn(ev) {
		return true, ""
	}
	return false, f.FilterName
}

// CompositeOp selects how a composite combines its children.
type CompositeOp int

const (
	CompositeAnd CompositeOp = iota
	CompositeOr
	CompositeNot
)

// CompositeFilter combines child filters with AND, OR, or NOT. NOT uses
// only the first child.
type CompositeFilter struct {
	Op       CompositeOp
	Children []Filter
}

func (f *CompositeFilter) Name() string {
	names := make([]string, len(f.Children))
	for i, c := range f.Children {
		names[i] = c.Name()
	}
	switch f.Op {
	case CompositeOr:
		return "or(" + strings.Join(names, ",") + ")"
	case CompositeNot:
		return "not(" + strings.Join(names, ",") + ")"
	default:
		return "and(" + strings.Join(names, ",") + ")"
	}
}

func (f *CompositeFilter) Allow(ev types.Event) (bool, string) {
	switch f.Op {
	case CompositeOr:
		for _, c := range f.Children {
			if ok, _ := c.Allow(ev); ok {
				return true, ""
			}
		}
		return false, f.Name()
	case CompositeNot:
		if len(f.Children) == 0 {
			return true, ""
		}
		if ok, _ := f.Children[0].Allow(ev); ok {
			return false, f.Name()
		}
		return true, ""
	default:
		for _, c := range f.Children {
			if ok, reason := c.Allow(ev); !ok {
				return false, reason
			}
		}
		return true, ""
	}
}
