package pipeline

import (
	"fmt"

	"github.com/wxwire/wxwire/internal/types"
)

// Transform converts one event into another. Transforms are pure; a
// returned error aborts the event per the pipeline's error policy.
type Transform interface {
	Name() string
	Apply(ev types.Event) (types.Event, error)
}

// IdentityTransform passes events through unchanged.
type IdentityTransform struct{}

func (IdentityTransform) Name() string { return "identity" }

func (IdentityTransform) Apply(ev types.Event) (types.Event, error) { return ev, nil }

// AttributeMapper remaps named fields into a RecordEvent using a
// source-field to target-key mapping.
type AttributeMapper struct {
	// Mapping is target key -> source field name.
	Mapping map[string]string
}

func (m *AttributeMapper) Name() string { return "attribute_mapper" }

func (m *AttributeMapper) Apply(ev types.Event) (types.Event, error) {
	out := &types.RecordEvent{Fields: make(map[string]interface{}, len(m.Mapping))}
	for target, source := range m.Mapping {
		v, ok := fieldValue(ev, source)
		if !ok {
			return nil, fmt.Errorf("attribute mapper: event has no field %q", source)
		}
		out.Fields[target] = v
	}
	return out, nil
}

// PropertyTransform applies a function to one named field of a
// RecordEvent. Weather events are immutable, so a property transform
// over one requires an AttributeMapper earlier in the chain.
type PropertyTransform struct {
	Field string
	Fn    func(interface{}) (interface{}, error)
}

func (t *PropertyTransform) Name() string { return "property:" + t.Field }

func (t *PropertyTransform) Apply(ev types.Event) (types.Event, error) {
	rec, ok := ev.(*types.RecordEvent)
	if !ok {
		return nil, fmt.Errorf("property transform %s: want record event, got %s", t.Field, ev.EventKind())
	}
	v, ok := rec.Fields[t.Field]
	if !ok {
		return nil, fmt.Errorf("property transform: record has no field %q", t.Field)
	}
	nv, err := t.Fn(v)
	if err != nil {
		return nil, fmt.Errorf("property transform %s: %w", t.Field, err)
	}
	out := &types.RecordEvent{Fields: make(map[string]interface{}, len(rec.Fields))}
	for k, val := range rec.Fields {
		out.Fields[k] = val
	}
	out.Fields[t.Field] = nv
	return out, nil
}

// ChainTransform composes transforms left to right.
type ChainTransform struct {
	Steps []Transform
}

func (c *ChainTransform) Name() string { return "chain" }

func (c *ChainTransform) Apply(ev types.Event) (types.Event, error) {
	var err error
	for _, step := range c.Steps {
		ev, err = step.Apply(ev)
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}
