package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wxwire/wxwire/internal/types"
)

func TestAttributeMapper(t *testing.T) {
	m := &AttributeMapper{Mapping: map[string]string{
		"office":   "cccc",
		"product":  "awips_id",
		"category": "product_category",
	}}

	out, err := m.Apply(warningEvent("KTOP", "TORTOP"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rec, ok := out.(*types.RecordEvent)
	if !ok {
		t.Fatalf("output type = %T, want *types.RecordEvent", out)
	}
	if rec.Fields["office"] != "KTOP" || rec.Fields["product"] != "TORTOP" || rec.Fields["category"] != "TOR" {
		t.Errorf("Fields = %v", rec.Fields)
	}
}

func TestAttributeMapperMissingSource(t *testing.T) {
	m := &AttributeMapper{Mapping: map[string]string{"x": "no_such_field"}}
	if _, err := m.Apply(warningEvent("KTOP", "TORTOP")); err == nil {
		t.Error("missing source field should error")
	}
}

func TestPropertyTransform(t *testing.T) {
	lower := &PropertyTransform{
		Field: "office",
		Fn: func(v interface{}) (interface{}, error) {
			return strings.ToLower(v.(string)), nil
		},
	}

	in := &types.RecordEvent{Fields: map[string]interface{}{"office": "KTOP", "keep": 7}}
	out, err := lower.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rec := out.(*types.RecordEvent)
	if rec.Fields["office"] != "ktop" {
		t.Errorf("office = %v", rec.Fields["office"])
	}
	if rec.Fields["keep"] != 7 {
		t.Errorf("untouched field changed: %v", rec.Fields["keep"])
	}
	// Input record must not be mutated.
	if in.Fields["office"] != "KTOP" {
		t.Error("input record mutated")
	}

	if _, err := lower.Apply(warningEvent("KTOP", "TORTOP")); err == nil {
		t.Error("weather events are immutable; property transform must refuse them")
	}
	if _, err := lower.Apply(&types.RecordEvent{Fields: map[string]interface{}{}}); err == nil {
		t.Error("missing field should error")
	}
}

func TestPropertyTransformFnError(t *testing.T) {
	boom := &PropertyTransform{
		Field: "office",
		Fn: func(v interface{}) (interface{}, error) {
			return nil, fmt.Errorf("bad value %v", v)
		},
	}
	in := &types.RecordEvent{Fields: map[string]interface{}{"office": "KTOP"}}
	if _, err := boom.Apply(in); err == nil {
		t.Error("fn error should propagate")
	}
}

func TestChainTransform(t *testing.T) {
	chain := &ChainTransform{Steps: []Transform{
		&AttributeMapper{Mapping: map[string]string{"office": "cccc"}},
		&PropertyTransform{
			Field: "office",
			Fn: func(v interface{}) (interface{}, error) {
				return strings.ToLower(v.(string)), nil
			},
		},
	}}

	out, err := chain.Apply(warningEvent("KTOP", "TORTOP"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rec := out.(*types.RecordEvent)
	if rec.Fields["office"] != "ktop" {
		t.Errorf("office = %v", rec.Fields["office"])
	}
}

func TestIdentityTransform(t *testing.T) {
	ev := warningEvent("KTOP", "TORTOP")
	out, err := IdentityTransform{}.Apply(ev)
	if err != nil {
		t.Fatal(err)
	}
	if out != types.Event(ev) {
		t.Error("identity should return the same event")
	}
}
