package pipeline

import (
	"testing"
	"time"

	"github.com/wxwire/wxwire/internal/types"
)

func warningEvent(cccc, awipsID string) *types.WeatherEvent {
	issued := time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC)
	return &types.WeatherEvent{
		EventID:         "ev-" + cccc + "-" + awipsID,
		ProductID:       types.MakeProductID(cccc, awipsID, issued),
		AwipsID:         awipsID,
		Cccc:            cccc,
		ProductCategory: awipsID[:3],
		IssuedAt:        issued,
		ReceivedAt:      issued.Add(2 * time.Second),
		Text:            "test product body",
		Fingerprint:     types.Fingerprint(cccc, awipsID, issued, "test product body"),
	}
}

func TestAttributeFilter(t *testing.T) {
	f := &AttributeFilter{Field: "cccc", Allowed: []string{"KTOP", "KDMX"}}

	if ok, _ := f.Allow(warningEvent("KTOP", "TORTOP")); !ok {
		t.Error("KTOP should pass")
	}
	ok, reason := f.Allow(warningEvent("KOAX", "TOROAX"))
	if ok {
		t.Error("KOAX should be rejected")
	}
	if reason != "attribute:cccc" {
		t.Errorf("reason = %q", reason)
	}

	missing := &AttributeFilter{Field: "no_such_field", Allowed: []string{"x"}}
	ok, reason = missing.Allow(warningEvent("KTOP", "TORTOP"))
	if ok {
		t.Error("missing field should reject")
	}
	if reason != "missing_field:no_such_field" {
		t.Errorf("reason = %q", reason)
	}
}

func TestAttributeFilterOnControlEvent(t *testing.T) {
	f := &AttributeFilter{Field: "op", Allowed: []string{"drain"}}
	if ok, _ := f.Allow(&types.ControlEvent{Op: "drain"}); !ok {
		t.Error("matching control op should pass")
	}
	if ok, _ := f.Allow(&types.ControlEvent{Op: "pause"}); ok {
		t.Error("non-matching control op should be rejected")
	}
}

func TestRegexFilter(t *testing.T) {
	f, err := NewRegexFilter("awips_id", `^(TOR|SVR)`)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.Allow(warningEvent("KTOP", "TORTOP")); !ok {
		t.Error("TORTOP should match")
	}
	if ok, _ := f.Allow(warningEvent("KTOP", "ZFPTOP")); ok {
		t.Error("ZFPTOP should not match")
	}

	if _, err := NewRegexFilter("awips_id", `([`); err == nil {
		t.Error("bad pattern should fail compilation")
	}
}

func TestRegexFilterOnRecordEvent(t *testing.T) {
	f, err := NewRegexFilter("office", `^K`)
	if err != nil {
		t.Fatal(err)
	}
	rec := &types.RecordEvent{Fields: map[string]interface{}{"office": "KTOP"}}
	if ok, _ := f.Allow(rec); !ok {
		t.Error("record field should match")
	}
}

func TestCompositeFilter(t *testing.T) {
	tor := &AttributeFilter{Field: "product_category", Allowed: []string{"TOR"}}
	svr := &AttributeFilter{Field: "product_category", Allowed: []string{"SVR"}}

	or := &CompositeFilter{Op: CompositeOr, Children: []Filter{tor, svr}}
	if ok, _ := or.Allow(warningEvent("KTOP", "SVRTOP")); !ok {
		t.Error("OR should pass SVR")
	}
	if ok, _ := or.Allow(warningEvent("KTOP", "ZFPTOP")); ok {
		t.Error("OR should reject ZFP")
	}

	ktop := &AttributeFilter{Field: "cccc", Allowed: []string{"KTOP"}}
	and := &CompositeFilter{Op: CompositeAnd, Children: []Filter{tor, ktop}}
	if ok, _ := and.Allow(warningEvent("KTOP", "TORTOP")); !ok {
		t.Error("AND should pass when both hold")
	}
	if ok, _ := and.Allow(warningEvent("KOAX", "TOROAX")); ok {
		t.Error("AND should reject when one fails")
	}

	not := &CompositeFilter{Op: CompositeNot, Children: []Filter{tor}}
	if ok, _ := not.Allow(warningEvent("KTOP", "TORTOP")); ok {
		t.Error("NOT should reject TOR")
	}
	if ok, _ := not.Allow(warningEvent("KTOP", "ZFPTOP")); !ok {
		t.Error("NOT should pass ZFP")
	}
}

func TestFuncFilter(t *testing.T) {
	f := &FuncFilter{
		FilterName: "has_segments",
		Fn: func(ev types.Event) bool {
			we, ok := ev.(*types.WeatherEvent)
			return ok && len(we.Segments) > 0
		},
	}
	ev := warningEvent("KTOP", "TORTOP")
	if ok, reason := f.Allow(ev); ok || reason != "has_segments" {
		t.Errorf("Allow = %v, %q", ok, reason)
	}
	ev.Segments = []types.Segment{{}}
	if ok, _ := f.Allow(ev); !ok {
		t.Error("event with segments should pass")
	}
}
