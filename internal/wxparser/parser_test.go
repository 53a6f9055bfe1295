package wxparser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wxwire/wxwire/internal/geo"
	"github.com/wxwire/wxwire/internal/types"
)

const tornadoWarningText = `WFUS53 KTOP 011930

TORTOP

KSC177-011945-
/O.NEW.KTOP.TO.W.0015.240601T1930Z-240601T1945Z/

BULLETIN - EAS ACTIVATION REQUESTED
Tornado Warning
National Weather Service Topeka KS
230 PM CDT Sat Jun 1 2024

The National Weather Service in Topeka has issued a

* Tornado Warning for...
  Shawnee County in northeast Kansas...

* Until 245 PM CDT.

* At 230 PM CDT, a severe thunderstorm capable of producing a tornado
  was located near Auburn, moving northeast at 25 mph.

PRECAUTIONARY/PREPAREDNESS ACTIONS...

TAKE COVER NOW! Move to a basement or an interior room on the lowest
floor of a sturdy building.

&&

TORNADO...RADAR INDICATED
MAX HAIL SIZE...2.75 IN

LAT...LON 3904 9576 3906 9570 3898 9566 3896 9574

TIME...MOT...LOC 1930Z 240DEG 25KT 3904 9576

$$
`

func tornadoWireMessage() types.WireMessage {
	return types.WireMessage{
		ID:         "14609.1205",
		BodyText:   tornadoWarningText,
		IssuedAt:   time.Date(2024, 6, 1, 19, 30, 5, 0, time.UTC),
		AwipsID:    "TORTOP",
		Cccc:       "KTOP",
		Ttaaii:     "WFUS53",
		ReceivedAt: time.Date(2024, 6, 1, 19, 30, 8, 0, time.UTC),
	}
}

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	lookup, err := geo.NewLookup()
	if err != nil {
		t.Fatalf("NewLookup: %v", err)
	}
	return New(lookup)
}

func TestParseTornadoWarning(t *testing.T) {
	p := newTestParser(t)

	event, diags, err := p.Parse(tornadoWireMessage())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}

	if event.WMO != "WFUS53 KTOP 011930" {
		t.Errorf("WMO = %q", event.WMO)
	}
	if event.AwipsID != "TORTOP" {
		t.Errorf("AwipsID = %q", event.AwipsID)
	}
	if event.Cccc != "KTOP" {
		t.Errorf("Cccc = %q", event.Cccc)
	}
	if event.ProductCategory != "TOR" {
		t.Errorf("ProductCategory = %q", event.ProductCategory)
	}
	wantIssued := time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC)
	if !event.IssuedAt.Equal(wantIssued) {
		t.Errorf("IssuedAt = %v, want %v", event.IssuedAt, wantIssued)
	}
	if event.ProductID != "KTOP-TORTOP-20240601T193000Z" {
		t.Errorf("ProductID = %q", event.ProductID)
	}
	if event.Fingerprint == "" {
		t.Error("Fingerprint empty")
	}

	if len(event.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(event.Segments))
	}
	seg := event.Segments[0]

	if len(seg.UGCCodes) != 1 || seg.UGCCodes[0] != "KSC177" {
		t.Errorf("UGCCodes = %v", seg.UGCCodes)
	}
	wantExpires := time.Date(2024, 6, 1, 19, 45, 0, 0, time.UTC)
	if !seg.UGCExpiresAt.Equal(wantExpires) {
		t.Errorf("UGCExpiresAt = %v, want %v", seg.UGCExpiresAt, wantExpires)
	}

	if len(seg.VTEC) != 1 {
		t.Fatalf("VTEC count = %d, want 1", len(seg.VTEC))
	}
	v := seg.VTEC[0]
	if v.Action != types.ActionNew || v.Office != "KTOP" || v.Phenomenon != "TO" || v.Significance != "W" || v.ETN != 15 {
		t.Errorf("VTEC = %+v", v)
	}
	if v.UntilFurtherNotice() {
		t.Error("VTEC should have a scheduled end")
	}

	if len(seg.Polygon) != 4 {
		t.Fatalf("polygon vertices = %d, want 4", len(seg.Polygon))
	}
	first := seg.Polygon[0]
	if first.Lat != 39.04 || first.Lon != -95.76 {
		t.Errorf("polygon[0] = %+v, want {39.04 -95.76}", first)
	}

	if seg.TimeMotLoc == nil {
		t.Fatal("TimeMotLoc missing")
	}
	if seg.TimeMotLoc.DirectionDeg != 240 || seg.TimeMotLoc.SpeedKt != 25 {
		t.Errorf("TimeMotLoc = %+v", seg.TimeMotLoc)
	}
	wantTML := time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC)
	if !seg.TimeMotLoc.Time.Equal(wantTML) {
		t.Errorf("TimeMotLoc.Time = %v, want %v", seg.TimeMotLoc.Time, wantTML)
	}

	if got := seg.IBWTags["TORNADO"]; got != "RADAR INDICATED" {
		t.Errorf("TORNADO tag = %q", got)
	}
	if got := seg.IBWTags["MAX_HAIL_SIZE"]; got != "2.75" {
		t.Errorf("MAX_HAIL_SIZE tag = %q", got)
	}

	if strings.Contains(seg.Body, "&&") {
		t.Error("body still contains && delimiter")
	}

	if len(event.Geo) != 1 {
		t.Fatalf("geo descriptors = %d, want 1", len(event.Geo))
	}
	if event.Geo[0].Name != "Shawnee" || event.Geo[0].State != "KS" {
		t.Errorf("geo[0] = %+v", event.Geo[0])
	}
}

const floodWarningText = `WGUS43 KDMX 021015
FLWDMX

IAC153-021615-
/O.NEW.KDMX.FL.W.0007.240602T1200Z-000000T0000Z/
/DESI4.2.ER.240602T1200Z.240603T0000Z.240604T1200Z.NO/

...FLOOD WARNING IN EFFECT FROM 7 AM SUNDAY UNTIL FURTHER NOTICE...

The Flood Warning continues for the Des Moines River near Des Moines.

$$

MOC095-021615-
/O.CON.KDMX.FL.W.0006.000000T0000Z-240604T0000Z/
/KCMM7.1.ER.240601T0600Z.240602T1800Z.240603T2100Z.NO/

...FLOOD WARNING REMAINS IN EFFECT UNTIL TUESDAY EVENING...

Flooding continues along the Missouri River.

$$
`

func TestParseMultiSegmentFloodWarning(t *testing.T) {
	p := newTestParser(t)

	msg := types.WireMessage{
		ID:         "14609.1206",
		BodyText:   floodWarningText,
		IssuedAt:   time.Date(2024, 6, 2, 10, 15, 2, 0, time.UTC),
		AwipsID:    "FLWDMX",
		Cccc:       "KDMX",
		ReceivedAt: time.Date(2024, 6, 2, 10, 15, 4, 0, time.UTC),
	}

	event, diags, err := p.Parse(msg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}

	if len(event.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(event.Segments))
	}

	s0 := event.Segments[0]
	if len(s0.UGCCodes) != 1 || s0.UGCCodes[0] != "IAC153" {
		t.Errorf("segment 0 UGCCodes = %v", s0.UGCCodes)
	}
	if len(s0.VTEC) != 1 || !s0.VTEC[0].UntilFurtherNotice() {
		t.Errorf("segment 0 VTEC = %+v, want until-further-notice", s0.VTEC)
	}
	if len(s0.HVTEC) != 1 {
		t.Fatalf("segment 0 HVTEC count = %d, want 1", len(s0.HVTEC))
	}
	hv := s0.HVTEC[0]
	if hv.NWSLI != "DESI4" || hv.Severity != "2" || hv.ImmediateCause != "ER" || hv.RecordStatus != "NO" {
		t.Errorf("segment 0 HVTEC = %+v", hv)
	}
	if len(s0.Headlines) != 1 || !strings.Contains(s0.Headlines[0], "UNTIL FURTHER NOTICE") {
		t.Errorf("segment 0 headlines = %v", s0.Headlines)
	}

	s1 := event.Segments[1]
	if len(s1.UGCCodes) != 1 || s1.UGCCodes[0] != "MOC095" {
		t.Errorf("segment 1 UGCCodes = %v", s1.UGCCodes)
	}
	if len(s1.VTEC) != 1 {
		t.Fatalf("segment 1 VTEC count = %d", len(s1.VTEC))
	}
	if !s1.VTEC[0].Begin.IsZero() {
		t.Error("segment 1 VTEC begin should decode as already-begun")
	}
	if s1.VTEC[0].UntilFurtherNotice() {
		t.Error("segment 1 VTEC has a scheduled end")
	}
	if len(s1.HVTEC) != 1 || s1.HVTEC[0].NWSLI != "KCMM7" {
		t.Errorf("segment 1 HVTEC = %+v", s1.HVTEC)
	}

	// Both counties are in the bundled dataset.
	if len(event.Geo) != 2 {
		t.Errorf("geo descriptors = %d, want 2", len(event.Geo))
	}
}

func TestParseNoWMOHeading(t *testing.T) {
	p := New(nil)

	msg := types.WireMessage{
		BodyText:   "THIS IS NOT A PRODUCT\nJUST SOME TEXT\n",
		ReceivedAt: time.Now().UTC(),
	}
	_, _, err := p.Parse(msg)
	if err == nil {
		t.Fatal("expected parse error for missing WMO heading")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
}

func TestParseMixedUGCFormats(t *testing.T) {
	p := New(nil)

	body := `WWUS53 KBOU 011200
SVRBOU
COC001-COZ035-011300-
Severe thunderstorm warning text.
`
	msg := types.WireMessage{
		BodyText:   body,
		IssuedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		ReceivedAt: time.Date(2024, 6, 1, 12, 0, 1, 0, time.UTC),
	}
	_, diags, err := p.Parse(msg)
	if err == nil {
		t.Fatal("expected error: mixed county and zone codes in one UGC string")
	}
	found := false
	for _, d := range diags {
		if d.Code == "segment_damaged" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected segment_damaged diagnostic, got %v", diags)
	}
}

func TestParseEnvelopeOfficeMismatch(t *testing.T) {
	p := New(nil)

	msg := tornadoWireMessage()
	msg.Cccc = "KOAX"

	_, diags, err := p.Parse(msg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == "header_mismatch" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected header_mismatch diagnostic, got %v", diags)
	}
}

func TestParseAwipsFallsBackToEnvelope(t *testing.T) {
	p := New(nil)

	// No AWIPS line in the product text; the envelope attribute fills in.
	body := `NOUS41 KWBC 011200
Administrative message text with no AWIPS line.
`
	msg := types.WireMessage{
		BodyText:   body,
		IssuedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		AwipsID:    "ADMNES",
		Cccc:       "KWBC",
		ReceivedAt: time.Date(2024, 6, 1, 12, 0, 1, 0, time.UTC),
	}
	event, _, err := p.Parse(msg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if event.AwipsID != "ADMNES" {
		t.Errorf("AwipsID = %q, want envelope fallback ADMNES", event.AwipsID)
	}
}

func TestParseFingerprintStable(t *testing.T) {
	p := newTestParser(t)

	a, _, err := p.Parse(tornadoWireMessage())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Same product delivered again later on a different session.
	msg := tornadoWireMessage()
	msg.ID = "99120.77"
	msg.ReceivedAt = msg.ReceivedAt.Add(45 * time.Second)
	b, _, err := p.Parse(msg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if a.Fingerprint != b.Fingerprint {
		t.Errorf("fingerprints differ across deliveries: %s vs %s", a.Fingerprint, b.Fingerprint)
	}
	if a.EventID == b.EventID {
		t.Error("event IDs must be unique per delivery")
	}
}
