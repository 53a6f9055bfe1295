// Package wxparser turns raw NWS text products into structured weather
// events: WMO/AWIPS headers, UGC geography, VTEC event codes, warning
// polygons, and impact-based warning tags.
package wxparser

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wxwire/wxwire/internal/geo"
	"github.com/wxwire/wxwire/internal/types"
)

// ParseError reports unrecoverable structural damage in a product. Soft
// issues are reported through Diagnostics instead and do not stop the
// event from flowing.
type ParseError struct {
	Reason string
	Line   int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
	}
	return "parse error: " + e.Reason
}

// Diagnostic is one soft, recoverable parse issue.
type Diagnostic struct {
	Code   string
	Detail string
}

// Diagnostics accumulates soft issues found while parsing one product.
type Diagnostics []Diagnostic

func (d *Diagnostics) add(code, format string, args ...interface{}) {
	*d = append(*d, Diagnostic{Code: code, Detail: fmt.Sprintf(format, args...)})
}

// Parser converts wire messages into weather events, enriching UGC codes
// through the geographic lookup when one is attached.
type Parser struct {
	geo *geo.Lookup
}

// New returns a parser. The lookup may be nil, in which case events flow
// without geographic enrichment.
func New(lookup *geo.Lookup) *Parser {
	return &Parser{geo: lookup}
}

// Parse decodes one wire message into a weather event. The returned
// diagnostics list soft issues; a non-nil error means the product was
// structurally unusable and produced no event.
func (p *Parser) Parse(msg types.WireMessage) (*types.WeatherEvent, Diagnostics, error) {
	var diags Diagnostics

	ref := msg.IssuedAt
	if ref.IsZero() {
		ref = msg.ReceivedAt
	}

	lines := strings.Split(msg.BodyText, "\n")
	h, err := parseHeader(lines, ref)
	if err != nil {
		return nil, diags, err
	}

	if msg.Cccc != "" && h.Cccc != msg.Cccc {
		diags.add("header_mismatch", "envelope office %s differs from WMO heading office %s", msg.Cccc, h.Cccc)
	}
	awipsID := h.AwipsID
	if awipsID == "" {
		awipsID = msg.AwipsID
		if awipsID == "" {
			diags.add("missing_awips", "no AWIPS identifier in product or envelope")
		}
	}

	event := &types.WeatherEvent{
		EventID:         uuid.NewString(),
		ProductID:       types.MakeProductID(h.Cccc, awipsID, h.IssuedAt),
		WMO:             fmt.Sprintf("%s %s %s", h.Ttaaii, h.Cccc, h.DDHHMM),
		AwipsID:         awipsID,
		Cccc:            h.Cccc,
		ProductCategory: productCategory(awipsID),
		IssuedAt:        h.IssuedAt,
		ReceivedAt:      msg.ReceivedAt,
		Text:            msg.BodyText,
	}

	segments, segDiags, err := parseSegments(lines[h.bodyStart:], h.IssuedAt)
	diags = append(diags, segDiags...)
	if err != nil {
		return nil, diags, err
	}
	event.Segments = segments

	p.enrich(event, &diags)
	event.Fingerprint = types.Fingerprint(event.Cccc, event.AwipsID, event.IssuedAt, event.Text)

	return event, diags, nil
}

// productCategory derives the three-letter category from the AWIPS ID.
func productCategory(awipsID string) string {
	if len(awipsID) < 3 {
		return awipsID
	}
	return awipsID[:3]
}

// parseSegments splits the product body on $$ separators and decodes each
// piece. A product with no separators is a single segment. Segments whose
// UGC string is damaged are dropped with a diagnostic; the product fails
// outright only when no segment survives and at least one was damaged.
func parseSegments(lines []string, issued time.Time) ([]types.Segment, Diagnostics, error) {
	var diags Diagnostics

	chunks := splitSegments(lines)
	segments := make([]types.Segment, 0, len(chunks))
	damaged := 0

	for idx, chunk := range chunks {
		seg, err := parseSegment(chunk, issued, &diags)
		if err != nil {
			damaged++
			diags.add("segment_damaged", "segment %d: %v", idx+1, err)
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 && damaged > 0 {
		return nil, diags, &ParseError{Reason: fmt.Sprintf("all %d segments unparseable", damaged)}
	}
	return segments, diags, nil
}

// splitSegments divides body lines at $$ separator lines.
func splitSegments(lines []string) [][]string {
	var chunks [][]string
	var cur []string

	for _, raw := range lines {
		if strings.TrimSpace(raw) == "$$" {
			if len(cur) > 0 {
				chunks = append(chunks, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, raw)
	}
	if hasContent(cur) {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		chunks = [][]string{lines}
	}
	return chunks
}

func hasContent(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// parseSegment decodes one segment: the UGC string, any VTEC and H-VTEC
// lines, then the body features.
func parseSegment(lines []string, issued time.Time, diags *Diagnostics) (types.Segment, error) {
	seg := types.Segment{}

	bodyFrom := 0
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if isUGCStart(line) && len(seg.UGCCodes) == 0 {
			// A UGC string may continue across lines until the DDHHMM-
			// expiration group.
			full := line
			j := i
			for !ugcComplete(full) && j+1 < len(lines) {
				j++
				next := strings.TrimSpace(lines[j])
				if next == "" || !strings.HasSuffix(next, "-") {
					break
				}
				full += next
			}

			codes, expires, err := expandUGC(full, issued)
			if err != nil {
				return seg, err
			}
			seg.UGCCodes = codes
			seg.UGCExpiresAt = expires
			i = j
			bodyFrom = i + 1
			continue
		}

		if isPVTECLine(line) {
			v, err := parsePVTEC(line)
			if err != nil {
				diags.add("bad_vtec", "%v", err)
				continue
			}
			if !v.Begin.IsZero() && v.Begin.Before(issued) {
				diags.add("vtec_begin_before_issuance", "%s begins %s before product issuance %s",
					v.Raw, v.Begin.Format(time.RFC3339), issued.Format(time.RFC3339))
			}
			seg.VTEC = append(seg.VTEC, v)
			bodyFrom = i + 1
			continue
		}

		if isHVTECLine(line) {
			if len(seg.VTEC) == 0 || !floodPhenomena[seg.VTEC[len(seg.VTEC)-1].Phenomenon] {
				diags.add("orphan_hvtec", "H-VTEC %q without preceding flood P-VTEC", line)
				continue
			}
			hv, err := parseHVTEC(line)
			if err != nil {
				diags.add("bad_vtec", "%v", err)
				continue
			}
			seg.HVTEC = append(seg.HVTEC, hv)
			bodyFrom = i + 1
			continue
		}

		if line != "" {
			break
		}
	}

	body := lines[bodyFrom:]
	seg.Headlines = parseHeadlines(body)
	seg.Polygon = parsePolygon(body)
	seg.TimeMotLoc = parseTimeMotLoc(body, issued)
	seg.IBWTags = parseIBWTags(body)
	seg.Body = strings.TrimSpace(strings.Join(stripCTABlocks(body), "\n"))

	return seg, nil
}

// ugcComplete reports whether a joined UGC string already ends with its
// DDHHMM- expiration group.
func ugcComplete(s string) bool {
	s = strings.TrimSuffix(s, "-")
	i := strings.LastIndex(s, "-")
	tail := s[i+1:]
	return len(tail) == 6 && looksNumeric(tail)
}

// enrich resolves every segment UGC code through the lookup, deduplicated
// across segments. Misses are soft.
func (p *Parser) enrich(event *types.WeatherEvent, diags *Diagnostics) {
	if p.geo == nil {
		return
	}

	seen := make(map[string]bool)
	for _, seg := range event.Segments {
		for _, code := range seg.UGCCodes {
			if seen[code] {
				continue
			}
			seen[code] = true
			d, ok := p.geo.Resolve(code)
			if !ok {
				diags.add("geo_not_found", "UGC code %s not in lookup table", code)
				continue
			}
			event.Geo = append(event.Geo, d)
		}
	}
}
