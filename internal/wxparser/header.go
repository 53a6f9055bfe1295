package wxparser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// WMO abbreviated heading: TTAAII CCCC DDHHMM [BBB]
var wmoRe = regexp.MustCompile(`^([A-Z]{4}\d{2})\s+([A-Z]{4})\s+(\d{6})(?:\s+([A-Z]{3}))?\s*$`)

// AWIPS identifier line: 3-6 uppercase alphanumerics on a line by itself.
var awipsRe = regexp.MustCompile(`^[A-Z0-9]{3,6}\s*$`)

// MND issuance timestamp, e.g. "1230 PM CST Mon Jan 15 2024".
var mndTimeRe = regexp.MustCompile(`^(\d{3,4})\s+(AM|PM)\s+([A-Z]{3,4})\s+[A-Za-z]{3}\s+([A-Za-z]{3})\s+(\d{1,2})\s+(\d{4})\s*$`)

// header carries the decoded product heading.
type header struct {
	Ttaaii   string
	Cccc     string
	DDHHMM   string
	BBB      string // correction/amendment indicator, empty if absent
	AwipsID  string
	IssuedAt time.Time
	// MND block, when present
	MNDBroadcast string // EAS ACTIVATION REQUESTED or IMMEDIATE BROADCAST REQUESTED
	MNDTitle     string
	MNDOffice    string
	MNDIssued    time.Time
	// index of the first line after the AWIPS ID
	bodyStart int
}

// parseHeader decodes the WMO heading and AWIPS line, then resolves the
// issuance time. The DDHHMM group gives UTC day-hour-minute; the stanza
// issue attribute (ref) disambiguates month and year, with the MND local
// timestamp as a cross-check when present.
func parseHeader(lines []string, ref time.Time) (*header, error) {
	h := &header{}

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) {
		return nil, &ParseError{Reason: "empty product"}
	}

	m := wmoRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
	if m == nil {
		return nil, &ParseError{Reason: fmt.Sprintf("no WMO heading on first line %q", lines[i]), Line: i + 1}
	}
	h.Ttaaii, h.Cccc, h.DDHHMM, h.BBB = m[1], m[2], m[3], m[4]
	i++

	issued, err := resolveDayHourMin(h.DDHHMM, ref)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("WMO heading time: %v", err), Line: i}
	}
	h.IssuedAt = issued

	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) && awipsRe.MatchString(strings.TrimSpace(lines[i])) {
		h.AwipsID = strings.TrimSpace(lines[i])
		i++
	}
	h.bodyStart = i

	parseMND(lines[i:], h)
	return h, nil
}

// parseMND scans the first few body lines for the Mass News Disseminator
// block. Absence is not an error; many products carry no MND.
func parseMND(lines []string, h *header) {
	// The MND block sits within the first segment, after any UGC and
	// VTEC lines. Scan a bounded window.
	limit := len(lines)
	if limit > 30 {
		limit = 30
	}

	for i := 0; i < limit; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.Contains(line, "EAS ACTIVATION REQUESTED"):
			h.MNDBroadcast = "EAS ACTIVATION REQUESTED"
		case strings.Contains(line, "IMMEDIATE BROADCAST REQUESTED"):
			h.MNDBroadcast = "IMMEDIATE BROADCAST REQUESTED"
		case strings.HasPrefix(line, "National Weather Service"):
			h.MNDOffice = line
			if i > 0 {
				title := strings.TrimSpace(lines[i-1])
				if title != "" && !isUGCStart(title) && !isPVTECLine(title) {
					h.MNDTitle = title
				}
			}
			if i+1 < limit {
				if t, ok := parseMNDTime(strings.TrimSpace(lines[i+1]), h.IssuedAt); ok {
					h.MNDIssued = t
				}
			}
			return
		}
	}
}

// usTimezones maps MND timezone abbreviations to UTC offsets in hours.
var usTimezones = map[string]int{
	"AST": -4, "EST": -5, "EDT": -4, "CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6, "PST": -8, "PDT": -7,
	"AKST": -9, "AKDT": -8, "HST": -10, "SST": -11, "CHST": 10,
	"GMT": 0, "UTC": 0,
}

// parseMNDTime decodes an MND local timestamp such as
// "1230 PM CST Mon Jan 15 2024" into a UTC instant.
func parseMNDTime(line string, ref time.Time) (time.Time, bool) {
	m := mndTimeRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}

	clock := m[1]
	hour := 0
	min := 0
	if len(clock) == 3 {
		hour = int(clock[0] - '0')
		min = int(clock[1]-'0')*10 + int(clock[2]-'0')
	} else {
		hour = int(clock[0]-'0')*10 + int(clock[1]-'0')
		min = int(clock[2]-'0')*10 + int(clock[3]-'0')
	}
	if m[2] == "PM" && hour != 12 {
		hour += 12
	}
	if m[2] == "AM" && hour == 12 {
		hour = 0
	}

	offset, ok := usTimezones[m[3]]
	if !ok {
		return time.Time{}, false
	}

	mon, err := time.Parse("Jan", m[4])
	if err != nil {
		return time.Time{}, false
	}
	day := atoiSafe(m[5])
	year := atoiSafe(m[6])

	loc := time.FixedZone(m[3], offset*3600)
	return time.Date(year, mon.Month(), day, hour, min, 0, 0, loc).UTC(), true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
