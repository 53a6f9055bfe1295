package wxparser

import (
	"regexp"
	"strings"
	"time"

	"github.com/wxwire/wxwire/internal/types"
)

// IBW coded tag line near the end of a segment: KEY...VALUE, uppercase.
var ibwTagRe = regexp.MustCompile(`^([A-Z][A-Z0-9 ]*[A-Z0-9])\.\.\.([^.].*)$`)

// TIME...MOT...LOC 1830Z 240DEG 25KT 39.04 95.76 [more pairs]
var tmlRe = regexp.MustCompile(`^TIME\.\.\.MOT\.\.\.LOC\s+(\d{4})Z\s+(\d{1,3})DEG\s+(\d{1,3})KT((?:\s+\d+(?:\.\d+)?)+)\s*$`)

// tagUnits lists value suffixes stripped from numeric IBW tags.
var tagUnits = []string{" IN", " MPH", " KTS", " KT", " FT"}

// parseHeadlines extracts the triple-dot delimited headline blocks from
// segment lines. A headline may wrap across lines; it runs from a line
// beginning "..." to the next line ending "...".
func parseHeadlines(lines []string) []string {
	var headlines []string
	var cur []string
	open := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !open {
			if strings.HasPrefix(line, "...") && line != "..." {
				body := strings.TrimPrefix(line, "...")
				if strings.HasSuffix(body, "...") {
					headlines = append(headlines, strings.TrimSpace(strings.TrimSuffix(body, "...")))
					continue
				}
				cur = []string{body}
				open = true
			}
			continue
		}

		if strings.HasSuffix(line, "...") {
			cur = append(cur, strings.TrimSuffix(line, "..."))
			headlines = append(headlines, strings.TrimSpace(strings.Join(cur, " ")))
			cur, open = nil, false
			continue
		}
		if line == "" {
			// Unterminated headline block; discard rather than guess.
			cur, open = nil, false
			continue
		}
		cur = append(cur, line)
	}

	return headlines
}

// parseIBWTags collects the coded KEY...VALUE tag lines. Headline lines
// (leading dots) and VTEC strings never match. Unit suffixes on numeric
// values are stripped so MAX HAIL SIZE...2.75 IN yields "2.75".
func parseIBWTags(lines []string) map[string]string {
	var tags map[string]string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, ".") || strings.HasPrefix(line, "/") {
			continue
		}
		if strings.HasPrefix(line, "LAT...LON") || strings.HasPrefix(line, "TIME...MOT...LOC") {
			continue
		}
		m := ibwTagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		key := strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "_")
		value := strings.TrimSpace(m[2])
		for _, unit := range tagUnits {
			if strings.HasSuffix(value, unit) && looksNumeric(strings.TrimSuffix(value, unit)) {
				value = strings.TrimSuffix(value, unit)
				break
			}
		}

		if tags == nil {
			tags = make(map[string]string)
		}
		tags[key] = value
	}

	return tags
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for _, r := range s {
		if r == '.' {
			if dot {
				return false
			}
			dot = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseTimeMotLoc decodes the storm motion line, resolving the HHMM time
// against the product issuance instant.
func parseTimeMotLoc(lines []string, issued time.Time) *types.TimeMotLoc {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		m := tmlRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		hour := atoiSafe(m[1][:2])
		min := atoiSafe(m[1][2:])
		t := time.Date(issued.Year(), issued.Month(), issued.Day(), hour, min, 0, 0, time.UTC)
		// An observation clock earlier than issuance by more than half a
		// day belongs to the next UTC day.
		if t.Sub(issued) < -12*time.Hour {
			t = t.AddDate(0, 0, 1)
		}

		locs := parseCoordinatePairs(strings.Fields(m[4]))
		return &types.TimeMotLoc{
			Time:         t,
			DirectionDeg: atoiSafe(m[2]),
			SpeedKt:      atoiSafe(m[3]),
			Locations:    locs,
		}
	}
	return nil
}

// stripCTABlocks removes the &&-delimited call-to-action blocks from a
// segment body. The surviving text is what the body column stores.
func stripCTABlocks(lines []string) []string {
	var out []string
	for _, raw := range lines {
		if strings.TrimSpace(raw) == "&&" {
			continue
		}
		out = append(out, raw)
	}
	return out
}
