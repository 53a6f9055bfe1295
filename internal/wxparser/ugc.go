package wxparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// A UGC string opens with SSFNNN and runs, possibly across continuation
// lines, to a trailing DDHHMM- expiration. Ranges compress consecutive
// codes: COC001>005 means Colorado counties 001 through 005.
var (
	ugcStartRe = regexp.MustCompile(`^[A-Z]{2}[CZ]\d{3}`)
	ugcStateRe = regexp.MustCompile(`^([A-Z]{2})([CZ])(\d{3})(?:>(\d{3}))?$`)
	ugcBareRe  = regexp.MustCompile(`^(\d{3})(?:>(\d{3}))?$`)
	ugcExpRe   = regexp.MustCompile(`^(\d{6})$`)
)

// isUGCStart reports whether a line opens a UGC string.
func isUGCStart(line string) bool {
	return ugcStartRe.MatchString(line) && strings.HasSuffix(strings.TrimSpace(line), "-")
}

// expandUGC expands a complete hyphen-joined UGC string into individual
// codes plus the segment expiration. Counties and zones must not mix
// within one string; a mixed string is structural damage.
func expandUGC(ugc string, ref time.Time) (codes []string, expires time.Time, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(ugc), "-")
	tokens := strings.Split(trimmed, "-")
	if len(tokens) < 2 {
		return nil, time.Time{}, fmt.Errorf("UGC string %q too short", ugc)
	}

	// The final token is the DDHHMM expiration.
	last := tokens[len(tokens)-1]
	expMatch := ugcExpRe.FindStringSubmatch(last)
	if expMatch == nil {
		return nil, time.Time{}, fmt.Errorf("UGC string %q missing DDHHMM expiration", ugc)
	}
	expires, err = resolveDayHourMin(expMatch[1], ref)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("UGC expiration in %q: %w", ugc, err)
	}

	var state, format string
	for _, tok := range tokens[:len(tokens)-1] {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		if m := ugcStateRe.FindStringSubmatch(tok); m != nil {
			if format != "" && m[2] != format {
				return nil, time.Time{}, fmt.Errorf("UGC string %q mixes county and zone codes", ugc)
			}
			state, format = m[1], m[2]
			expanded, err := expandRange(state, format, m[3], m[4])
			if err != nil {
				return nil, time.Time{}, err
			}
			codes = append(codes, expanded...)
			continue
		}

		if m := ugcBareRe.FindStringSubmatch(tok); m != nil {
			if state == "" {
				return nil, time.Time{}, fmt.Errorf("UGC string %q opens with a bare number", ugc)
			}
			expanded, err := expandRange(state, format, m[1], m[2])
			if err != nil {
				return nil, time.Time{}, err
			}
			codes = append(codes, expanded...)
			continue
		}

		return nil, time.Time{}, fmt.Errorf("unrecognized UGC token %q in %q", tok, ugc)
	}

	if len(codes) == 0 {
		return nil, time.Time{}, fmt.Errorf("UGC string %q contains no codes", ugc)
	}
	return codes, expires, nil
}

// expandRange produces SSFNNN codes for a single number or inclusive range.
func expandRange(state, format, from, to string) ([]string, error) {
	start, _ := strconv.Atoi(from)
	end := start
	if to != "" {
		end, _ = strconv.Atoi(to)
		if end < start {
			return nil, fmt.Errorf("UGC range %s>%s runs backward", from, to)
		}
	}

	codes := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		codes = append(codes, fmt.Sprintf("%s%s%03d", state, format, n))
	}
	return codes, nil
}

// resolveDayHourMin interprets a DDHHMM group against a reference instant,
// picking the month (and year) that places the result nearest the
// reference. Handles month and year rollover at product boundaries.
func resolveDayHourMin(ddhhmm string, ref time.Time) (time.Time, error) {
	if len(ddhhmm) != 6 {
		return time.Time{}, fmt.Errorf("bad DDHHMM group %q", ddhhmm)
	}
	day, _ := strconv.Atoi(ddhhmm[0:2])
	hour, _ := strconv.Atoi(ddhhmm[2:4])
	min, _ := strconv.Atoi(ddhhmm[4:6])
	if day < 1 || day > 31 || hour > 23 || min > 59 {
		return time.Time{}, fmt.Errorf("DDHHMM group %q out of range", ddhhmm)
	}

	ref = ref.UTC()
	candidates := []time.Time{
		time.Date(ref.Year(), ref.Month(), day, hour, min, 0, 0, time.UTC),
		time.Date(ref.Year(), ref.Month(), day, hour, min, 0, 0, time.UTC).AddDate(0, -1, 0),
		time.Date(ref.Year(), ref.Month(), day, hour, min, 0, 0, time.UTC).AddDate(0, 1, 0),
	}

	best := candidates[0]
	bestDiff := absDuration(best.Sub(ref))
	for _, c := range candidates[1:] {
		// Month arithmetic can shift the day when lengths differ; skip those.
		if c.Day() != day {
			continue
		}
		if d := absDuration(c.Sub(ref)); d < bestDiff {
			best, bestDiff = c, d
		}
	}
	return best, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
