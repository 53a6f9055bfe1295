package wxparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wxwire/wxwire/internal/types"
)

// P-VTEC: /k.aaa.cccc.pp.s.####.yymmddThhnnZ-yymmddThhnnZ/
var pvtecRe = regexp.MustCompile(
	`^/([OTEX])\.(NEW|CON|EXT|EXA|EXB|CAN|UPG|EXP|ROU|COR)\.([A-Z]{4})\.([A-Z]{2})\.([WAYSFON])\.(\d{4})\.(\d{6}T\d{4}Z)-(\d{6}T\d{4}Z)/$`)

// H-VTEC: /nwsli.s.ic.yymmddThhnnZ.yymmddThhnnZ.yymmddThhnnZ.fr/
var hvtecRe = regexp.MustCompile(
	`^/([A-Z0-9]{5})\.([N0123U])\.([A-Z]{2})\.(\d{6}T\d{4}Z)\.(\d{6}T\d{4}Z)\.(\d{6}T\d{4}Z)\.(OO|NO|NR|UU)/$`)

// floodPhenomena are the P-VTEC phenomena that may carry an H-VTEC line.
var floodPhenomena = map[string]bool{
	"FF": true,
	"FA": true,
	"FL": true,
	"HY": true,
}

// parsePVTEC decodes one primary VTEC string.
func parsePVTEC(line string) (types.VTEC, error) {
	m := pvtecRe.FindStringSubmatch(line)
	if m == nil {
		return types.VTEC{}, fmt.Errorf("malformed P-VTEC %q", line)
	}

	etn, err := strconv.Atoi(m[6])
	if err != nil || etn < 1 || etn > 9999 {
		return types.VTEC{}, fmt.Errorf("P-VTEC ETN out of range in %q", line)
	}

	begin, err := parseVTECTime(m[7])
	if err != nil {
		return types.VTEC{}, fmt.Errorf("P-VTEC begin time in %q: %w", line, err)
	}
	end, err := parseVTECTime(m[8])
	if err != nil {
		return types.VTEC{}, fmt.Errorf("P-VTEC end time in %q: %w", line, err)
	}

	return types.VTEC{
		Fixed:        types.VTECFixed(m[1]),
		Action:       types.VTECAction(m[2]),
		Office:       m[3],
		Phenomenon:   m[4],
		Significance: m[5],
		ETN:          etn,
		Begin:        begin,
		End:          end,
		Raw:          line,
	}, nil
}

// parseHVTEC decodes one hydrologic VTEC string.
func parseHVTEC(line string) (types.HVTEC, error) {
	m := hvtecRe.FindStringSubmatch(line)
	if m == nil {
		return types.HVTEC{}, fmt.Errorf("malformed H-VTEC %q", line)
	}

	fb, err := parseVTECTime(m[4])
	if err != nil {
		return types.HVTEC{}, fmt.Errorf("H-VTEC flood begin in %q: %w", line, err)
	}
	fc, err := parseVTECTime(m[5])
	if err != nil {
		return types.HVTEC{}, fmt.Errorf("H-VTEC flood crest in %q: %w", line, err)
	}
	fe, err := parseVTECTime(m[6])
	if err != nil {
		return types.HVTEC{}, fmt.Errorf("H-VTEC flood end in %q: %w", line, err)
	}

	return types.HVTEC{
		NWSLI:          m[1],
		Severity:       m[2],
		ImmediateCause: m[3],
		FloodBegin:     fb,
		FloodCrest:     fc,
		FloodEnd:       fe,
		RecordStatus:   m[7],
		Raw:            line,
	}, nil
}

// parseVTECTime converts yymmddThhnnZ into a UTC instant. The all-zeros
// form decodes to the zero time, meaning "already begun" in the begin
// position and "until further notice" in the end position.
func parseVTECTime(s string) (time.Time, error) {
	if s == "000000T0000Z" {
		return time.Time{}, nil
	}
	t, err := time.Parse("060102T1504Z", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// isPVTECLine reports whether a line looks like a primary VTEC string.
func isPVTECLine(line string) bool {
	return pvtecRe.MatchString(strings.TrimSpace(line))
}

// isHVTECLine reports whether a line looks like a hydrologic VTEC string.
func isHVTECLine(line string) bool {
	return hvtecRe.MatchString(strings.TrimSpace(line))
}
