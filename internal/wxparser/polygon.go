package wxparser

import (
	"strconv"
	"strings"

	"github.com/wxwire/wxwire/internal/types"
)

const (
	minPolygonVertices = 3
	maxPolygonVertices = 20
)

// parsePolygon extracts the LAT...LON warning polygon. Coordinate lines
// follow the header literal until a blank line or block terminator;
// values are unsigned hundredths of a degree (or plain decimals), with
// longitude stored west-negative.
func parsePolygon(lines []string) []types.LatLon {
	var tokens []string
	collecting := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !collecting {
			if strings.HasPrefix(line, "LAT...LON") {
				collecting = true
				tokens = append(tokens, strings.Fields(strings.TrimPrefix(line, "LAT...LON"))...)
			}
			continue
		}
		if line == "" || line == "&&" || line == "$$" || strings.HasPrefix(line, "TIME...MOT...LOC") {
			break
		}
		tokens = append(tokens, strings.Fields(line)...)
	}

	pts := parseCoordinatePairs(tokens)
	if len(pts) < minPolygonVertices || len(pts) > maxPolygonVertices {
		return nil
	}
	return pts
}

// parseCoordinatePairs converts alternating lat/lon tokens into points.
// Integer tokens carry two implied decimal places (3904 means 39.04);
// decimal tokens are taken as-is. NWS text gives longitudes unsigned,
// so they are negated into the western hemisphere here.
func parseCoordinatePairs(tokens []string) []types.LatLon {
	if len(tokens) < 2 || len(tokens)%2 != 0 {
		return nil
	}

	pts := make([]types.LatLon, 0, len(tokens)/2)
	for i := 0; i+1 < len(tokens); i += 2 {
		lat, ok := parseCoordinate(tokens[i])
		if !ok {
			return nil
		}
		lon, ok := parseCoordinate(tokens[i+1])
		if !ok {
			return nil
		}
		pts = append(pts, types.LatLon{Lat: lat, Lon: -lon})
	}
	return pts
}

func parseCoordinate(tok string) (float64, bool) {
	if strings.Contains(tok, ".") {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return float64(n) / 100, true
}
