// Package geo resolves UGC codes to county and forecast-zone descriptors.
// The dataset is compiled in and loaded once; lookups are read-only and
// safe for concurrent use by every parser goroutine.
package geo

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	_ "embed"

	"github.com/wxwire/wxwire/internal/types"
)

//go:embed data/ugc.csv
var ugcData []byte

// Lookup is an immutable UGC resolution table.
type Lookup struct {
	byCode map[string]types.GeoDescriptor
}

// NewLookup builds the lookup table from the bundled dataset.
func NewLookup() (*Lookup, error) {
	return newLookupFrom(ugcData)
}

// newLookupFrom parses CSV rows of the form
// code,name,state,type,fips,lat,lon. Blank lines and #-comments are skipped.
func newLookupFrom(data []byte) (*Lookup, error) {
	l := &Lookup{byCode: make(map[string]types.GeoDescriptor)}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 7 {
			return nil, fmt.Errorf("ugc dataset line %d: expected 7 fields, got %d", lineNo, len(fields))
		}

		lat, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("ugc dataset line %d: bad latitude %q", lineNo, fields[5])
		}
		lon, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return nil, fmt.Errorf("ugc dataset line %d: bad longitude %q", lineNo, fields[6])
		}

		code := strings.ToUpper(fields[0])
		l.byCode[code] = types.GeoDescriptor{
			Code:     code,
			Name:     fields[1],
			State:    fields[2],
			Type:     fields[3],
			FIPS:     fields[4],
			Centroid: types.LatLon{Lat: lat, Lon: lon},
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return l, nil
}

// Resolve returns the descriptor for a UGC code. A miss is not an error;
// events simply continue without enrichment for that code.
func (l *Lookup) Resolve(code string) (types.GeoDescriptor, bool) {
	d, ok := l.byCode[strings.ToUpper(code)]
	return d, ok
}

// Len returns the number of entries in the table.
func (l *Lookup) Len() int {
	return len(l.byCode)
}
