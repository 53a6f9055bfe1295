package wxparser

import (
	"reflect"
	"testing"
	"time"

	"github.com/wxwire/wxwire/internal/types"
)

func TestParseHeadlines(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name:  "single line",
			lines: []string{"...A TORNADO WARNING REMAINS IN EFFECT UNTIL 245 PM CDT..."},
			want:  []string{"A TORNADO WARNING REMAINS IN EFFECT UNTIL 245 PM CDT"},
		},
		{
			name: "wrapped across lines",
			lines: []string{
				"...A SEVERE THUNDERSTORM WARNING REMAINS IN EFFECT UNTIL 4 PM",
				"FOR SHAWNEE AND JACKSON COUNTIES...",
			},
			want: []string{"A SEVERE THUNDERSTORM WARNING REMAINS IN EFFECT UNTIL 4 PM FOR SHAWNEE AND JACKSON COUNTIES"},
		},
		{
			name: "multiple headlines",
			lines: []string{
				"...HEAT ADVISORY IN EFFECT UNTIL 8 PM...",
				"",
				"...AIR QUALITY ALERT IN EFFECT...",
			},
			want: []string{"HEAT ADVISORY IN EFFECT UNTIL 8 PM", "AIR QUALITY ALERT IN EFFECT"},
		},
		{
			name: "unterminated block discarded",
			lines: []string{
				"...A WARNING THAT NEVER",
				"",
				"regular body text",
			},
			want: nil,
		},
		{
			name:  "body text without dots ignored",
			lines: []string{"The National Weather Service has issued a warning."},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHeadlines(tt.lines)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseHeadlines = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseIBWTags(t *testing.T) {
	lines := []string{
		"TORNADO...RADAR INDICATED",
		"TORNADO DAMAGE THREAT...CATASTROPHIC",
		"MAX HAIL SIZE...2.75 IN",
		"MAX WIND GUST...70 MPH",
		"LAT...LON 3904 9576 3906 9570",
		"TIME...MOT...LOC 1830Z 240DEG 25KT 3904 9576",
		"...THIS IS A HEADLINE NOT A TAG...",
		"/O.NEW.KTOP.TO.W.0015.240601T1930Z-240601T1945Z/",
	}

	got := parseIBWTags(lines)
	want := map[string]string{
		"TORNADO":               "RADAR INDICATED",
		"TORNADO_DAMAGE_THREAT": "CATASTROPHIC",
		"MAX_HAIL_SIZE":         "2.75",
		"MAX_WIND_GUST":         "70",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseIBWTags = %v, want %v", got, want)
	}
}

func TestParseIBWTagsNone(t *testing.T) {
	if got := parseIBWTags([]string{"no tags here", ""}); got != nil {
		t.Errorf("parseIBWTags = %v, want nil", got)
	}
}

func TestParsePolygon(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []types.LatLon
	}{
		{
			name:  "hundredths on one line",
			lines: []string{"LAT...LON 3904 9576 3906 9570 3898 9566"},
			want: []types.LatLon{
				{Lat: 39.04, Lon: -95.76},
				{Lat: 39.06, Lon: -95.70},
				{Lat: 38.98, Lon: -95.66},
			},
		},
		{
			name: "continuation lines",
			lines: []string{
				"LAT...LON 3904 9576 3906 9570",
				"      3898 9566 3896 9574",
				"",
			},
			want: []types.LatLon{
				{Lat: 39.04, Lon: -95.76},
				{Lat: 39.06, Lon: -95.70},
				{Lat: 38.98, Lon: -95.66},
				{Lat: 38.96, Lon: -95.74},
			},
		},
		{
			name:  "decimal degrees accepted",
			lines: []string{"LAT...LON 39.04 95.76 39.06 95.70 38.98 95.66"},
			want: []types.LatLon{
				{Lat: 39.04, Lon: -95.76},
				{Lat: 39.06, Lon: -95.70},
				{Lat: 38.98, Lon: -95.66},
			},
		},
		{
			name:  "too few vertices",
			lines: []string{"LAT...LON 3904 9576 3906 9570"},
			want:  nil,
		},
		{
			name:  "odd token count",
			lines: []string{"LAT...LON 3904 9576 3906"},
			want:  nil,
		},
		{
			name:  "no polygon line",
			lines: []string{"some body text"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePolygon(tt.lines)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parsePolygon = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimeMotLoc(t *testing.T) {
	issued := time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC)

	tml := parseTimeMotLoc([]string{"TIME...MOT...LOC 1830Z 240DEG 25KT 3904 9576"}, issued)
	if tml == nil {
		t.Fatal("expected a TIME...MOT...LOC decode")
	}
	if !tml.Time.Equal(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("Time = %v", tml.Time)
	}
	if tml.DirectionDeg != 240 || tml.SpeedKt != 25 {
		t.Errorf("motion = %d deg %d kt", tml.DirectionDeg, tml.SpeedKt)
	}
	if len(tml.Locations) != 1 || tml.Locations[0] != (types.LatLon{Lat: 39.04, Lon: -95.76}) {
		t.Errorf("Locations = %v", tml.Locations)
	}

	// Observation clock just past midnight UTC against a late-evening
	// issuance belongs to the next day.
	issued = time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC)
	tml = parseTimeMotLoc([]string{"TIME...MOT...LOC 0010Z 180DEG 30KT 3904 9576"}, issued)
	if tml == nil {
		t.Fatal("expected a TIME...MOT...LOC decode")
	}
	if !tml.Time.Equal(time.Date(2024, 6, 2, 0, 10, 0, 0, time.UTC)) {
		t.Errorf("rollover Time = %v, want next day", tml.Time)
	}

	if parseTimeMotLoc([]string{"no motion line"}, issued) != nil {
		t.Error("expected nil for body without a motion line")
	}
}
