package wxparser

import (
	"testing"
	"time"

	"github.com/wxwire/wxwire/internal/types"
)

func TestParsePVTEC(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    types.VTEC
		wantErr bool
	}{
		{
			name: "new tornado warning",
			line: "/O.NEW.KTOP.TO.W.0015.240601T1930Z-240601T1945Z/",
			want: types.VTEC{
				Fixed:        types.VTECOperational,
				Action:       types.ActionNew,
				Office:       "KTOP",
				Phenomenon:   "TO",
				Significance: "W",
				ETN:          15,
				Begin:        time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC),
				End:          time.Date(2024, 6, 1, 19, 45, 0, 0, time.UTC),
			},
		},
		{
			name: "zero begin means already begun",
			line: "/O.CON.KDMX.FL.W.0006.000000T0000Z-240604T0000Z/",
			want: types.VTEC{
				Fixed:        types.VTECOperational,
				Action:       types.ActionContinue,
				Office:       "KDMX",
				Phenomenon:   "FL",
				Significance: "W",
				ETN:          6,
				End:          time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "zero end means until further notice",
			line: "/O.NEW.KDMX.FL.W.0007.240602T1200Z-000000T0000Z/",
			want: types.VTEC{
				Fixed:        types.VTECOperational,
				Action:       types.ActionNew,
				Office:       "KDMX",
				Phenomenon:   "FL",
				Significance: "W",
				ETN:          7,
				Begin:        time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC),
			},
		},
		{
			name:    "ETN zero out of range",
			line:    "/O.NEW.KTOP.TO.W.0000.240601T1930Z-240601T1945Z/",
			wantErr: true,
		},
		{
			name:    "unknown action",
			line:    "/O.XXX.KTOP.TO.W.0015.240601T1930Z-240601T1945Z/",
			wantErr: true,
		},
		{
			name:    "truncated",
			line:    "/O.NEW.KTOP.TO.W.0015/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePVTEC(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsePVTEC(%q) succeeded, want error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePVTEC(%q): %v", tt.line, err)
			}
			tt.want.Raw = tt.line
			if got != tt.want {
				t.Errorf("parsePVTEC(%q)\n got %+v\nwant %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestVTECUntilFurtherNotice(t *testing.T) {
	v, err := parsePVTEC("/O.NEW.KDMX.FL.W.0007.240602T1200Z-000000T0000Z/")
	if err != nil {
		t.Fatal(err)
	}
	if !v.UntilFurtherNotice() {
		t.Error("zero end time should report until further notice")
	}

	v, err = parsePVTEC("/O.NEW.KTOP.TO.W.0015.240601T1930Z-240601T1945Z/")
	if err != nil {
		t.Fatal(err)
	}
	if v.UntilFurtherNotice() {
		t.Error("scheduled end should not report until further notice")
	}
}

func TestParseHVTEC(t *testing.T) {
	hv, err := parseHVTEC("/DESI4.2.ER.240602T1200Z.240603T0000Z.240604T1200Z.NO/")
	if err != nil {
		t.Fatalf("parseHVTEC: %v", err)
	}
	if hv.NWSLI != "DESI4" {
		t.Errorf("NWSLI = %q", hv.NWSLI)
	}
	if hv.Severity != "2" {
		t.Errorf("Severity = %q", hv.Severity)
	}
	if hv.ImmediateCause != "ER" {
		t.Errorf("ImmediateCause = %q", hv.ImmediateCause)
	}
	if !hv.FloodCrest.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("FloodCrest = %v", hv.FloodCrest)
	}
	if hv.RecordStatus != "NO" {
		t.Errorf("RecordStatus = %q", hv.RecordStatus)
	}

	if _, err := parseHVTEC("/DESI4.9.ER.240602T1200Z.240603T0000Z.240604T1200Z.NO/"); err == nil {
		t.Error("severity 9 should be rejected")
	}
}

func TestParseVTECTime(t *testing.T) {
	got, err := parseVTECTime("240601T1930Z")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC)) {
		t.Errorf("parseVTECTime = %v", got)
	}

	got, err = parseVTECTime("000000T0000Z")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Errorf("all-zeros form should decode to the zero time, got %v", got)
	}

	if _, err := parseVTECTime("241301T1930Z"); err == nil {
		t.Error("month 13 should be rejected")
	}
}
