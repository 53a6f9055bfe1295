package wxparser

import (
	"reflect"
	"testing"
	"time"
)

func TestExpandUGC(t *testing.T) {
	ref := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		ugc         string
		wantCodes   []string
		wantExpires time.Time
		wantErr     bool
	}{
		{
			name:        "single county",
			ugc:         "KSC177-011945-",
			wantCodes:   []string{"KSC177"},
			wantExpires: time.Date(2024, 6, 1, 19, 45, 0, 0, time.UTC),
		},
		{
			name:        "range expands inclusive",
			ugc:         "COC001>005-013-011300-",
			wantCodes:   []string{"COC001", "COC002", "COC003", "COC004", "COC005", "COC013"},
			wantExpires: time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			name:        "state carries across bare numbers",
			ugc:         "COZ035-036-040-011300-",
			wantCodes:   []string{"COZ035", "COZ036", "COZ040"},
			wantExpires: time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			name:        "multiple states same format",
			ugc:         "KSC023-NEC055-011300-",
			wantCodes:   []string{"KSC023", "NEC055"},
			wantExpires: time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			name:    "mixed county and zone",
			ugc:     "COC001-COZ035-011300-",
			wantErr: true,
		},
		{
			name:    "backward range",
			ugc:     "COC005>001-011300-",
			wantErr: true,
		},
		{
			name:    "missing expiration",
			ugc:     "KSC177-",
			wantErr: true,
		},
		{
			name:    "opens with bare number",
			ugc:     "035-036-011300-",
			wantErr: true,
		},
		{
			name:    "expiration out of range",
			ugc:     "KSC177-016099-",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, expires, err := expandUGC(tt.ugc, ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expandUGC(%q) succeeded, want error", tt.ugc)
				}
				return
			}
			if err != nil {
				t.Fatalf("expandUGC(%q): %v", tt.ugc, err)
			}
			if !reflect.DeepEqual(codes, tt.wantCodes) {
				t.Errorf("codes = %v, want %v", codes, tt.wantCodes)
			}
			if !expires.Equal(tt.wantExpires) {
				t.Errorf("expires = %v, want %v", expires, tt.wantExpires)
			}
		})
	}
}

func TestResolveDayHourMin(t *testing.T) {
	tests := []struct {
		name    string
		ddhhmm  string
		ref     time.Time
		want    time.Time
		wantErr bool
	}{
		{
			name:   "same month",
			ddhhmm: "011930",
			ref:    time.Date(2024, 6, 1, 19, 30, 5, 0, time.UTC),
			want:   time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC),
		},
		{
			name:   "previous month rollover",
			ddhhmm: "302350",
			ref:    time.Date(2024, 7, 1, 0, 10, 0, 0, time.UTC),
			want:   time.Date(2024, 6, 30, 23, 50, 0, 0, time.UTC),
		},
		{
			name:   "year rollover backward",
			ddhhmm: "312340",
			ref:    time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC),
			want:   time.Date(2024, 12, 31, 23, 40, 0, 0, time.UTC),
		},
		{
			name:   "next month for expirations near boundary",
			ddhhmm: "010030",
			ref:    time.Date(2024, 6, 30, 23, 55, 0, 0, time.UTC),
			want:   time.Date(2024, 7, 1, 0, 30, 0, 0, time.UTC),
		},
		{
			name:    "hour out of range",
			ddhhmm:  "012460",
			ref:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			wantErr: true,
		},
		{
			name:    "too short",
			ddhhmm:  "0119",
			ref:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDayHourMin(tt.ddhhmm, tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveDayHourMin(%q) succeeded, want error", tt.ddhhmm)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveDayHourMin(%q): %v", tt.ddhhmm, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("resolveDayHourMin(%q) = %v, want %v", tt.ddhhmm, got, tt.want)
			}
		})
	}
}

func TestIsUGCStart(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"KSC177-011945-", true},
		{"COZ035>040-011300-", true},
		{"KSC177-011945", false},
		{"/O.NEW.KTOP.TO.W.0015.240601T1930Z-240601T1945Z/", false},
		{"LAT...LON 3904 9576", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isUGCStart(tt.line); got != tt.want {
			t.Errorf("isUGCStart(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
