package geo

import "testing"

func TestNewLookup(t *testing.T) {
	l, err := NewLookup()
	if err != nil {
		t.Fatalf("NewLookup: %v", err)
	}
	if l.Len() == 0 {
		t.Fatal("bundled dataset loaded no entries")
	}

	d, ok := l.Resolve("KSC177")
	if !ok {
		t.Fatal("KSC177 missing from bundled dataset")
	}
	if d.Name != "Shawnee" || d.State != "KS" || d.Type != "county" {
		t.Errorf("KSC177 = %+v", d)
	}
	if d.Centroid.Lat == 0 || d.Centroid.Lon >= 0 {
		t.Errorf("KSC177 centroid = %+v, want west-negative longitude", d.Centroid)
	}

	z, ok := l.Resolve("COZ035")
	if !ok {
		t.Fatal("COZ035 missing from bundled dataset")
	}
	if z.Type != "zone" {
		t.Errorf("COZ035 type = %q, want zone", z.Type)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	l, err := NewLookup()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Resolve("ksc177"); !ok {
		t.Error("lowercase code should resolve")
	}
}

func TestResolveMiss(t *testing.T) {
	l, err := NewLookup()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Resolve("XXC999"); ok {
		t.Error("unknown code resolved")
	}
}

func TestNewLookupFromRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"wrong field count", "KSC177,Shawnee,KS,county,20177,39.04"},
		{"bad latitude", "KSC177,Shawnee,KS,county,20177,north,-95.76"},
		{"bad longitude", "KSC177,Shawnee,KS,county,20177,39.04,west"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newLookupFrom([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLookupFromSkipsCommentsAndBlanks(t *testing.T) {
	data := "# comment line\n\nKSC177,Shawnee,KS,county,20177,39.04,-95.76\n"
	l, err := newLookupFrom([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}
