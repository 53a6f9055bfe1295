package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dbsink "github.com/wxwire/wxwire/internal/sinks/db"
	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/internal/types"
	"github.com/wxwire/wxwire/pkg/config"
)

func newTestServer(db *dbsink.Sink) (*Server, *stats.ReceiverStats, *stats.PipelineStats) {
	rs := stats.NewReceiverStats()
	ps := stats.NewPipelineStats()
	cfg := config.DashboardData{ListenPort: 8080, PollIntervalSeconds: 5, RecentEventsLimit: 100}
	return New(cfg, rs, ps, stats.NewCleanupStats(), db, nil), rs, ps
}

func getJSON(t *testing.T, handler http.HandlerFunc, target string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return doc
}

func TestHandleStatus(t *testing.T) {
	s, rs, _ := newTestServer(nil)

	doc := getJSON(t, s.handleStatus, "/api/status")
	if doc["status"] != "degraded" || doc["connected"] != false {
		t.Errorf("disconnected doc = %v", doc)
	}

	rs.Connected.Set(1)
	doc = getJSON(t, s.handleStatus, "/api/status")
	if doc["status"] != "ok" || doc["connected"] != true {
		t.Errorf("connected doc = %v", doc)
	}
	if doc["poll_interval_seconds"] != float64(5) {
		t.Errorf("poll_interval_seconds = %v", doc["poll_interval_seconds"])
	}
}

func TestHandleStats(t *testing.T) {
	s, rs, ps := newTestServer(nil)
	rs.MessagesReceived.Add(7)
	ps.Processed.Add(3)

	doc := getJSON(t, s.handleStats, "/api/stats")
	recv, ok := doc["receiver"].(map[string]interface{})
	if !ok || recv["messages_received_total"] != float64(7) {
		t.Errorf("receiver block = %v", doc["receiver"])
	}
	pipe, ok := doc["pipeline"].(map[string]interface{})
	if !ok || pipe["events_processed_total"] != float64(3) {
		t.Errorf("pipeline block = %v", doc["pipeline"])
	}
	if _, ok := doc["cleanup"]; !ok {
		t.Error("cleanup block missing")
	}
}

func TestHandleOffices(t *testing.T) {
	s, _, ps := newTestServer(nil)
	ps.MarkOffice("KTOP", time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC))

	doc := getJSON(t, s.handleOffices, "/api/offices")
	offices, ok := doc["offices"].([]interface{})
	if !ok || len(offices) != 1 {
		t.Fatalf("offices = %v", doc["offices"])
	}
	entry := offices[0].(map[string]interface{})
	if entry["cccc"] != "KTOP" || entry["messages_processed_total"] != float64(1) {
		t.Errorf("entry = %v", entry)
	}
}

func TestHandleRecentEventsWithoutDB(t *testing.T) {
	s, _, _ := newTestServer(nil)

	doc := getJSON(t, s.handleRecentEvents, "/api/events/recent")
	if doc["type"] != "FeatureCollection" {
		t.Errorf("type = %v", doc["type"])
	}
	features, ok := doc["features"].([]interface{})
	if !ok || len(features) != 0 {
		t.Errorf("features = %v", doc["features"])
	}
}

func TestHandleRecentEventsFeed(t *testing.T) {
	sink, err := dbsink.New(config.DatabaseData{
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "wx.db"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close(context.Background())

	issued := time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC)
	ev := &types.WeatherEvent{
		EventID:         "ev-1",
		ProductID:       types.MakeProductID("KTOP", "TORTOP", issued),
		AwipsID:         "TORTOP",
		Cccc:            "KTOP",
		ProductCategory: "TOR",
		IssuedAt:        issued,
		ReceivedAt:      issued,
		Segments: []types.Segment{{
			Polygon: []types.LatLon{
				{Lat: 39.04, Lon: -95.76},
				{Lat: 39.06, Lon: -95.70},
				{Lat: 38.98, Lon: -95.66},
			},
			Body: "warning body",
		}},
	}
	if res := sink.Send(context.Background(), ev); res.Err != nil {
		t.Fatalf("seed event: %+v", res)
	}

	s, _, _ := newTestServer(sink)
	doc := getJSON(t, s.handleRecentEvents, "/api/events/recent?limit=10")
	features := doc["features"].([]interface{})
	if len(features) != 1 {
		t.Fatalf("features = %d, want 1", len(features))
	}

	feature := features[0].(map[string]interface{})
	geom := feature["geometry"].(map[string]interface{})
	if geom["type"] != "Polygon" {
		t.Errorf("geometry = %v", geom)
	}
	props := feature["properties"].(map[string]interface{})
	if props["cccc"] != "KTOP" || props["product_name"] != "Tornado Warning" {
		t.Errorf("properties = %v", props)
	}
}

func TestEventFeatures(t *testing.T) {
	ev := dbsink.Event{
		EventID:         "ev-1",
		Cccc:            "KTOP",
		AwipsID:         "TORTOP",
		ProductCategory: "TOR",
	}

	// No polygon segments: a single feature with null geometry.
	features := eventFeatures(ev, []dbsink.EventContent{{SegmentIndex: 0}})
	if len(features) != 1 || features[0].Geometry != nil {
		t.Errorf("plain features = %+v", features)
	}

	wkt := "POLYGON((-95.76 39.04, -95.70 39.06, -95.66 38.98, -95.76 39.04))"
	bad := "POLYGON((broken"
	features = eventFeatures(ev, []dbsink.EventContent{
		{SegmentIndex: 0, PolygonWKT: &wkt},
		{SegmentIndex: 1, PolygonWKT: &bad},
	})
	if len(features) != 1 {
		t.Fatalf("features = %d, want 1 (bad WKT skipped)", len(features))
	}
	if features[0].Properties["segment_index"] != 0 {
		t.Errorf("properties = %v", features[0].Properties)
	}
}

func TestWKTRing(t *testing.T) {
	ring, err := wktRing("POLYGON((-95.76 39.04, -95.70 39.06, -95.66 38.98, -95.76 39.04))")
	if err != nil {
		t.Fatal(err)
	}
	if len(ring) != 4 {
		t.Fatalf("ring = %v", ring)
	}
	if ring[0] != [2]float64{-95.76, 39.04} {
		t.Errorf("first vertex = %v", ring[0])
	}

	bad := []string{
		"LINESTRING(0 0, 1 1)",
		"POLYGON((-95.76))",
		"POLYGON((x y, -95.70 39.06))",
	}
	for _, wkt := range bad {
		if _, err := wktRing(wkt); err == nil {
			t.Errorf("wktRing(%q) succeeded", wkt)
		}
	}
}

func TestMetricsExposition(t *testing.T) {
	rs := stats.NewReceiverStats()
	ps := stats.NewPipelineStats()
	cs := stats.NewCleanupStats()

	rs.MessagesReceived.Add(5)
	rs.Connected.Set(1)
	ps.Processed.Add(2)
	ps.MarkFiltered("duplicate")
	ps.Sink("db").Success.Inc()
	cs.MarkDeleted("age_fallback", 3)
	cs.MarkCycle(time.Now())

	registry := prometheus.NewRegistry()
	if err := registry.Register(newStatsCollector(rs, ps, cs)); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"wxwire_messages_received_total 5",
		"wxwire_connected 1",
		"wxwire_events_processed_total 2",
		`wxwire_events_filtered_total{reason="duplicate"} 1`,
		`wxwire_sink_success_total{sink="db"} 1`,
		"wxwire_cleanup_cycles_total 1",
		`wxwire_events_deleted_total{strategy="age_fallback"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
