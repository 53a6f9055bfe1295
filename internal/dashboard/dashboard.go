// Package dashboard serves the relay's observability surface: JSON
// status and stats endpoints, a GeoJSON recent-events feed, and
// Prometheus exposition.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wxwire/wxwire/internal/receiver"
	dbsink "github.com/wxwire/wxwire/internal/sinks/db"
	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/pkg/config"
)

// Server is the HTTP face of the relay.
type Server struct {
	cfg      config.DashboardData
	receiver *stats.ReceiverStats
	pipeline *stats.PipelineStats
	cleanup  *stats.CleanupStats
	db       *dbsink.Sink
	logger   *zap.SugaredLogger

	startedAt time.Time
	httpSrv   *http.Server
}

// New assembles the dashboard. db may be nil when the DB sink is not
// configured; the events feed then reports empty collections.
func New(cfg config.DashboardData, rs *stats.ReceiverStats, ps *stats.PipelineStats, cs *stats.CleanupStats, db *dbsink.Sink, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:       cfg,
		receiver:  rs,
		pipeline:  ps,
		cleanup:   cs,
		db:        db,
		logger:    logger.Named("dashboard"),
		startedAt: time.Now(),
	}
}

// Start serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(newStatsCollector(s.receiver, s.pipeline, s.cleanup)); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	router := mux.NewRouter()
	router.Use(s.requestLogger)
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/api/offices", s.handleOffices).Methods(http.MethodGet)
	router.HandleFunc("/api/events/recent", s.handleRecentEvents).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", s.cfg.ListenAddr, s.cfg.ListenPort)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("dashboard listening", "addr", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	rs := s.receiver.Snapshot()
	status := "degraded"
	if rs.Connected == 1 {
		status = "ok"
	}
	writeJSON(w, map[string]interface{}{
		"status":                status,
		"connected":             rs.Connected == 1,
		"uptime_seconds":        time.Since(s.startedAt).Seconds(),
		"poll_interval_seconds": s.cfg.PollIntervalSeconds,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]interface{}{
		"receiver": s.receiver.Snapshot(),
		"pipeline": s.pipeline.Snapshot(),
	}
	if s.cleanup != nil {
		doc["cleanup"] = s.cleanup.Snapshot()
	}
	writeJSON(w, doc)
}

// officeEntry is one row of the per-office activity view.
type officeEntry struct {
	Cccc         string    `json:"cccc"`
	Processed    int64     `json:"messages_processed_total"`
	LastActivity time.Time `json:"last_activity"`
}

func (s *Server) handleOffices(w http.ResponseWriter, _ *http.Request) {
	snap := s.pipeline.Snapshot()
	entries := make([]officeEntry, 0, len(snap.Offices))
	for cccc, o := range snap.Offices {
		entries = append(entries, officeEntry{
			Cccc:         cccc,
			Processed:    o.Processed,
			LastActivity: o.LastActivity,
		})
	}
	writeJSON(w, map[string]interface{}{"offices": entries})
}

// handleRecentEvents returns the newest stored events as a GeoJSON
// FeatureCollection. Segments with polygons become Polygon features;
// the rest carry null geometry.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.RecentEventsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= limit {
			limit = n
		}
	}

	features := []geoJSONFeature{}
	if s.db != nil {
		events, contents, err := s.db.RecentEvents(r.Context(), limit)
		if err != nil {
			s.logger.Errorw("recent events query failed", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		for _, ev := range events {
			features = append(features, eventFeatures(ev, contents[ev.EventID])...)
		}
	}

	writeJSON(w, map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
}

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   interface{}            `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

func eventFeatures(ev dbsink.Event, contents []dbsink.EventContent) []geoJSONFeature {
	props := map[string]interface{}{
		"event_id":         ev.EventID,
		"product_id":       ev.ProductID,
		"cccc":             ev.Cccc,
		"awips_id":         ev.AwipsID,
		"product_category": ev.ProductCategory,
		"product_name":     receiver.ProductName(ev.ProductCategory),
		"issued_at":        ev.IssuedAt,
		"received_at":      ev.ReceivedAt,
	}

	var features []geoJSONFeature
	for _, c := range contents {
		if c.PolygonWKT == nil {
			continue
		}
		ring, err := wktRing(*c.PolygonWKT)
		if err != nil {
			continue
		}
		segProps := make(map[string]interface{}, len(props)+1)
		for k, v := range props {
			segProps[k] = v
		}
		segProps["segment_index"] = c.SegmentIndex
		features = append(features, geoJSONFeature{
			Type:       "Feature",
			Geometry:   map[string]interface{}{"type": "Polygon", "coordinates": [][][2]float64{ring}},
			Properties: segProps,
		})
	}
	if len(features) == 0 {
		features = append(features, geoJSONFeature{Type: "Feature", Geometry: nil, Properties: props})
	}
	return features
}

// wktRing parses the POLYGON((lon lat, ...)) text the DB sink writes.
func wktRing(wkt string) ([][2]float64, error) {
	if !strings.HasPrefix(wkt, "POLYGON((") || !strings.HasSuffix(wkt, "))") {
		return nil, fmt.Errorf("not a polygon: %q", wkt)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(wkt, "POLYGON(("), "))")
	var ring [][2]float64
	for _, pair := range strings.Split(body, ",") {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, fmt.Errorf("bad vertex %q", pair)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		ring = append(ring, [2]float64{lon, lat})
	}
	return ring, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"size", rec.size,
			"duration_ms", float64(time.Since(start))/float64(time.Millisecond),
			"remote_addr", r.RemoteAddr)
	})
}

func writeJSON(w http.ResponseWriter, doc interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
