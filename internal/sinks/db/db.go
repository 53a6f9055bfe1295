// Package db persists weather events to PostgreSQL or SQLite and runs
// the retention-based cleanup loop.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wxwire/wxwire/internal/log"
	"github.com/wxwire/wxwire/internal/sinks"
	"github.com/wxwire/wxwire/internal/types"
	"github.com/wxwire/wxwire/pkg/config"
)

// Sink writes each weather event as one events row, N segment rows, and
// M metadata rows in a single transaction.
type Sink struct {
	DB     *gorm.DB
	cfg    config.DatabaseData
	logger *zap.SugaredLogger
}

// New opens the database named by the configured URL. postgres:// URLs
// use the PostgreSQL driver; sqlite:// URLs the pure-Go SQLite driver.
func New(cfg config.DatabaseData, logger *zap.SugaredLogger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	dbLogger := gormlogger.New(
		zap.NewStdLog(log.GetZapLogger()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	dialector, err := dialectorFor(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	if cfg.PoolSize > 0 {
		sqlDB.SetMaxOpenConns(cfg.PoolSize)
		sqlDB.SetMaxIdleConns(cfg.PoolSize)
	}
	if cfg.PoolRecycleSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.PoolRecycleSeconds) * time.Second)
	}

	if err := gdb.AutoMigrate(&Event{}, &EventContent{}, &EventMetadata{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Sink{DB: gdb, cfg: cfg, logger: logger.Named("db")}, nil
}

// cleanupSession opens a separate single-connection handle to the same
// database so long-running cleanup scans never occupy the ingest pool.
func (s *Sink) cleanupSession() (*gorm.DB, error) {
	dialector, err := dialectorFor(s.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: s.DB.Logger})
	if err != nil {
		return nil, fmt.Errorf("open cleanup session: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("cleanup session pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return gdb, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", url)
	}
}

func (s *Sink) Name() string { return "db" }

// Send inserts the event transactionally. Constraint violations are
// terminal for the event; connection errors are transient.
func (s *Sink) Send(ctx context.Context, ev types.Event) sinks.Result {
	we, ok := ev.(*types.WeatherEvent)
	if !ok {
		return sinks.Ok()
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(eventRow(we)).Error; err != nil {
			return err
		}
		for i := range we.Segments {
			if err := tx.Create(contentRow(we, i)).Error; err != nil {
				return err
			}
		}
		if rows := metadataRows(we); len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return sinks.Ok()
	}
	if isConstraintError(err) {
		return sinks.TerminalErr(err)
	}
	return sinks.TransientErr(err)
}

func (s *Sink) Close(context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecentEvents returns the newest events by receipt time, with their
// segment rows attached, for the dashboard feed.
func (s *Sink) RecentEvents(ctx context.Context, limit int) ([]Event, map[string][]EventContent, error) {
	var events []Event
	if err := s.DB.WithContext(ctx).Order("received_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		return events, map[string][]EventContent{}, nil
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	var contents []EventContent
	if err := s.DB.WithContext(ctx).Where("event_id IN ?", ids).Order("segment_index").Find(&contents).Error; err != nil {
		return nil, nil, err
	}
	byEvent := make(map[string][]EventContent, len(events))
	for _, c := range contents {
		byEvent[c.EventID] = append(byEvent[c.EventID], c)
	}
	return events, byEvent, nil
}

func eventRow(we *types.WeatherEvent) *Event {
	return &Event{
		EventID:         we.EventID,
		ProductID:       we.ProductID,
		Cccc:            we.Cccc,
		AwipsID:         we.AwipsID,
		ProductCategory: we.ProductCategory,
		IssuedAt:        we.IssuedAt.UTC(),
		ReceivedAt:      we.ReceivedAt.UTC(),
		WMO:             we.WMO,
		Text:            we.Text,
	}
}

func contentRow(we *types.WeatherEvent, i int) *EventContent {
	seg := we.Segments[i]
	row := &EventContent{
		EventID:      we.EventID,
		SegmentIndex: i,
		Body:         seg.Body,
	}
	if !seg.UGCExpiresAt.IsZero() {
		t := seg.UGCExpiresAt.UTC()
		row.UGCExpiresAt = &t
	}
	exp, ufn := vtecExpiry(seg.VTEC)
	if !exp.IsZero() {
		row.VTECExpiresAt = &exp
	}
	row.UntilFurtherNotice = ufn
	if len(seg.Polygon) >= 3 {
		wkt := polygonWKT(seg.Polygon)
		row.PolygonWKT = &wkt
	}
	return row
}

// vtecExpiry is the latest VTEC end time in the segment, plus whether
// any of its events runs until further notice.
func vtecExpiry(vtecs []types.VTEC) (latest time.Time, ufn bool) {
	for _, v := range vtecs {
		if v.UntilFurtherNotice() {
			return time.Time{}, true
		}
		if v.End.After(latest) {
			latest = v.End.UTC()
		}
	}
	return latest, false
}

func metadataRows(we *types.WeatherEvent) []EventMetadata {
	var rows []EventMetadata
	for i, seg := range we.Segments {
		for j, v := range seg.VTEC {
			rows = append(rows, EventMetadata{
				EventID: we.EventID,
				Key:     fmt.Sprintf("vtec.%d.%d", i, j),
				Value:   v.Raw,
			})
		}
		for j, h := range seg.HVTEC {
			rows = append(rows, EventMetadata{
				EventID: we.EventID,
				Key:     fmt.Sprintf("hvtec.%d.%d", i, j),
				Value:   h.Raw,
			})
		}
		for k, v := range seg.IBWTags {
			rows = append(rows, EventMetadata{
				EventID: we.EventID,
				Key:     fmt.Sprintf("ibw.%d.%s", i, k),
				Value:   v,
			})
		}
	}
	return rows
}

// polygonWKT renders a closed WKT POLYGON, lon before lat, appending
// the first vertex when the ring is open.
func polygonWKT(pts []types.LatLon) string {
	var b strings.Builder
	b.WriteString("POLYGON((")
	for i, p := range pts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.2f %.2f", p.Lon, p.Lat)
	}
	if pts[0] != pts[len(pts)-1] {
		fmt.Fprintf(&b, ", %.2f %.2f", pts[0].Lon, pts[0].Lat)
	}
	b.WriteString("))")
	return b.String()
}

func isConstraintError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "constraint") ||
		strings.Contains(msg, "duplicate key")
}
