package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/pkg/config"
)

// Retention buckets by product category, per NWS guidance for how long
// each product class stays actionable.
var (
	shortDurationCategories  = []string{"TOR", "SVR", "EWW", "SMW"}
	mediumDurationCategories = []string{"FFW", "FLW", "CFW"}
	longDurationCategories   = []string{"WSW", "FFA"}
	routineCategories        = []string{"ZFP", "NOW", "SPS"}
	administrativeCategories = []string{"PNS", "LSR", "PSH"}
)

// CycleReport summarizes one cleanup cycle.
type CycleReport struct {
	DryRun  bool
	Deleted map[string]int64
	Total   int64
}

// Cleaner runs the retention-based deletion strategies on a schedule,
// over its own database session so scans never contend with ingest
// writes for pool connections.
type Cleaner struct {
	db     *gorm.DB
	cfg    config.CleanupData
	clock  clockwork.Clock
	logger *zap.SugaredLogger
	stats  *stats.CleanupStats
	cron   *cron.Cron
}

// NewCleaner builds a cleanup loop over the sink's database, on a
// dedicated single-connection session.
func NewCleaner(sink *Sink, cfg config.CleanupData, clock clockwork.Clock, st *stats.CleanupStats, logger *zap.SugaredLogger) (*Cleaner, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if st == nil {
		st = stats.NewCleanupStats()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	gdb, err := sink.cleanupSession()
	if err != nil {
		return nil, err
	}
	return &Cleaner{
		db:     gdb,
		cfg:    cfg,
		clock:  clock,
		logger: logger.Named("cleanup"),
		stats:  st,
	}, nil
}

// Start schedules the cleanup cycle every configured interval.
func (c *Cleaner) Start(ctx context.Context) error {
	c.cron = cron.New()
	spec := fmt.Sprintf("@every %dh", c.cfg.IntervalHours)
	_, err := c.cron.AddFunc(spec, func() {
		if _, err := c.RunOnce(ctx); err != nil {
			c.logger.Errorw("cleanup cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	c.cron.Start()
	c.logger.Infow("cleanup scheduled", "interval_hours", c.cfg.IntervalHours, "dry_run", c.cfg.DryRunMode)
	return nil
}

// Stop halts the schedule, waiting for a running cycle to finish, then
// closes the dedicated session.
func (c *Cleaner) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
	if sqlDB, err := c.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// RunOnce executes the deletion strategies in order under the per-cycle
// cap. Idempotent; rerunning removes nothing extra.
func (c *Cleaner) RunOnce(ctx context.Context) (CycleReport, error) {
	now := c.clock.Now().UTC()
	report := CycleReport{DryRun: c.cfg.DryRunMode, Deleted: make(map[string]int64)}
	remaining := int64(c.cfg.MaxDeletionsPerCycle)

	// respect_product_expiration is the master switch for the two
	// expiration-driven strategies.
	expirations := boolVal(c.cfg.RespectProductExpiration)

	strategies := []struct {
		name    string
		enabled bool
		run     func(context.Context, time.Time, int64) ([]string, error)
	}{
		{"ugc_expiration", expirations && boolVal(c.cfg.RespectUGCExpiration), c.ugcExpired},
		{"vtec_expiration", expirations && boolVal(c.cfg.RespectVTECExpiration), c.vtecExpired},
		{"product_retention", boolVal(c.cfg.UseProductSpecificRetention), c.categoryExpired},
		{"age_fallback", true, c.ageExpired},
	}

	for _, s := range strategies {
		if !s.enabled || remaining <= 0 {
			continue
		}
		ids, err := s.run(ctx, now, remaining)
		if err != nil {
			return report, fmt.Errorf("%s: %w", s.name, err)
		}
		if len(ids) == 0 {
			continue
		}
		if c.cfg.DryRunMode {
			c.logger.Infow("dry run: would delete events",
				"strategy", s.name, "count", len(ids))
		} else {
			if err := c.deleteEvents(ctx, ids); err != nil {
				return report, fmt.Errorf("%s delete: %w", s.name, err)
			}
			c.stats.MarkDeleted(s.name, int64(len(ids)))
		}
		report.Deleted[s.name] = int64(len(ids))
		report.Total += int64(len(ids))
		remaining -= int64(len(ids))
	}

	c.stats.MarkCycle(now)
	c.logger.Infow("cleanup cycle complete", "deleted", report.Total, "dry_run", report.DryRun)
	return report, nil
}

// ugcExpired finds events where every segment's UGC expiration has
// passed. Segments without a UGC expiration keep the event alive.
func (c *Cleaner) ugcExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	var ids []string
	err := c.db.WithContext(ctx).Model(&Event{}).
		Where("EXISTS (SELECT 1 FROM event_content ec WHERE ec.event_id = events.event_id AND ec.ugc_expires_at IS NOT NULL)").
		Where("NOT EXISTS (SELECT 1 FROM event_content ec WHERE ec.event_id = events.event_id AND (ec.ugc_expires_at IS NULL OR ec.ugc_expires_at > ?))", now).
		Limit(int(limit)).
		Pluck("event_id", &ids).Error
	return ids, err
}

// vtecExpired finds events where every VTEC-bearing segment expired
// more than the buffer ago. Until-further-notice events never qualify.
func (c *Cleaner) vtecExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	cutoff := now.Add(-time.Duration(c.cfg.VTECExpirationBufferHours) * time.Hour)
	var ids []string
	err := c.db.WithContext(ctx).Model(&Event{}).
		Where("EXISTS (SELECT 1 FROM event_content ec WHERE ec.event_id = events.event_id AND ec.vtec_expires_at IS NOT NULL)").
		Where("NOT EXISTS (SELECT 1 FROM event_content ec WHERE ec.event_id = events.event_id AND (ec.until_further_notice OR (ec.vtec_expires_at IS NOT NULL AND ec.vtec_expires_at > ?)))", cutoff).
		Limit(int(limit)).
		Pluck("event_id", &ids).Error
	return ids, err
}

// categoryExpired applies the per-category retention table against
// issuance time.
func (c *Cleaner) categoryExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	buckets := []struct {
		categories []string
		retention  time.Duration
	}{
		{shortDurationCategories, time.Duration(c.cfg.ShortDurationRetentionHours) * time.Hour},
		{mediumDurationCategories, time.Duration(c.cfg.MediumDurationRetentionHours) * time.Hour},
		{longDurationCategories, time.Duration(c.cfg.LongDurationRetentionHours) * time.Hour},
		{routineCategories, time.Duration(c.cfg.RoutineRetentionHours) * time.Hour},
		{administrativeCategories, time.Duration(c.cfg.AdministrativeRetentionDays) * 24 * time.Hour},
	}

	var ids []string
	for _, b := range buckets {
		if limit-int64(len(ids)) <= 0 {
			break
		}
		var batch []string
		err := c.db.WithContext(ctx).Model(&Event{}).
			Where("product_category IN ?", b.categories).
			Where("issued_at < ?", now.Add(-b.retention)).
			Limit(int(limit)-len(ids)).
			Pluck("event_id", &batch).Error
		if err != nil {
			return nil, err
		}
		ids = append(ids, batch...)
	}
	return ids, nil
}

// ageExpired removes anything older than the default retention window.
func (c *Cleaner) ageExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	cutoff := now.Add(-time.Duration(c.cfg.DefaultRetentionDays) * 24 * time.Hour)
	var ids []string
	err := c.db.WithContext(ctx).Model(&Event{}).
		Where("issued_at < ?", cutoff).
		Limit(int(limit)).
		Pluck("event_id", &ids).Error
	return ids, err
}

func (c *Cleaner) deleteEvents(ctx context.Context, ids []string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id IN ?", ids).Delete(&EventMetadata{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id IN ?", ids).Delete(&EventContent{}).Error; err != nil {
			return err
		}
		return tx.Where("event_id IN ?", ids).Delete(&Event{}).Error
	})
}

func boolVal(b *bool) bool { return b != nil && *b }
