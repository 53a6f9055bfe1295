package config

import (
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"github.com/wxwire/wxwire/internal/log"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Options are stored as (group, key, value) rows in a settings table, which
// keeps the schema stable as the option surface grows.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	grp   TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (grp, key)
);
`

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure settings table: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from the SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	rows, err := s.db.Query(`SELECT grp, key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := map[string]map[string]string{}
	for rows.Next() {
		var grp, key, value string
		if err := rows.Scan(&grp, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if settings[grp] == nil {
			settings[grp] = map[string]string{}
		}
		settings[grp][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return configFromSettings(settings)
}

// configFromSettings materializes typed config structs from the flat
// (group, key, value) rows. Unknown keys are rejected so that typos in
// the settings table surface at startup rather than silently defaulting.
func configFromSettings(settings map[string]map[string]string) (*ConfigData, error) {
	config := &ConfigData{}

	for grp, kv := range settings {
		for key, value := range kv {
			if err := applySetting(config, grp, key, value); err != nil {
				return nil, err
			}
		}
	}

	return config, nil
}

func applySetting(c *ConfigData, grp, key, value string) error {
	b := newFieldBinder(grp, key, value)

	switch grp {
	case "receiver":
		r := &c.Receiver
		switch key {
		case "username":
			r.Username = value
		case "password":
			r.Password = value
		case "server":
			r.Server = value
		case "backup_server":
			r.BackupServer = value
		case "port":
			return b.intField(&r.Port)
		case "conference_room":
			r.ConferenceRoom = value
		case "auto_reconnect":
			return b.boolPtrField(&r.AutoReconnect)
		case "reconnect_delay":
			return b.floatField(&r.ReconnectDelay)
		case "max_reconnect_delay":
			return b.floatField(&r.MaxReconnectDelay)
		case "reconnect_backoff_factor":
			return b.floatField(&r.ReconnectBackoffFactor)
		case "max_reconnect_attempts":
			return b.intField(&r.MaxReconnectAttempts)
		case "max_auth_failures":
			return b.intField(&r.MaxAuthFailures)
		case "keepalive_interval":
			return b.floatField(&r.KeepaliveInterval)
		case "message_timeout":
			return b.floatField(&r.MessageTimeout)
		case "max_queue_size":
			return b.intField(&r.MaxQueueSize)
		default:
			return b.unknown()
		}
	case "pipeline":
		p := &c.Pipeline
		switch key {
		case "max_queue_size":
			return b.intField(&p.MaxQueueSize)
		case "processing_timeout_seconds":
			return b.floatField(&p.ProcessingTimeoutSeconds)
		case "error_handling_strategy":
			p.ErrorHandlingStrategy = value
		case "max_retries":
			return b.intField(&p.MaxRetries)
		case "retry_delay_seconds":
			return b.floatField(&p.RetryDelaySeconds)
		case "max_retry_delay_seconds":
			return b.floatField(&p.MaxRetryDelaySeconds)
		case "backoff_multiplier":
			return b.floatField(&p.BackoffMultiplier)
		case "circuit_breaker_threshold":
			return b.intField(&p.CircuitBreakerThreshold)
		case "circuit_breaker_timeout_seconds":
			return b.floatField(&p.CircuitBreakerTimeoutSeconds)
		case "shutdown_grace_seconds":
			return b.floatField(&p.ShutdownGraceSeconds)
		default:
			return b.unknown()
		}
	case "dedup":
		switch key {
		case "window_size":
			return b.intField(&c.Dedup.WindowSize)
		case "window_seconds":
			return b.intField(&c.Dedup.WindowSeconds)
		default:
			return b.unknown()
		}
	case "mqtt":
		if c.MQTT == nil {
			c.MQTT = &MQTTData{}
		}
		m := c.MQTT
		switch key {
		case "broker":
			m.Broker = value
		case "port":
			return b.intField(&m.Port)
		case "username":
			m.Username = value
		case "password":
			m.Password = value
		case "client_id":
			m.ClientID = value
		case "topic_prefix":
			m.TopicPrefix = value
		case "qos":
			return b.byteField(&m.QoS)
		case "retain":
			return b.boolField(&m.Retain)
		case "message_expiry_minutes":
			return b.intField(&m.MessageExpiryMinutes)
		case "max_queue_size":
			return b.intField(&m.MaxQueueSize)
		default:
			return b.unknown()
		}
	case "db":
		if c.Database == nil {
			c.Database = &DatabaseData{}
		}
		d := c.Database
		switch key {
		case "database_url":
			d.DatabaseURL = value
		case "pool_size":
			return b.intField(&d.PoolSize)
		case "pool_recycle_seconds":
			return b.intField(&d.PoolRecycleSeconds)
		default:
			return b.unknown()
		}
	case "db_cleanup":
		if c.Database == nil {
			c.Database = &DatabaseData{}
		}
		if c.Database.Cleanup == nil {
			c.Database.Cleanup = &CleanupData{}
		}
		cl := c.Database.Cleanup
		switch key {
		case "cleanup_enabled":
			return b.boolPtrField(&cl.Enabled)
		case "cleanup_interval_hours":
			return b.intField(&cl.IntervalHours)
		case "dry_run_mode":
			return b.boolField(&cl.DryRunMode)
		case "max_deletions_per_cycle":
			return b.intField(&cl.MaxDeletionsPerCycle)
		case "respect_product_expiration":
			return b.boolPtrField(&cl.RespectProductExpiration)
		case "respect_vtec_expiration":
			return b.boolPtrField(&cl.RespectVTECExpiration)
		case "respect_ugc_expiration":
			return b.boolPtrField(&cl.RespectUGCExpiration)
		case "use_product_specific_retention":
			return b.boolPtrField(&cl.UseProductSpecificRetention)
		case "vtec_expiration_buffer_hours":
			return b.intField(&cl.VTECExpirationBufferHours)
		case "default_retention_days":
			return b.intField(&cl.DefaultRetentionDays)
		case "short_duration_retention_hours":
			return b.intField(&cl.ShortDurationRetentionHours)
		case "medium_duration_retention_hours":
			return b.intField(&cl.MediumDurationRetentionHours)
		case "long_duration_retention_hours":
			return b.intField(&cl.LongDurationRetentionHours)
		case "routine_retention_hours":
			return b.intField(&cl.RoutineRetentionHours)
		case "administrative_retention_days":
			return b.intField(&cl.AdministrativeRetentionDays)
		default:
			return b.unknown()
		}
	case "console":
		if c.Console == nil {
			c.Console = &ConsoleData{}
		}
		switch key {
		case "enabled":
			return b.boolField(&c.Console.Enabled)
		case "pretty":
			return b.boolField(&c.Console.Pretty)
		default:
			return b.unknown()
		}
	case "logging":
		l := &c.Logging
		switch key {
		case "level":
			l.Level = value
		case "format":
			l.Format = value
		case "file":
			l.File = value
		case "max_file_size":
			return b.intField(&l.MaxFileSize)
		case "backup_count":
			return b.intField(&l.BackupCount)
		default:
			return b.unknown()
		}
	case "dashboard":
		if c.Dashboard == nil {
			c.Dashboard = &DashboardData{}
		}
		d := c.Dashboard
		switch key {
		case "listen_addr":
			d.ListenAddr = value
		case "listen_port":
			return b.intField(&d.ListenPort)
		case "poll_interval_seconds":
			return b.intField(&d.PollIntervalSeconds)
		case "recent_events_limit":
			return b.intField(&d.RecentEventsLimit)
		default:
			return b.unknown()
		}
	default:
		return fmt.Errorf("unknown settings group %q", grp)
	}
	return nil
}

// IsReadOnly returns false; settings rows can be updated in place
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// SetSetting writes or replaces one (group, key) settings row.
func (s *SQLiteProvider) SetSetting(grp, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (grp, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (grp, key) DO UPDATE SET value = excluded.value`,
		grp, key, value)
	if err != nil {
		log.Errorf("failed to write setting %s.%s: %v", grp, key, err)
	}
	return err
}

// Close closes the underlying database handle
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
