// Package config defines the relay's configuration surface and its
// pluggable providers (YAML files and SQLite databases).
package config

import (
	"github.com/wxwire/wxwire/internal/log"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Receiver  ReceiverData  `json:"receiver"`
	Pipeline  PipelineData  `json:"pipeline,omitempty"`
	Dedup     DedupData     `json:"dedup,omitempty"`
	MQTT      *MQTTData     `json:"mqtt,omitempty"`
	Database  *DatabaseData `json:"db,omitempty"`
	Console   *ConsoleData  `json:"console,omitempty"`
	Logging   log.Config    `json:"logging,omitempty"`
	Dashboard *DashboardData `json:"dashboard,omitempty"`
}

// ReceiverData holds XMPP credentials, room, and reconnection policy.
type ReceiverData struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Server         string `json:"server"`
	BackupServer   string `json:"backup_server,omitempty"`
	Port           int    `json:"port,omitempty"`
	ConferenceRoom string `json:"conference_room"`

	AutoReconnect          *bool   `json:"auto_reconnect,omitempty"`
	ReconnectDelay         float64 `json:"reconnect_delay,omitempty"`           // seconds
	MaxReconnectDelay      float64 `json:"max_reconnect_delay,omitempty"`       // seconds
	ReconnectBackoffFactor float64 `json:"reconnect_backoff_factor,omitempty"`
	MaxReconnectAttempts   int     `json:"max_reconnect_attempts,omitempty"`
	MaxAuthFailures        int     `json:"max_auth_failures,omitempty"`

	KeepaliveInterval float64 `json:"keepalive_interval,omitempty"` // seconds
	MessageTimeout    float64 `json:"message_timeout,omitempty"`    // seconds
	MaxQueueSize      int     `json:"max_queue_size,omitempty"`
}

// PipelineData holds ingress bounds and per-pipeline error policy.
type PipelineData struct {
	MaxQueueSize             int     `json:"max_queue_size,omitempty"`
	ProcessingTimeoutSeconds float64 `json:"processing_timeout_seconds,omitempty"`

	ErrorHandlingStrategy        string  `json:"error_handling_strategy,omitempty"` // fail_fast|continue|retry|circuit_breaker
	MaxRetries                   int     `json:"max_retries,omitempty"`
	RetryDelaySeconds            float64 `json:"retry_delay_seconds,omitempty"`
	MaxRetryDelaySeconds         float64 `json:"max_retry_delay_seconds,omitempty"`
	BackoffMultiplier            float64 `json:"backoff_multiplier,omitempty"`
	CircuitBreakerThreshold      int     `json:"circuit_breaker_threshold,omitempty"`
	CircuitBreakerTimeoutSeconds float64 `json:"circuit_breaker_timeout_seconds,omitempty"`

	ShutdownGraceSeconds float64 `json:"shutdown_grace_seconds,omitempty"`
}

// DedupData bounds the duplicate-suppression window.
type DedupData struct {
	WindowSize    int `json:"window_size,omitempty"`
	WindowSeconds int `json:"window_seconds,omitempty"`
}

// MQTTData holds broker connection and publish parameters.
type MQTTData struct {
	Broker               string `json:"broker"`
	Port                 int    `json:"port,omitempty"`
	Username             string `json:"username,omitempty"`
	Password             string `json:"password,omitempty"`
	ClientID             string `json:"client_id,omitempty"`
	TopicPrefix          string `json:"topic_prefix,omitempty"`
	QoS                  byte   `json:"qos,omitempty"`
	Retain               bool   `json:"retain,omitempty"`
	MessageExpiryMinutes int    `json:"message_expiry_minutes,omitempty"`
	MaxQueueSize         int    `json:"max_queue_size,omitempty"`
}

// DatabaseData holds the connection pool settings for the DB sink.
type DatabaseData struct {
	DatabaseURL        string       `json:"database_url"`
	PoolSize           int          `json:"pool_size,omitempty"`
	PoolRecycleSeconds int          `json:"pool_recycle_seconds,omitempty"`
	Cleanup            *CleanupData `json:"cleanup,omitempty"`
}

// CleanupData holds the NWS retention-based cleanup policy.
type CleanupData struct {
	Enabled              *bool `json:"cleanup_enabled,omitempty"`
	IntervalHours        int   `json:"cleanup_interval_hours,omitempty"`
	DryRunMode           bool  `json:"dry_run_mode,omitempty"`
	MaxDeletionsPerCycle int   `json:"max_deletions_per_cycle,omitempty"`

	RespectProductExpiration    *bool `json:"respect_product_expiration,omitempty"`
	RespectVTECExpiration       *bool `json:"respect_vtec_expiration,omitempty"`
	RespectUGCExpiration        *bool `json:"respect_ugc_expiration,omitempty"`
	UseProductSpecificRetention *bool `json:"use_product_specific_retention,omitempty"`

	VTECExpirationBufferHours    int `json:"vtec_expiration_buffer_hours,omitempty"`
	DefaultRetentionDays         int `json:"default_retention_days,omitempty"`
	ShortDurationRetentionHours  int `json:"short_duration_retention_hours,omitempty"`
	MediumDurationRetentionHours int `json:"medium_duration_retention_hours,omitempty"`
	LongDurationRetentionHours   int `json:"long_duration_retention_hours,omitempty"`
	RoutineRetentionHours        int `json:"routine_retention_hours,omitempty"`
	AdministrativeRetentionDays  int `json:"administrative_retention_days,omitempty"`
}

// ConsoleData enables the console sink.
type ConsoleData struct {
	Enabled bool `json:"enabled"`
	Pretty  bool `json:"pretty,omitempty"`
}

// DashboardData holds the HTTP exposure settings.
type DashboardData struct {
	ListenAddr          string `json:"listen_addr,omitempty"`
	ListenPort          int    `json:"listen_port,omitempty"`
	PollIntervalSeconds int    `json:"poll_interval_seconds,omitempty"`
	RecentEventsLimit   int    `json:"recent_events_limit,omitempty"`
}
