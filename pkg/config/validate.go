package config

import (
	"fmt"
	"strings"
)

// Configuration defaults. Anything not set in the config source falls back
// to these values during ApplyDefaults.
const (
	DefaultXMPPPort          = 5222
	DefaultReconnectDelay    = 1.0
	DefaultMaxReconnectDelay = 300.0
	DefaultBackoffFactor     = 2.0
	DefaultMaxAuthFailures   = 3
	DefaultKeepaliveSeconds  = 60.0
	DefaultMessageTimeout    = 30.0
	DefaultReceiverQueue     = 1000

	DefaultPipelineQueue       = 5000
	DefaultProcessingTimeout   = 30.0
	DefaultErrorStrategy       = "continue"
	DefaultMaxRetries          = 3
	DefaultRetryDelay          = 1.0
	DefaultMaxRetryDelay       = 30.0
	DefaultRetryBackoff        = 2.0
	DefaultBreakerThreshold    = 5
	DefaultBreakerTimeout      = 60.0
	DefaultShutdownGrace       = 30.0
	DefaultDedupWindowSize     = 1000
	DefaultDedupWindowSeconds  = 600
	DefaultMQTTQueue           = 1000
	DefaultMQTTTopicPrefix     = "nwws"
	DefaultMQTTQoS             = 1
	DefaultDBPoolSize          = 5
	DefaultCleanupIntervalHrs  = 6
	DefaultMaxDeletions        = 500
	DefaultVTECBufferHours     = 2
	DefaultRetentionDays       = 7
	DefaultShortRetentionHrs   = 1
	DefaultMediumRetentionHrs  = 24
	DefaultLongRetentionHrs    = 72
	DefaultRoutineRetentionHrs = 12
	DefaultAdminRetentionDays  = 30
	DefaultDashboardPort       = 8080
	DefaultPollInterval        = 5
	DefaultRecentEvents        = 100
)

func boolPtr(b bool) *bool { return &b }

// ApplyDefaults fills in every unset option with its documented default.
func (c *ConfigData) ApplyDefaults() {
	r := &c.Receiver
	if r.Port == 0 {
		r.Port = DefaultXMPPPort
	}
	if r.AutoReconnect == nil {
		r.AutoReconnect = boolPtr(true)
	}
	if r.ReconnectDelay == 0 {
		r.ReconnectDelay = DefaultReconnectDelay
	}
	if r.MaxReconnectDelay == 0 {
		r.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if r.ReconnectBackoffFactor == 0 {
		r.ReconnectBackoffFactor = DefaultBackoffFactor
	}
	if r.MaxAuthFailures == 0 {
		r.MaxAuthFailures = DefaultMaxAuthFailures
	}
	if r.KeepaliveInterval == 0 {
		r.KeepaliveInterval = DefaultKeepaliveSeconds
	}
	if r.MessageTimeout == 0 {
		r.MessageTimeout = DefaultMessageTimeout
	}
	if r.MaxQueueSize == 0 {
		r.MaxQueueSize = DefaultReceiverQueue
	}

	p := &c.Pipeline
	if p.MaxQueueSize == 0 {
		p.MaxQueueSize = DefaultPipelineQueue
	}
	if p.ProcessingTimeoutSeconds == 0 {
		p.ProcessingTimeoutSeconds = DefaultProcessingTimeout
	}
	if p.ErrorHandlingStrategy == "" {
		p.ErrorHandlingStrategy = DefaultErrorStrategy
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.RetryDelaySeconds == 0 {
		p.RetryDelaySeconds = DefaultRetryDelay
	}
	if p.MaxRetryDelaySeconds == 0 {
		p.MaxRetryDelaySeconds = DefaultMaxRetryDelay
	}
	if p.BackoffMultiplier == 0 {
		p.BackoffMultiplier = DefaultRetryBackoff
	}
	if p.CircuitBreakerThreshold == 0 {
		p.CircuitBreakerThreshold = DefaultBreakerThreshold
	}
	if p.CircuitBreakerTimeoutSeconds == 0 {
		p.CircuitBreakerTimeoutSeconds = DefaultBreakerTimeout
	}
	if p.ShutdownGraceSeconds == 0 {
		p.ShutdownGraceSeconds = DefaultShutdownGrace
	}

	if c.Dedup.WindowSize == 0 {
		c.Dedup.WindowSize = DefaultDedupWindowSize
	}
	if c.Dedup.WindowSeconds == 0 {
		c.Dedup.WindowSeconds = DefaultDedupWindowSeconds
	}

	if m := c.MQTT; m != nil {
		if m.Port == 0 {
			m.Port = 1883
		}
		if m.TopicPrefix == "" {
			m.TopicPrefix = DefaultMQTTTopicPrefix
		}
		if m.QoS == 0 {
			m.QoS = DefaultMQTTQoS
		}
		if m.MaxQueueSize == 0 {
			m.MaxQueueSize = DefaultMQTTQueue
		}
	}

	if d := c.Database; d != nil {
		if d.PoolSize == 0 {
			d.PoolSize = DefaultDBPoolSize
		}
		if d.Cleanup == nil {
			d.Cleanup = &CleanupData{}
		}
		cl := d.Cleanup
		if cl.Enabled == nil {
			cl.Enabled = boolPtr(true)
		}
		if cl.IntervalHours == 0 {
			cl.IntervalHours = DefaultCleanupIntervalHrs
		}
		if cl.MaxDeletionsPerCycle == 0 {
			cl.MaxDeletionsPerCycle = DefaultMaxDeletions
		}
		if cl.RespectProductExpiration == nil {
			cl.RespectProductExpiration = boolPtr(true)
		}
		if cl.RespectVTECExpiration == nil {
			cl.RespectVTECExpiration = boolPtr(true)
		}
		if cl.RespectUGCExpiration == nil {
			cl.RespectUGCExpiration = boolPtr(true)
		}
		if cl.UseProductSpecificRetention == nil {
			cl.UseProductSpecificRetention = boolPtr(true)
		}
		if cl.VTECExpirationBufferHours == 0 {
			cl.VTECExpirationBufferHours = DefaultVTECBufferHours
		}
		if cl.DefaultRetentionDays == 0 {
			cl.DefaultRetentionDays = DefaultRetentionDays
		}
		if cl.ShortDurationRetentionHours == 0 {
			cl.ShortDurationRetentionHours = DefaultShortRetentionHrs
		}
		if cl.MediumDurationRetentionHours == 0 {
			cl.MediumDurationRetentionHours = DefaultMediumRetentionHrs
		}
		if cl.LongDurationRetentionHours == 0 {
			cl.LongDurationRetentionHours = DefaultLongRetentionHrs
		}
		if cl.RoutineRetentionHours == 0 {
			cl.RoutineRetentionHours = DefaultRoutineRetentionHrs
		}
		if cl.AdministrativeRetentionDays == 0 {
			cl.AdministrativeRetentionDays = DefaultAdminRetentionDays
		}
	}

	if db := c.Dashboard; db != nil {
		if db.ListenPort == 0 {
			db.ListenPort = DefaultDashboardPort
		}
		if db.PollIntervalSeconds == 0 {
			db.PollIntervalSeconds = DefaultPollInterval
		}
		if db.RecentEventsLimit == 0 {
			db.RecentEventsLimit = DefaultRecentEvents
		}
	}
}

// Validate checks the configuration for fatal problems. A non-nil error
// here means the process should exit with the configuration-error code.
func (c *ConfigData) Validate() error {
	r := &c.Receiver
	if r.Username == "" || r.Password == "" {
		return fmt.Errorf("receiver: username and password are required")
	}
	if r.Server == "" {
		return fmt.Errorf("receiver: server is required")
	}
	if r.ConferenceRoom == "" {
		return fmt.Errorf("receiver: conference_room is required")
	}
	if r.ReconnectBackoffFactor < 1 {
		return fmt.Errorf("receiver: reconnect_backoff_factor must be >= 1, got %v", r.ReconnectBackoffFactor)
	}

	switch c.Pipeline.ErrorHandlingStrategy {
	case "fail_fast", "continue", "retry", "circuit_breaker":
	default:
		return fmt.Errorf("pipeline: unknown error_handling_strategy %q", c.Pipeline.ErrorHandlingStrategy)
	}

	if m := c.MQTT; m != nil {
		if m.Broker == "" {
			return fmt.Errorf("mqtt: broker is required when the mqtt sink is configured")
		}
		if m.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1, or 2, got %d", m.QoS)
		}
	}

	if d := c.Database; d != nil {
		if d.DatabaseURL == "" {
			return fmt.Errorf("db: database_url is required when the db sink is configured")
		}
		if !strings.HasPrefix(d.DatabaseURL, "postgres://") &&
			!strings.HasPrefix(d.DatabaseURL, "postgresql://") &&
			!strings.HasPrefix(d.DatabaseURL, "sqlite://") {
			return fmt.Errorf("db: database_url must be a postgres:// or sqlite:// URL")
		}
	}

	return nil
}
