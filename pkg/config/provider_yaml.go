package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/wxwire/wxwire/internal/log"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// yamlConfig mirrors ConfigData with YAML tags. The nested cleanup block
// lives under db, matching the documented option groups.
type yamlConfig struct {
	Receiver struct {
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		Server         string `yaml:"server"`
		BackupServer   string `yaml:"backup_server"`
		Port           int    `yaml:"port"`
		ConferenceRoom string `yaml:"conference_room"`

		AutoReconnect          *bool   `yaml:"auto_reconnect"`
		ReconnectDelay         float64 `yaml:"reconnect_delay"`
		MaxReconnectDelay      float64 `yaml:"max_reconnect_delay"`
		ReconnectBackoffFactor float64 `yaml:"reconnect_backoff_factor"`
		MaxReconnectAttempts   int     `yaml:"max_reconnect_attempts"`
		MaxAuthFailures        int     `yaml:"max_auth_failures"`

		KeepaliveInterval float64 `yaml:"keepalive_interval"`
		MessageTimeout    float64 `yaml:"message_timeout"`
		MaxQueueSize      int     `yaml:"max_queue_size"`
	} `yaml:"receiver"`

	Pipeline struct {
		MaxQueueSize             int     `yaml:"max_queue_size"`
		ProcessingTimeoutSeconds float64 `yaml:"processing_timeout_seconds"`

		ErrorHandlingStrategy        string  `yaml:"error_handling_strategy"`
		MaxRetries                   int     `yaml:"max_retries"`
		RetryDelaySeconds            float64 `yaml:"retry_delay_seconds"`
		MaxRetryDelaySeconds         float64 `yaml:"max_retry_delay_seconds"`
		BackoffMultiplier            float64 `yaml:"backoff_multiplier"`
		CircuitBreakerThreshold      int     `yaml:"circuit_breaker_threshold"`
		CircuitBreakerTimeoutSeconds float64 `yaml:"circuit_breaker_timeout_seconds"`
		ShutdownGraceSeconds         float64 `yaml:"shutdown_grace_seconds"`
	} `yaml:"pipeline"`

	Dedup struct {
		WindowSize    int `yaml:"window_size"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"dedup"`

	MQTT *struct {
		Broker               string `yaml:"broker"`
		Port                 int    `yaml:"port"`
		Username             string `yaml:"username"`
		Password             string `yaml:"password"`
		ClientID             string `yaml:"client_id"`
		TopicPrefix          string `yaml:"topic_prefix"`
		QoS                  byte   `yaml:"qos"`
		Retain               bool   `yaml:"retain"`
		MessageExpiryMinutes int    `yaml:"message_expiry_minutes"`
		MaxQueueSize         int    `yaml:"max_queue_size"`
	} `yaml:"mqtt"`

	Database *struct {
		DatabaseURL        string `yaml:"database_url"`
		PoolSize           int    `yaml:"pool_size"`
		PoolRecycleSeconds int    `yaml:"pool_recycle_seconds"`

		Cleanup *struct {
			Enabled              *bool `yaml:"cleanup_enabled"`
			IntervalHours        int   `yaml:"cleanup_interval_hours"`
			DryRunMode           bool  `yaml:"dry_run_mode"`
			MaxDeletionsPerCycle int   `yaml:"max_deletions_per_cycle"`

			RespectProductExpiration    *bool `yaml:"respect_product_expiration"`
			RespectVTECExpiration       *bool `yaml:"respect_vtec_expiration"`
			RespectUGCExpiration        *bool `yaml:"respect_ugc_expiration"`
			UseProductSpecificRetention *bool `yaml:"use_product_specific_retention"`

			VTECExpirationBufferHours    int `yaml:"vtec_expiration_buffer_hours"`
			DefaultRetentionDays         int `yaml:"default_retention_days"`
			ShortDurationRetentionHours  int `yaml:"short_duration_retention_hours"`
			MediumDurationRetentionHours int `yaml:"medium_duration_retention_hours"`
			LongDurationRetentionHours   int `yaml:"long_duration_retention_hours"`
			RoutineRetentionHours        int `yaml:"routine_retention_hours"`
			AdministrativeRetentionDays  int `yaml:"administrative_retention_days"`
		} `yaml:"cleanup"`
	} `yaml:"db"`

	Console *struct {
		Enabled bool `yaml:"enabled"`
		Pretty  bool `yaml:"pretty"`
	} `yaml:"console"`

	Logging struct {
		Level       string `yaml:"level"`
		Format      string `yaml:"format"`
		File        string `yaml:"file"`
		MaxFileSize int    `yaml:"max_file_size"`
		BackupCount int    `yaml:"backup_count"`
	} `yaml:"logging"`

	Dashboard *struct {
		ListenAddr          string `yaml:"listen_addr"`
		ListenPort          int    `yaml:"listen_port"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		RecentEventsLimit   int    `yaml:"recent_events_limit"`
	} `yaml:"dashboard"`
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(cfgFile, &raw); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	config := &ConfigData{
		Receiver: ReceiverData{
			Username:               raw.Receiver.Username,
			Password:               raw.Receiver.Password,
			Server:                 raw.Receiver.Server,
			BackupServer:           raw.Receiver.BackupServer,
			Port:                   raw.Receiver.Port,
			ConferenceRoom:         raw.Receiver.ConferenceRoom,
			AutoReconnect:          raw.Receiver.AutoReconnect,
			ReconnectDelay:         raw.Receiver.ReconnectDelay,
			MaxReconnectDelay:      raw.Receiver.MaxReconnectDelay,
			ReconnectBackoffFactor: raw.Receiver.ReconnectBackoffFactor,
			MaxReconnectAttempts:   raw.Receiver.MaxReconnectAttempts,
			MaxAuthFailures:        raw.Receiver.MaxAuthFailures,
			KeepaliveInterval:      raw.Receiver.KeepaliveInterval,
			MessageTimeout:         raw.Receiver.MessageTimeout,
			MaxQueueSize:           raw.Receiver.MaxQueueSize,
		},
		Pipeline: PipelineData{
			MaxQueueSize:                 raw.Pipeline.MaxQueueSize,
			ProcessingTimeoutSeconds:     raw.Pipeline.ProcessingTimeoutSeconds,
			ErrorHandlingStrategy:        raw.Pipeline.ErrorHandlingStrategy,
			MaxRetries:                   raw.Pipeline.MaxRetries,
			RetryDelaySeconds:            raw.Pipeline.RetryDelaySeconds,
			MaxRetryDelaySeconds:         raw.Pipeline.MaxRetryDelaySeconds,
			BackoffMultiplier:            raw.Pipeline.BackoffMultiplier,
			CircuitBreakerThreshold:      raw.Pipeline.CircuitBreakerThreshold,
			CircuitBreakerTimeoutSeconds: raw.Pipeline.CircuitBreakerTimeoutSeconds,
			ShutdownGraceSeconds:         raw.Pipeline.ShutdownGraceSeconds,
		},
		Dedup: DedupData{
			WindowSize:    raw.Dedup.WindowSize,
			WindowSeconds: raw.Dedup.WindowSeconds,
		},
		Logging: log.Config{
			Level:       raw.Logging.Level,
			Format:      raw.Logging.Format,
			File:        raw.Logging.File,
			MaxFileSize: raw.Logging.MaxFileSize,
			BackupCount: raw.Logging.BackupCount,
		},
	}

	if raw.MQTT != nil {
		config.MQTT = &MQTTData{
			Broker:               raw.MQTT.Broker,
			Port:                 raw.MQTT.Port,
			Username:             raw.MQTT.Username,
			Password:             raw.MQTT.Password,
			ClientID:             raw.MQTT.ClientID,
			TopicPrefix:          raw.MQTT.TopicPrefix,
			QoS:                  raw.MQTT.QoS,
			Retain:               raw.MQTT.Retain,
			MessageExpiryMinutes: raw.MQTT.MessageExpiryMinutes,
			MaxQueueSize:         raw.MQTT.MaxQueueSize,
		}
	}

	if raw.Database != nil {
		db := &DatabaseData{
			DatabaseURL:        raw.Database.DatabaseURL,
			PoolSize:           raw.Database.PoolSize,
			PoolRecycleSeconds: raw.Database.PoolRecycleSeconds,
		}
		if cl := raw.Database.Cleanup; cl != nil {
			db.Cleanup = &CleanupData{
				Enabled:                      cl.Enabled,
				IntervalHours:                cl.IntervalHours,
				DryRunMode:                   cl.DryRunMode,
				MaxDeletionsPerCycle:         cl.MaxDeletionsPerCycle,
				RespectProductExpiration:     cl.RespectProductExpiration,
				RespectVTECExpiration:        cl.RespectVTECExpiration,
				RespectUGCExpiration:         cl.RespectUGCExpiration,
				UseProductSpecificRetention:  cl.UseProductSpecificRetention,
				VTECExpirationBufferHours:    cl.VTECExpirationBufferHours,
				DefaultRetentionDays:         cl.DefaultRetentionDays,
				ShortDurationRetentionHours:  cl.ShortDurationRetentionHours,
				MediumDurationRetentionHours: cl.MediumDurationRetentionHours,
				LongDurationRetentionHours:   cl.LongDurationRetentionHours,
				RoutineRetentionHours:        cl.RoutineRetentionHours,
				AdministrativeRetentionDays:  cl.AdministrativeRetentionDays,
			}
		}
		config.Database = db
	}

	if raw.Console != nil {
		config.Console = &ConsoleData{
			Enabled: raw.Console.Enabled,
			Pretty:  raw.Console.Pretty,
		}
	}

	if raw.Dashboard != nil {
		config.Dashboard = &DashboardData{
			ListenAddr:          raw.Dashboard.ListenAddr,
			ListenPort:          raw.Dashboard.ListenPort,
			PollIntervalSeconds: raw.Dashboard.PollIntervalSeconds,
			RecentEventsLimit:   raw.Dashboard.RecentEventsLimit,
		}
	}

	return config, nil
}

// IsReadOnly returns true; YAML files are not modified at runtime
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML providers
func (y *YAMLProvider) Close() error {
	return nil
}
