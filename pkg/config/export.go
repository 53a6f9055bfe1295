package config

import "strconv"

// Settings flattens the configuration into (group, key, value) rows in
// the shape the SQLite provider stores. Zero-valued options are
// omitted; they reload as defaults.
func (c *ConfigData) Settings() map[string]map[string]string {
	out := map[string]map[string]string{}
	put := func(grp, key, value string) {
		if value == "" {
			return
		}
		if out[grp] == nil {
			out[grp] = map[string]string{}
		}
		out[grp][key] = value
	}
	putInt := func(grp, key string, v int) {
		if v != 0 {
			put(grp, key, strconv.Itoa(v))
		}
	}
	putFloat := func(grp, key string, v float64) {
		if v != 0 {
			put(grp, key, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	putBool := func(grp, key string, v bool) {
		if v {
			put(grp, key, "true")
		}
	}
	putBoolPtr := func(grp, key string, v *bool) {
		if v != nil {
			put(grp, key, strconv.FormatBool(*v))
		}
	}

	r := c.Receiver
	put("receiver", "username", r.Username)
	put("receiver", "password", r.Password)
	put("receiver", "server", r.Server)
	put("receiver", "backup_server", r.BackupServer)
	putInt("receiver", "port", r.Port)
	put("receiver", "conference_room", r.ConferenceRoom)
	putBoolPtr("receiver", "auto_reconnect", r.AutoReconnect)
	putFloat("receiver", "reconnect_delay", r.ReconnectDelay)
	putFloat("receiver", "max_reconnect_delay", r.MaxReconnectDelay)
	putFloat("receiver", "reconnect_backoff_factor", r.ReconnectBackoffFactor)
	putInt("receiver", "max_reconnect_attempts", r.MaxReconnectAttempts)
	putInt("receiver", "max_auth_failures", r.MaxAuthFailures)
	putFloat("receiver", "keepalive_interval", r.KeepaliveInterval)
	putFloat("receiver", "message_timeout", r.MessageTimeout)
	putInt("receiver", "max_queue_size", r.MaxQueueSize)

	p := c.Pipeline
	putInt("pipeline", "max_queue_size", p.MaxQueueSize)
	putFloat("pipeline", "processing_timeout_seconds", p.ProcessingTimeoutSeconds)
	put("pipeline", "error_handling_strategy", p.ErrorHandlingStrategy)
	putInt("pipeline", "max_retries", p.MaxRetries)
	putFloat("pipeline", "retry_delay_seconds", p.RetryDelaySeconds)
	putFloat("pipeline", "max_retry_delay_seconds", p.MaxRetryDelaySeconds)
	putFloat("pipeline", "backoff_multiplier", p.BackoffMultiplier)
	putInt("pipeline", "circuit_breaker_threshold", p.CircuitBreakerThreshold)
	putFloat("pipeline", "circuit_breaker_timeout_seconds", p.CircuitBreakerTimeoutSeconds)
	putFloat("pipeline", "shutdown_grace_seconds", p.ShutdownGraceSeconds)

	putInt("dedup", "window_size", c.Dedup.WindowSize)
	putInt("dedup", "window_seconds", c.Dedup.WindowSeconds)

	if m := c.MQTT; m != nil {
		put("mqtt", "broker", m.Broker)
		putInt("mqtt", "port", m.Port)
		put("mqtt", "username", m.Username)
		put("mqtt", "password", m.Password)
		put("mqtt", "client_id", m.ClientID)
		put("mqtt", "topic_prefix", m.TopicPrefix)
		putInt("mqtt", "qos", int(m.QoS))
		putBool("mqtt", "retain", m.Retain)
		putInt("mqtt", "message_expiry_minutes", m.MessageExpiryMinutes)
		putInt("mqtt", "max_queue_size", m.MaxQueueSize)
	}

	if d := c.Database; d != nil {
		put("db", "database_url", d.DatabaseURL)
		putInt("db", "pool_size", d.PoolSize)
		putInt("db", "pool_recycle_seconds", d.PoolRecycleSeconds)
		if cu := d.Cleanup; cu != nil {
			putBoolPtr("db_cleanup", "cleanup_enabled", cu.Enabled)
			putInt("db_cleanup", "cleanup_interval_hours", cu.IntervalHours)
			putBool("db_cleanup", "dry_run_mode", cu.DryRunMode)
			putInt("db_cleanup", "max_deletions_per_cycle", cu.MaxDeletionsPerCycle)
			putBoolPtr("db_cleanup", "respect_product_expiration", cu.RespectProductExpiration)
			putBoolPtr("db_cleanup", "respect_vtec_expiration", cu.RespectVTECExpiration)
			putBoolPtr("db_cleanup", "respect_ugc_expiration", cu.RespectUGCExpiration)
			putBoolPtr("db_cleanup", "use_product_specific_retention", cu.UseProductSpecificRetention)
			putInt("db_cleanup", "vtec_expiration_buffer_hours", cu.VTECExpirationBufferHours)
			putInt("db_cleanup", "default_retention_days", cu.DefaultRetentionDays)
			putInt("db_cleanup", "short_duration_retention_hours", cu.ShortDurationRetentionHours)
			putInt("db_cleanup", "medium_duration_retention_hours", cu.MediumDurationRetentionHours)
			putInt("db_cleanup", "long_duration_retention_hours", cu.LongDurationRetentionHours)
			putInt("db_cleanup", "routine_retention_hours", cu.RoutineRetentionHours)
			putInt("db_cleanup", "administrative_retention_days", cu.AdministrativeRetentionDays)
		}
	}

	if co := c.Console; co != nil {
		putBool("console", "enabled", co.Enabled)
		putBool("console", "pretty", co.Pretty)
	}

	l := c.Logging
	put("logging", "level", l.Level)
	put("logging", "format", l.Format)
	put("logging", "file", l.File)
	putInt("logging", "max_file_size", l.MaxFileSize)
	putInt("logging", "backup_count", l.BackupCount)

	if d := c.Dashboard; d != nil {
		put("dashboard", "listen_addr", d.ListenAddr)
		putInt("dashboard", "listen_port", d.ListenPort)
		putInt("dashboard", "poll_interval_seconds", d.PollIntervalSeconds)
		putInt("dashboard", "recent_events_limit", d.RecentEventsLimit)
	}

	return out
}
