package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vetcare/internal/pkg/config"
)

// WorkerConfig holds the settings of the reminder worker process.
//
// Environment variables:
//   - SCAN_SCHEDULE: cron spec or descriptor (default "@every 1h")
//   - WORKER_TIMEZONE: IANA zone of the clinic (default "UTC")
//   - DISPATCH_CONCURRENCY: items processed in parallel per scan, 1-64 (default 8)
//   - CHANNEL_SEND_TIMEOUT: bound on one channel send, 1s-2m (default 10s)
//   - TICK_TIMEOUT: bound on a whole tick, 1m-4h (default 30m)
//   - STUCK_AFTER: age at which a PENDING notification is reported stuck, 1h-720h (default 24h)
//   - PENDING_BATCH_SIZE: due notifications re-dispatched per tick, 1-10000 (default 500)
//   - WORKER_HEALTH_PORT: health server port, 1024-65535 (default 9091)
//   - METRICS_PORT: metrics server port, 1024-65535 (default 9090)
type WorkerConfig struct {
	ScanSchedule        string
	Timezone            string
	DispatchConcurrency int
	ChannelSendTimeout  time.Duration
	TickTimeout         time.Duration
	StuckAfter          time.Duration
	PendingBatchSize    int
	HealthPort          int
	MetricsPort         int
}

// DefaultConfig returns the settings used when no environment is set.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		ScanSchedule:        "@every 1h",
		Timezone:            "UTC",
		DispatchConcurrency: 8,
		ChannelSendTimeout:  10 * time.Second,
		TickTimeout:         30 * time.Minute,
		StuckAfter:          24 * time.Hour,
		PendingBatchSize:    500,
		HealthPort:          9091,
		MetricsPort:         9090,
	}
}

func validConcurrency(v int) error { return config.ValidateIntRange(v, 1, 64) }
func validPort(v int) error { return config.ValidateIntRange(v, 1024, 65535) }
func validBatch(v int) error { return config.ValidateIntRange(v, 1, 10000) }
func validSendTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, 2*time.Minute)
}
func validTickTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Minute, 4*time.Hour)
}
func validStuckAfter(d time.Duration) error {
	return config.ValidateDuration(d, time.Hour, 720*time.Hour)
}

// Validate reports every invalid field at once.
func (c *WorkerConfig) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	check("scan schedule", config.ValidateCronSchedule(c.ScanSchedule))
	check("timezone", config.ValidateTimezone(c.Timezone))
	check("dispatch concurrency", validConcurrency(c.DispatchConcurrency))
	check("channel send timeout", validSendTimeout(c.ChannelSendTimeout))
	check("tick timeout", validTickTimeout(c.TickTimeout))
	check("stuck after", validStuckAfter(c.StuckAfter))
	check("pending batch size", validBatch(c.PendingBatchSize))
	check("health port", validPort(c.HealthPort))
	check("metrics port", validPort(c.MetricsPort))
	if c.HealthPort == c.MetricsPort {
		errs = append(errs, fmt.Errorf("health port and metrics port must differ, both are %d", c.HealthPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone, or UTC when it cannot be loaded.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfigFromEnv loads the worker settings. Invalid values fall back to
// their defaults with a warning; the returned config is always valid and
// the error is always nil.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	var recorder config.FallbackRecorder
	if metrics != nil {
		recorder = metrics.ConfigMetrics
	}
	fb := config.NewFallbacks(logger, recorder)

	cfg.ScanSchedule = config.Track(fb, "scan_schedule",
		config.LoadEnvWithFallback("SCAN_SCHEDULE", cfg.ScanSchedule, config.ValidateCronSchedule))
	cfg.Timezone = config.Track(fb, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))
	cfg.DispatchConcurrency = config.Track(fb, "dispatch_concurrency",
		config.LoadEnvInt("DISPATCH_CONCURRENCY", cfg.DispatchConcurrency, validConcurrency))
	cfg.ChannelSendTimeout = config.Track(fb, "channel_send_timeout",
		config.LoadEnvDuration("CHANNEL_SEND_TIMEOUT", cfg.ChannelSendTimeout, validSendTimeout))
	cfg.TickTimeout = config.Track(fb, "tick_timeout",
		config.LoadEnvDuration("TICK_TIMEOUT", cfg.TickTimeout, validTickTimeout))
	cfg.StuckAfter = config.Track(fb, "stuck_after",
		config.LoadEnvDuration("STUCK_AFTER", cfg.StuckAfter, validStuckAfter))
	cfg.PendingBatchSize = config.Track(fb, "pending_batch_size",
		config.LoadEnvInt("PENDING_BATCH_SIZE", cfg.PendingBatchSize, validBatch))
	cfg.HealthPort = config.Track(fb, "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, validPort))
	cfg.MetricsPort = config.Track(fb, "metrics_port",
		config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, validPort))

	if cfg.HealthPort == cfg.MetricsPort {
		defaults := DefaultConfig()
		cfg.HealthPort, cfg.MetricsPort = defaults.HealthPort, defaults.MetricsPort
		config.Track(fb, "ports", config.Result[int]{
			Value:           cfg.HealthPort,
			Warning:         "health and metrics ports collide, using defaults for both",
			FallbackApplied: true,
		})
	}

	if metrics != nil {
		metrics.SetFallbackActive(fb.Applied())
		metrics.RecordLoadTimestamp()
	}
	return &cfg, nil
}
