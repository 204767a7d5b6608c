// Package config defines process configuration and its layered loading.
//
// Conventions:
// - New() returns a Config holding every default.
// - Load layers a YAML file and MIMIC_* environment variables over it.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// StoreBackend selects the durable store: file or sqlite.
	StoreBackend string `koanf:"store_backend"`

	// StorePath is the location of the durable store.
	StorePath string `koanf:"store_path"`

	// FlushIntervalMS is how often the recorder hands batches to the persister.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// ReplayPauseMS is the idle delay between replay passes.
	ReplayPauseMS int `koanf:"replay_pause_ms"`

	// SampleIntervalMS is the memory sampling period.
	SampleIntervalMS int `koanf:"sample_interval_ms"`

	// StopTimeoutMS bounds how long a stop waits for a task to exit. Zero
	// waits until it does.
	StopTimeoutMS int `koanf:"stop_timeout_ms"`

	// PersistRetryInitialMS and PersistRetryMaxMS bound the backoff after a
	// failed store write.
	PersistRetryInitialMS int `koanf:"persist_retry_initial_ms"`
	PersistRetryMaxMS     int `koanf:"persist_retry_max_ms"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		StoreBackend:          BackendFile,
		StorePath:             "mouse_events.bin",
		FlushIntervalMS:       10_000,
		ReplayPauseMS:         5_000,
		SampleIntervalMS:      5_000,
		StopTimeoutMS:         0,
		PersistRetryInitialMS: 200,
		PersistRetryMaxMS:     10_000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.StorePath == "":
		return fmt.Errorf("%w: store_path must not be empty", ErrInvalidConfig)
	case c.StoreBackend != BackendFile && c.StoreBackend != BackendSQLite:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.FlushIntervalMS <= 0:
		return fmt.Errorf("%w: flush_interval_ms must be positive", ErrInvalidConfig)
	case c.ReplayPauseMS < 0:
		return fmt.Errorf("%w: replay_pause_ms must not be negative", ErrInvalidConfig)
	case c.SampleIntervalMS <= 0:
		return fmt.Errorf("%w: sample_interval_ms must be positive", ErrInvalidConfig)
	case c.StopTimeoutMS < 0:
		return fmt.Errorf("%w: stop_timeout_ms must not be negative", ErrInvalidConfig)
	case c.PersistRetryInitialMS <= 0 || c.PersistRetryMaxMS < c.PersistRetryInitialMS:
		return fmt.Errorf("%w: persist retry range %d..%d ms", ErrInvalidConfig,
			c.PersistRetryInitialMS, c.PersistRetryMaxMS)
	}
	return nil
}

// FlushInterval returns FlushIntervalMS as a duration.
func (c *Config) FlushInterval() time.Duration { return ms(c.FlushIntervalMS) }

// ReplayPause returns ReplayPauseMS as a duration.
func (c *Config) ReplayPause() time.Duration { return ms(c.ReplayPauseMS) }

// SampleInterval returns SampleIntervalMS as a duration.
func (c *Config) SampleInterval() time.Duration { return ms(c.SampleIntervalMS) }

// StopTimeout returns StopTimeoutMS as a duration.
func (c *Config) StopTimeout() time.Duration { return ms(c.StopTimeoutMS) }

// PersistRetry returns the persist backoff range.
func (c *Config) PersistRetry() (initial, maxDelay time.Duration) {
	return ms(c.PersistRetryInitialMS), ms(c.PersistRetryMaxMS)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
