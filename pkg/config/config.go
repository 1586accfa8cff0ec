// Package config provides the unified configuration system for Pulsar.
// It defines a single Config structure shared read-only by every part of
// the client: the driver layer reads the connection section, the pool
// reads the pool and reliability sections.
//
// The configuration is organized into logical sections:
//   - Connection: server parameters and statements to prepare on connect
//   - Pool: concurrency, queue bound, idle teardown, shutdown policy
//   - Reliability: connect retry and circuit breaker settings
//   - Observability: logging and metrics
//
// Example usage:
//
//	cfg := config.New("my-pool")
//	cfg.Connection.Params["dbname"] = "app"
//	cfg.Pool.MaxConcurrency = 8
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// ShutdownPolicy regulates how pending and in-flight jobs are handled
// when the pool shuts down.
type ShutdownPolicy string

const (
	// ShutdownGraceful waits for all pending jobs to be executed and all
	// workers to retire naturally.
	ShutdownGraceful ShutdownPolicy = "graceful"
	// ShutdownDrop discards pending jobs but lets in-flight jobs finish.
	ShutdownDrop ShutdownPolicy = "drop"
	// ShutdownAbort signals workers to stop without waiting for in-flight
	// work; workers that do not observe the signal promptly are abandoned.
	ShutdownAbort ShutdownPolicy = "abort"
)

// PreparedStatement describes a statement prepared on every new connection.
type PreparedStatement struct {
	// Name identifies the statement for later execution
	Name string `yaml:"name" json:"name"`
	// SQL is the statement body with $1..$n placeholders
	SQL string `yaml:"sql" json:"sql"`
	// ParamOIDs optionally pins the parameter type OIDs
	ParamOIDs []uint32 `yaml:"param_oids,omitempty" json:"param_oids,omitempty"`
}

// ConnectionConfig contains everything needed to establish a connection.
type ConnectionConfig struct {
	// ConnString is a libpq keyword/value or URL connection string.
	// Takes precedence over Params when set.
	ConnString string `yaml:"conn_string,omitempty" json:"conn_string,omitempty"`
	// Params are individual connection parameters (host, port, dbname, ...)
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	// Prepared statements are replayed on every new connection
	Prepared []PreparedStatement `yaml:"prepared,omitempty" json:"prepared,omitempty"`
	// ConnectTimeout bounds connection establishment
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// PoolConfig controls the worker pool.
type PoolConfig struct {
	// MaxConcurrency limits concurrently running workers (and therefore
	// live connections). Zero selects the default of runtime.NumCPU();
	// a pool with no workers at all is not a supported configuration.
	// Backpressure with no queueing is expressed through MaxQueueSize,
	// whose zero bound rejects submissions regardless of worker state.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	// MaxQueueSize bounds the pending job queue. Nil means unbounded.
	// Zero means no job may wait in the queue.
	MaxQueueSize *int `yaml:"max_queue_size,omitempty" json:"max_queue_size,omitempty"`
	// IdleTimeout retires a worker after this duration without a job.
	// Zero disables idle teardown.
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// OnShutdown selects the shutdown policy. Defaults to graceful.
	OnShutdown ShutdownPolicy `yaml:"on_shutdown" json:"on_shutdown"`
}

// ReliabilityConfig contains connect retry and circuit breaker settings.
type ReliabilityConfig struct {
	// ConnectRetries sets maximum attempts to establish a worker connection
	ConnectRetries int `yaml:"connect_retries" json:"connect_retries"`
	// RetryDelay is the initial delay between connect attempts
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases the delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the delay between attempts
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// CircuitBreaker enables the connect-path circuit breaker
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// FailureThreshold opens the breaker after this many consecutive failures
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// BreakerCooldown is how long the breaker stays open before probing
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown"`
}

// ObservabilityConfig contains logging and metrics settings.
type ObservabilityConfig struct {
	// LogLevel sets the minimum log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding selects json or console output
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// EnableMetrics turns on Prometheus metrics recording
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
}

// Config is the single configuration structure for a Pulsar client.
// It is immutable after construction: the pool and all workers share it
// by reference and no component may mutate it.
type Config struct {
	// Name identifies the pool instance in logs and metrics
	Name string `yaml:"name" json:"name"`

	Connection    ConnectionConfig    `yaml:"connection" json:"connection"`
	Pool          PoolConfig          `yaml:"pool" json:"pool"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// New returns a Config with defaults applied.
func New(name string) *Config {
	cfg := &Config{Name: name}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "pulsar"
	}
	if c.Connection.Params == nil {
		c.Connection.Params = make(map[string]string)
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = 10 * time.Second
	}
	if c.Pool.MaxConcurrency == 0 {
		c.Pool.MaxConcurrency = runtime.NumCPU()
	}
	if c.Pool.OnShutdown == "" {
		c.Pool.OnShutdown = ShutdownGraceful
	}
	if c.Reliability.ConnectRetries == 0 {
		c.Reliability.ConnectRetries = 3
	}
	if c.Reliability.RetryDelay == 0 {
		c.Reliability.RetryDelay = 100 * time.Millisecond
	}
	if c.Reliability.RetryMultiplier == 0 {
		c.Reliability.RetryMultiplier = 2.0
	}
	if c.Reliability.MaxRetryDelay == 0 {
		c.Reliability.MaxRetryDelay = 5 * time.Second
	}
	if c.Reliability.FailureThreshold == 0 {
		c.Reliability.FailureThreshold = 5
	}
	if c.Reliability.BreakerCooldown == 0 {
		c.Reliability.BreakerCooldown = 30 * time.Second
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogEncoding == "" {
		c.Observability.LogEncoding = "json"
	}
}

// QueueBound returns the queue capacity and whether the queue is bounded.
func (c *PoolConfig) QueueBound() (int, bool) {
	if c.MaxQueueSize == nil {
		return 0, false
	}
	return *c.MaxQueueSize, true
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Pool.MaxConcurrency < 0 {
		return fmt.Errorf("pool.max_concurrency must not be negative, got %d", c.Pool.MaxConcurrency)
	}
	if bound, ok := c.Pool.QueueBound(); ok && bound < 0 {
		return fmt.Errorf("pool.max_queue_size must not be negative, got %d", bound)
	}
	if c.Pool.IdleTimeout < 0 {
		return fmt.Errorf("pool.idle_timeout must not be negative, got %s", c.Pool.IdleTimeout)
	}
	switch c.Pool.OnShutdown {
	case ShutdownGraceful, ShutdownDrop, ShutdownAbort:
	default:
		return fmt.Errorf("pool.on_shutdown must be one of graceful, drop, abort, got %q", c.Pool.OnShutdown)
	}
	for i, p := range c.Connection.Prepared {
		if p.Name == "" {
			return fmt.Errorf("connection.prepared[%d]: name is required", i)
		}
		if p.SQL == "" {
			return fmt.Errorf("connection.prepared[%d] (%s): sql is required", i, p.Name)
		}
	}
	if c.Reliability.ConnectRetries < 1 {
		return fmt.Errorf("reliability.connect_retries must be at least 1, got %d", c.Reliability.ConnectRetries)
	}
	return nil
}
