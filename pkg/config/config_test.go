package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "pulsar", cfg.Name)
	assert.Equal(t, runtime.NumCPU(), cfg.Pool.MaxConcurrency,
		"zero concurrency means the hardware default, never an empty pool")
	assert.Equal(t, ShutdownGraceful, cfg.Pool.OnShutdown)
	assert.Nil(t, cfg.Pool.MaxQueueSize, "queue is unbounded by default")
	assert.Zero(t, cfg.Pool.IdleTimeout, "idle teardown is disabled by default")
	assert.Equal(t, 10*time.Second, cfg.Connection.ConnectTimeout)
	assert.Equal(t, 3, cfg.Reliability.ConnectRetries)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogEncoding)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Pool.MaxConcurrency = 7
	cfg.Pool.OnShutdown = ShutdownAbort
	cfg.ApplyDefaults()

	assert.Equal(t, 7, cfg.Pool.MaxConcurrency)
	assert.Equal(t, ShutdownAbort, cfg.Pool.OnShutdown)
}

func TestQueueBound(t *testing.T) {
	var p PoolConfig
	_, bounded := p.QueueBound()
	assert.False(t, bounded)

	zero := 0
	p.MaxQueueSize = &zero
	bound, bounded := p.QueueBound()
	assert.True(t, bounded)
	assert.Equal(t, 0, bound, "zero is a valid bound, distinct from unbounded")

	hundred := 100
	p.MaxQueueSize = &hundred
	bound, bounded = p.QueueBound()
	assert.True(t, bounded)
	assert.Equal(t, 100, bound)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{
			"negative concurrency",
			func(c *Config) { c.Pool.MaxConcurrency = -1 },
			"max_concurrency",
		},
		{
			"negative queue size",
			func(c *Config) { n := -5; c.Pool.MaxQueueSize = &n },
			"max_queue_size",
		},
		{
			"negative idle timeout",
			func(c *Config) { c.Pool.IdleTimeout = -time.Second },
			"idle_timeout",
		},
		{
			"unknown shutdown policy",
			func(c *Config) { c.Pool.OnShutdown = "eventually" },
			"on_shutdown",
		},
		{
			"prepared statement without name",
			func(c *Config) {
				c.Connection.Prepared = []PreparedStatement{{SQL: "SELECT 1"}}
			},
			"name is required",
		},
		{
			"prepared statement without sql",
			func(c *Config) {
				c.Connection.Prepared = []PreparedStatement{{Name: "q"}}
			},
			"sql is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New("test")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pulsar.yaml")
		doc := `
name: orders-pool
connection:
  params:
    host: db.internal
    dbname: orders
  prepared:
    - name: get_order
      sql: SELECT * FROM orders WHERE id = $1
pool:
  max_concurrency: 4
  max_queue_size: 256
  on_shutdown: drop
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "orders-pool", cfg.Name)
		assert.Equal(t, "db.internal", cfg.Connection.Params["host"])
		require.Len(t, cfg.Connection.Prepared, 1)
		assert.Equal(t, "get_order", cfg.Connection.Prepared[0].Name)
		assert.Equal(t, 4, cfg.Pool.MaxConcurrency)
		bound, bounded := cfg.Pool.QueueBound()
		assert.True(t, bounded)
		assert.Equal(t, 256, bound)
		assert.Equal(t, ShutdownDrop, cfg.Pool.OnShutdown)
	})

	t.Run("environment substitution", func(t *testing.T) {
		t.Setenv("PULSAR_TEST_HOST", "env-host")
		path := filepath.Join(t.TempDir(), "pulsar.yaml")
		doc := `
name: env-pool
connection:
  params:
    host: ${PULSAR_TEST_HOST}
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "env-host", cfg.Connection.Params["host"])
	})

	t.Run("invalid document is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pulsar.yaml")
		doc := `
name: bad-pool
pool:
  on_shutdown: whenever
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "on_shutdown")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := New("round-trip")
	cfg.Pool.MaxConcurrency = 6
	sz := 64
	cfg.Pool.MaxQueueSize = &sz

	require.NoError(t, SaveFile(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip", loaded.Name)
	assert.Equal(t, 6, loaded.Pool.MaxConcurrency)
	bound, bounded := loaded.Pool.QueueBound()
	assert.True(t, bounded)
	assert.Equal(t, 64, bound)
}
