package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulsar/pkg/config"
)

func testConnSection() *config.ConnectionConfig {
	return &config.ConnectionConfig{Params: make(map[string]string)}
}

func TestEncodeArg(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	tests := []struct {
		name string
		arg  any
		want string
	}{
		{"string", "hello", "hello"},
		{"bytes", []byte{0xde, 0xad}, `\xdead`},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"float64", 3.25, "3.25"},
		{"time", time.Date(2024, 6, 1, 12, 30, 0, 0, loc), "2024-06-01 12:30:00+02:00"},
		{"duration", 90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeArg(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("nil is NULL", func(t *testing.T) {
		got, err := encodeArg(nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := encodeArg(struct{}{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported argument type")
	})
}

func TestEncodeArgs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		values, formats, err := encodeArgs(nil)
		require.NoError(t, err)
		assert.Nil(t, values)
		assert.Nil(t, formats)
	})

	t.Run("mixed values", func(t *testing.T) {
		values, formats, err := encodeArgs([]any{"a", nil, 3})
		require.NoError(t, err)
		require.Len(t, values, 3)
		assert.Equal(t, "a", string(values[0]))
		assert.Nil(t, values[1])
		assert.Equal(t, "3", string(values[2]))
		assert.Equal(t, []int16{0, 0, 0}, formats)
	})

	t.Run("error names the argument position", func(t *testing.T) {
		_, _, err := encodeArgs([]any{"ok", struct{}{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "argument 2")
	})
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand("SELECT $1, $2", 1, "two")
	assert.Equal(t, "SELECT $1, $2", cmd.SQL)
	assert.Equal(t, []any{1, "two"}, cmd.Args)

	p := NewPrepared("get_user", 7)
	assert.Equal(t, "get_user", p.Name)
	assert.Equal(t, []any{7}, p.Args)
}

func TestBuildConnString(t *testing.T) {
	t.Run("explicit conn string wins", func(t *testing.T) {
		cc := testConnSection()
		cc.ConnString = "postgres://u@h/db"
		assert.Equal(t, "postgres://u@h/db", buildConnString(cc))
	})

	t.Run("params are sorted and quoted", func(t *testing.T) {
		cc := testConnSection()
		cc.Params["host"] = "localhost"
		cc.Params["dbname"] = "app"
		assert.Equal(t, "dbname='app' host='localhost'", buildConnString(cc))
	})

	t.Run("values are escaped", func(t *testing.T) {
		cc := testConnSection()
		cc.Params["password"] = `it's\here`
		assert.Equal(t, `password='it\'s\\here'`, buildConnString(cc))
	})
}
