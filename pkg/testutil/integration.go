package testutil

import (
	"os"
	"testing"

	"github.com/ajitpratap0/pulsar/pkg/config"
)

// DSNEnvVar names the environment variable holding the connection
// string for integration tests.
const DSNEnvVar = "PULSAR_TEST_DSN"

// RequireDatabase returns a Config pointing at the integration test
// database, or skips the test when PULSAR_TEST_DSN is unset.
func RequireDatabase(t *testing.T) *config.Config {
	t.Helper()

	dsn := os.Getenv(DSNEnvVar)
	if dsn == "" {
		t.Skipf("skipping: %s not set", DSNEnvVar)
	}

	cfg := config.New("integration-test")
	cfg.Connection.ConnString = dsn
	cfg.Observability.LogLevel = "debug"
	cfg.Observability.LogEncoding = "console"
	return cfg
}
