package setup_test

import (
	"testing"
	"time"

	"github.com/ckenx/kenx/setup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	t.Parallel()

	environment, err := setup.ParseEnvironment(map[string]string{
		"KENX_ENV":             "dev",
		"HTTP_PORT":            "8080",
		"KENX_CONNECT_RETRIES": "3",
		"KENX_RETRY_BACKOFF":   "1s",
		"KENX_LOG_LEVEL":       "debug",
	})

	require.NoError(t, err)
	assert.True(t, environment.Development())
	assert.Equal(t, 8080, environment.HTTPPort)
	assert.Equal(t, uint64(3), environment.ConnectRetries)
	assert.Equal(t, time.Second, environment.RetryBackoff)
	assert.Equal(t, "debug", environment.LogLevel)
}

func TestParseEnvironment_Invalid(t *testing.T) {
	t.Parallel()

	_, err := setup.ParseEnvironment(map[string]string{"HTTP_PORT": "eighty"})

	require.Error(t, err)
}

func TestEnvironment_Development(t *testing.T) {
	t.Parallel()

	assert.True(t, setup.Environment{NodeEnv: "development"}.Development())
	assert.False(t, setup.Environment{Mode: "production", NodeEnv: "development"}.Development())
	assert.False(t, setup.Environment{}.Development())
}
