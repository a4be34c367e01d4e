package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(env(map[string]string{"DATABASE_URL": "postgres://localhost/files"}))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, c.HTTPAddr)
	assert.Equal(t, []string{DefaultAllowedOrigin}, c.AllowedOrigins)
	assert.Equal(t, int64(DefaultMaxUploadBytes), c.MaxUploadBytes)
	assert.Equal(t, DefaultShutdownTimeout, c.ShutdownTimeout)
	assert.False(t, c.AuthEnabled())
	assert.False(t, c.SeedDemo)
}

func TestLoadOverrides(t *testing.T) {
	c, err := Load(env(map[string]string{
		"DATABASE_URL":         "postgres://localhost/files",
		"HTTP_ADDR":            ":9000",
		"CORS_ALLOWED_ORIGINS": "http://a.test, http://b.test,",
		"JWT_SECRET":           "s3cret",
		"MAX_UPLOAD_BYTES":     "1024",
		"LOG_PRETTY":           "true",
		"SEED_DEMO":            "1",
		"SHUTDOWN_TIMEOUT":     "2s",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.HTTPAddr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins)
	assert.True(t, c.AuthEnabled())
	assert.Equal(t, int64(1024), c.MaxUploadBytes)
	assert.True(t, c.LogPretty)
	assert.True(t, c.SeedDemo)
	assert.Equal(t, 2*time.Second, c.ShutdownTimeout)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"DATABASE_URL":     {},
		"MAX_UPLOAD_BYTES": {"DATABASE_URL": "x", "MAX_UPLOAD_BYTES": "-1"},
		"SEED_DEMO":        {"DATABASE_URL": "x", "SEED_DEMO": "sure"},
		"SHUTDOWN_TIMEOUT": {"DATABASE_URL": "x", "SHUTDOWN_TIMEOUT": "soon"},
	}
	for key, vars := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := Load(env(vars))
			assert.ErrorContains(t, err, key)
		})
	}
}
