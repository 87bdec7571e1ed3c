package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ballot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, c.Worker.IsEnabled())
	assert.Equal(t, DefaultInterval, c.Worker.Interval)
	assert.Equal(t, DefaultMaxConcurrency, c.Worker.Concurrency())
	assert.Equal(t, DefaultThrottleDelay, c.Worker.Throttle())
	assert.False(t, c.Worker.DryRun)
	assert.Equal(t, DefaultDatabasePath, c.Database.Path)
	assert.Equal(t, DefaultHTTPAddr, c.HTTP.Addr)
	assert.Equal(t, DefaultServiceTimeout, c.Services.Signer.Timeout)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
worker:
  enabled: false
  interval: 90s
  maxConcurrency: 3.7
  dryRun: true
  throttleDelay: 0s
database:
  path: /var/lib/ballot/ballot.db
http:
  addr: 127.0.0.1:9000
services:
  analysis:
    url: http://analysis.internal
    apiKey: k
    timeout: 2m
  signer:
    url: http://signer.internal
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.False(t, c.Worker.IsEnabled())
	assert.Equal(t, 90*time.Second, c.Worker.Interval)
	assert.Equal(t, 3, c.Worker.Concurrency())
	assert.True(t, c.Worker.DryRun)
	assert.Equal(t, time.Duration(0), c.Worker.Throttle())
	assert.Equal(t, "/var/lib/ballot/ballot.db", c.Database.Path)
	assert.Equal(t, "127.0.0.1:9000", c.HTTP.Addr)
	assert.Equal(t, "http://analysis.internal", c.Services.Analysis.URL)
	assert.Equal(t, 2*time.Minute, c.Services.Analysis.Timeout)
	assert.Equal(t, DefaultServiceTimeout, c.Services.Signer.Timeout)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "worker: [unterminated")
	_, err := Load(path)
	assert.ErrorContains(t, err, "config: parse")
}

func TestConcurrencyClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 1},
		{-4, 1},
		{0.9, 1},
		{1, 1},
		{2.5, 2},
		{16, 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorkerConfig{MaxConcurrency: tt.in}.Concurrency(), "input %v", tt.in)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BALLOT_WORKER_ENABLED":         "false",
		"BALLOT_WORKER_INTERVAL":        "30s",
		"BALLOT_WORKER_MAX_CONCURRENCY": "4",
		"BALLOT_WORKER_DRY_RUN":         "true",
		"BALLOT_WORKER_THROTTLE_DELAY":  "0",
		"BALLOT_DATABASE_PATH":          "env.db",
		"BALLOT_SIGNER_URL":             " http://signer ",
		"BALLOT_SOCIAL_API_KEY":         "tok",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := Default()
	require.NoError(t, c.applyEnv(lookup))
	assert.False(t, c.Worker.IsEnabled())
	assert.Equal(t, 30*time.Second, c.Worker.Interval)
	assert.Equal(t, 4, c.Worker.Concurrency())
	assert.True(t, c.Worker.DryRun)
	assert.Equal(t, time.Duration(0), c.Worker.Throttle())
	assert.Equal(t, "env.db", c.Database.Path)
	assert.Equal(t, "http://signer", c.Services.Signer.URL)
	assert.Equal(t, "tok", c.Services.Social.APIKey)
}

func TestApplyEnvInvalid(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) {
		if k == "BALLOT_WORKER_INTERVAL" {
			return "soon", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "BALLOT_WORKER_INTERVAL")
}
