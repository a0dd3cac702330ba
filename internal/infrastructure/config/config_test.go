package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Pipeline config
	assert.Equal(t, 0.80, cfg.Pipeline.Threshold)
	assert.Equal(t, 3, cfg.Pipeline.MaxPasses)
	assert.Equal(t, 2, cfg.Pipeline.SynthesisAttempts)
	assert.Equal(t, []string{"1.0.0", "1.1.0", "2.0.0"}, cfg.Pipeline.SchemaVersions)

	// Synthesizer config
	assert.Equal(t, 30*time.Second, cfg.Synthesizer.Timeout.Std())
	assert.Equal(t, 2, cfg.Synthesizer.Retries)
	assert.Empty(t, cfg.Synthesizer.Endpoint)

	// Sandbox config
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout.Std())

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                 "9000",
		"HOST":                 "127.0.0.1",
		"VALIDATION_THRESHOLD": "0.9",
		"HEAL_MAX_PASSES":      "5",
		"SCHEMA_VERSIONS":      "2.0.0",
		"SYNTH_ENDPOINT":       "http://synth:9000",
		"SYNTH_TIMEOUT":        "10s",
		"SANDBOX_TIMEOUT":      "500ms",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
		"RATE_LIMIT_RPS":       "500",
		"RATE_LIMIT_ENABLED":   "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 0.9, cfg.Pipeline.Threshold)
	assert.Equal(t, 5, cfg.Pipeline.MaxPasses)
	assert.Equal(t, []string{"2.0.0"}, cfg.Pipeline.SchemaVersions)
	assert.Equal(t, "http://synth:9000", cfg.Synthesizer.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Synthesizer.Timeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Sandbox.Timeout.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)

	// untouched values keep their defaults
	assert.Equal(t, 2, cfg.Pipeline.SynthesisAttempts)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
}

func TestLoadFileEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bpforge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[pipeline]
threshold = 0.9
workers = 8

[synthesizer]
timeout = "45s"

[storage]
report_dir = "/var/lib/bpforge"
`), 0o600))
	t.Setenv("PIPELINE_WORKERS", "2")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Pipeline.Threshold)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 45*time.Second, cfg.Synthesizer.Timeout.Std())
	assert.Equal(t, "/var/lib/bpforge", cfg.Storage.ReportDir)
	assert.Equal(t, 3, cfg.Pipeline.MaxPasses)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"threshold above one": "VALIDATION_THRESHOLD",
		"zero passes":         "HEAL_MAX_PASSES",
		"bad duration":        "SYNTH_TIMEOUT",
	}
	values := map[string]string{
		"VALIDATION_THRESHOLD": "1.5",
		"HEAL_MAX_PASSES":      "0",
		"SYNTH_TIMEOUT":        "soon",
	}
	for name, key := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(key, values[key])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("VALIDATION_THRESHOLD", "7")
	cfg := LoadOrDefault()
	assert.Equal(t, 0.80, cfg.Pipeline.Threshold)
}
