package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Synthesizer SynthesizerConfig `toml:"synthesizer"`
	Sandbox     SandboxConfig     `toml:"sandbox"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LogConfig         `toml:"logging"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" toml:"port"`
	Host        string   `envconfig:"HOST" toml:"host"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" toml:"cors_origins"`
	MaxBodySize int64    `envconfig:"MAX_BODY_SIZE" toml:"max_body_size"`
}

// PipelineConfig holds validation and healing settings.
type PipelineConfig struct {
	Threshold         float64  `envconfig:"VALIDATION_THRESHOLD" toml:"threshold"`
	SampleCount       int      `envconfig:"VALIDATION_SAMPLES" toml:"sample_count"`
	Seed              uint64   `envconfig:"VALIDATION_SEED" toml:"seed"`
	MaxPasses         int      `envconfig:"HEAL_MAX_PASSES" toml:"max_passes"`
	SynthesisAttempts int      `envconfig:"HEAL_SYNTHESIS_ATTEMPTS" toml:"synthesis_attempts"`
	Workers           int      `envconfig:"PIPELINE_WORKERS" toml:"workers"`
	SchemaVersions    []string `envconfig:"SCHEMA_VERSIONS" toml:"schema_versions"`
}

// SynthesizerConfig holds the synthesizer client settings. An empty
// endpoint selects the built-in template synthesizer.
type SynthesizerConfig struct {
	Endpoint           string   `envconfig:"SYNTH_ENDPOINT" toml:"endpoint"`
	Token              string   `envconfig:"SYNTH_TOKEN" toml:"token"`
	Timeout            Duration `envconfig:"SYNTH_TIMEOUT" toml:"timeout"`
	Retries            int      `envconfig:"SYNTH_RETRIES" toml:"retries"`
	InitialBackoff     Duration `envconfig:"SYNTH_BACKOFF_INITIAL" toml:"initial_backoff"`
	MaxBackoff         Duration `envconfig:"SYNTH_BACKOFF_MAX" toml:"max_backoff"`
	RateLimit          float64  `envconfig:"SYNTH_RATE_LIMIT" toml:"rate_limit"`
	Burst              int      `envconfig:"SYNTH_BURST" toml:"burst"`
	BreakerFailures    int      `envconfig:"SYNTH_BREAKER_FAILURES" toml:"breaker_failures"`
	BreakerOpenTimeout Duration `envconfig:"SYNTH_BREAKER_OPEN_TIMEOUT" toml:"breaker_open_timeout"`
}

// SandboxConfig holds the artifact execution budget.
type SandboxConfig struct {
	Timeout      Duration `envconfig:"SANDBOX_TIMEOUT" toml:"timeout"`
	PoolSize     int      `envconfig:"SANDBOX_POOL" toml:"pool_size"`
	MaxCallStack int      `envconfig:"SANDBOX_MAX_CALL_STACK" toml:"max_call_stack"`
}

// StorageConfig holds filesystem locations.
type StorageConfig struct {
	ReportDir    string `envconfig:"REPORT_DIR" toml:"report_dir"`
	BlueprintDir string `envconfig:"BLUEPRINT_DIR" toml:"blueprint_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// Duration is a time.Duration read from text such as "30s"
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from environment variables over the defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile applies defaults, then the TOML file at path (if any), then the
// environment. Later sources win.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch {
	case c.Pipeline.Threshold <= 0 || c.Pipeline.Threshold > 1:
		return fmt.Errorf("validation threshold %v must be in (0, 1]", c.Pipeline.Threshold)
	case c.Pipeline.MaxPasses < 1:
		return fmt.Errorf("max passes %d must be at least 1", c.Pipeline.MaxPasses)
	case c.Pipeline.SynthesisAttempts < 1:
		return fmt.Errorf("synthesis attempts %d must be at least 1", c.Pipeline.SynthesisAttempts)
	case c.Pipeline.Workers < 1:
		return fmt.Errorf("workers %d must be at least 1", c.Pipeline.Workers)
	case c.Synthesizer.Retries < 0:
		return fmt.Errorf("synthesizer retries %d must not be negative", c.Synthesizer.Retries)
	case c.Sandbox.Timeout <= 0:
		return fmt.Errorf("sandbox timeout must be positive")
	case c.Sandbox.PoolSize < 1:
		return fmt.Errorf("sandbox pool size %d must be at least 1", c.Sandbox.PoolSize)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
			MaxBodySize: 1 << 20,
		},
		Pipeline: PipelineConfig{
			Threshold:         0.80,
			SampleCount:       6,
			Seed:              1,
			MaxPasses:         3,
			SynthesisAttempts: 2,
			Workers:           4,
			SchemaVersions:    []string{"1.0.0", "1.1.0", "2.0.0"},
		},
		Synthesizer: SynthesizerConfig{
			Timeout:            Duration(30 * time.Second),
			Retries:            2,
			InitialBackoff:     Duration(200 * time.Millisecond),
			MaxBackoff:         Duration(5 * time.Second),
			RateLimit:          5,
			Burst:              5,
			BreakerFailures:    5,
			BreakerOpenTimeout: Duration(30 * time.Second),
		},
		Sandbox: SandboxConfig{
			Timeout:      Duration(2 * time.Second),
			PoolSize:     4,
			MaxCallStack: 1024,
		},
		Storage: StorageConfig{
			ReportDir:    "data/reports",
			BlueprintDir: "blueprints",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
