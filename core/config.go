package core

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

// Config holds every tunable the dispatch core reads at startup. It
// supports a three-layer priority:
//  1. struct-tag defaults (lowest)
//  2. environment variables (medium)
//  3. functional options passed to NewConfig (highest)
type Config struct {
	LLMProvider    string        `env:"LLM_PROVIDER" default:"anthropic"`
	LLMModel       string        `env:"LLM_MODEL" default:"claude-sonnet-4"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" default:"0.7"`

	QueueSoftTimeout time.Duration `env:"QUEUE_SOFT_TIMEOUT" default:"15s"`
	QueueHardTimeout time.Duration `env:"QUEUE_HARD_TIMEOUT" default:"30s"`

	WorkerTimeout    time.Duration `env:"AGENT_TIMEOUT_SECONDS" default:"30s"`
	MaxConcurrent    int           `env:"MAX_CONCURRENT_THREADS" default:"12"`

	LogLevel string `env:"LOG_LEVEL" default:"info"`
	LogFile  string `env:"LOG_FILE" default:""`

	BulkheadCapacity int           `env:"DISPATCH_BULKHEAD_CAPACITY" default:"8"`
	BulkheadQueue    int           `env:"DISPATCH_BULKHEAD_QUEUE" default:"16"`

	RateLimiterAlgorithm string        `env:"DISPATCH_RATE_LIMITER_ALGORITHM" default:"token_bucket"`
	RateLimiterMaxCalls  int           `env:"DISPATCH_RATE_LIMITER_MAX_CALLS" default:"20"`
	RateLimiterPeriod    time.Duration `env:"DISPATCH_RATE_LIMITER_PERIOD" default:"1s"`

	WorkerManifestDir string `env:"DISPATCH_WORKER_MANIFEST_DIR" default:"./workers.d"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY" default:""`
	YoutubeAPIKey   string `env:"YOUTUBE_API_KEY" default:""`
	SpotifyClientID string `env:"SPOTIFY_CLIENT_ID" default:""`
}

// DefaultConfig returns a Config populated purely from struct-tag
// defaults, with no environment or option overrides applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyTagDefaults(cfg)
	return cfg
}

// applyTagDefaults walks cfg's exported fields and sets each from its
// `default` struct tag, parsed according to the field's Go type.
func applyTagDefaults(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		def, ok := field.Tag.Lookup("default")
		if !ok || def == "" {
			continue
		}
		setFieldFromString(v.Field(i), def)
	}
}

// LoadFromEnv overrides cfg's fields from their `env` struct tag, where
// set in the process environment. Values that fail to parse for their
// field's type are left untouched: a forgiving-on-bad-env-var behavior
// rather than failing startup over one malformed variable.
func (c *Config) LoadFromEnv() {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envName, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}
		if raw, set := os.LookupEnv(envName); set && raw != "" {
			setFieldFromString(v.Field(i), raw)
		}
	}
}

func setFieldFromString(f reflect.Value, raw string) {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int64:
		if f.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(raw); err == nil {
				f.Set(reflect.ValueOf(d))
			}
			return
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.SetInt(n)
		}
	case reflect.Float64, reflect.Float32:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			f.SetFloat(n)
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			f.SetBool(b)
		}
	}
}

// Option is a functional override applied after defaults and environment,
// taking highest priority in the three-layer scheme.
type Option func(*Config)

// WithLLM sets the provider/model/temperature used by judge/llmclient.
func WithLLM(provider, model string, temperature float64) Option {
	return func(c *Config) {
		c.LLMProvider = provider
		c.LLMModel = model
		c.LLMTemperature = temperature
	}
}

// WithQueueTimeouts sets the Smart Dispatch Queue's soft/hard deadlines.
func WithQueueTimeouts(soft, hard time.Duration) Option {
	return func(c *Config) {
		c.QueueSoftTimeout = soft
		c.QueueHardTimeout = hard
	}
}

// WithConcurrency sets the Orchestrator's pool size.
func WithConcurrency(maxConcurrent int) Option {
	return func(c *Config) { c.MaxConcurrent = maxConcurrent }
}

// WithLogLevel overrides the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// WithBulkhead sets the bulkhead's permit/queue capacity.
func WithBulkhead(capacity, queue int) Option {
	return func(c *Config) {
		c.BulkheadCapacity = capacity
		c.BulkheadQueue = queue
	}
}

// WithWorkerManifestDir overrides the directory the worker registry scans
// for manifests.
func WithWorkerManifestDir(dir string) Option {
	return func(c *Config) { c.WorkerManifestDir = dir }
}

// NewConfig builds a Config from defaults, then environment, then opts,
// in that priority order, and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the queue timeouts must satisfy and
// rejects an obviously broken concurrency pool size.
func (c *Config) Validate() error {
	if c.QueueHardTimeout <= c.QueueSoftTimeout {
		return NewFrameworkError("core.Config.Validate", "config_invalid",
			fmt.Errorf("%w: QUEUE_HARD_TIMEOUT (%s) must be greater than QUEUE_SOFT_TIMEOUT (%s)",
				ErrConfigInvalid, c.QueueHardTimeout, c.QueueSoftTimeout))
	}
	if c.QueueSoftTimeout <= 0 {
		return NewFrameworkError("core.Config.Validate", "config_invalid",
			fmt.Errorf("%w: QUEUE_SOFT_TIMEOUT must be positive", ErrConfigInvalid))
	}
	if c.MaxConcurrent <= 0 {
		return NewFrameworkError("core.Config.Validate", "config_invalid",
			fmt.Errorf("%w: MAX_CONCURRENT_THREADS must be positive", ErrConfigInvalid))
	}
	return nil
}
