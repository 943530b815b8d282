package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigAppliesTagDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 15*time.Second, cfg.QueueSoftTimeout)
	assert.Equal(t, 30*time.Second, cfg.QueueHardTimeout)
	assert.Equal(t, 12, cfg.MaxConcurrent)
	assert.Equal(t, "token_bucket", cfg.RateLimiterAlgorithm)
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("MAX_CONCURRENT_THREADS", "24")
	t.Setenv("QUEUE_SOFT_TIMEOUT", "5s")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 24, cfg.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.QueueSoftTimeout)
}

func TestLoadFromEnvIgnoresUnparseableValue(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_THREADS", "not-a-number")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	assert.Equal(t, 12, cfg.MaxConcurrent, "an unparseable env var must leave the tag default in place")
}

func TestNewConfigOptionsOverrideEnvAndDefaults(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_THREADS", "24")

	cfg, err := NewConfig(WithConcurrency(8), WithLogLevel("debug"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxConcurrent, "an explicit Option outranks the environment")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfigRejectsHardTimeoutNotGreaterThanSoft(t *testing.T) {
	_, err := NewConfig(WithQueueTimeouts(10*time.Second, 10*time.Second))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestNewConfigRejectsNonPositiveConcurrency(t *testing.T) {
	_, err := NewConfig(WithConcurrency(0))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestWithBulkheadSetsCapacityAndQueue(t *testing.T) {
	cfg, err := NewConfig(WithBulkhead(4, 10))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.BulkheadCapacity)
	assert.Equal(t, 10, cfg.BulkheadQueue)
}

func TestWithWorkerManifestDirOverride(t *testing.T) {
	cfg, err := NewConfig(WithWorkerManifestDir("/tmp/workers.d"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/workers.d", cfg.WorkerManifestDir)
}
