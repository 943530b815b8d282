package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithFallbackReturnsPrimaryOnSuccess(t *testing.T) {
	result, err := WithFallback(&FallbackConfig[string]{}, func() (string, error) {
		return "primary", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "primary", result)
}

func TestWithFallbackFallsThroughChainInOrder(t *testing.T) {
	boom := errors.New("primary failed")
	cfg := &FallbackConfig[string]{
		Chain: []func() (string, error){
			func() (string, error) { return "", errors.New("chain-1 failed") },
			func() (string, error) { return "chain-2", nil },
		},
	}
	result, err := WithFallback(cfg, func() (string, error) { return "", boom })
	assert.NoError(t, err)
	assert.Equal(t, "chain-2", result)
}

func TestWithFallbackUsesDefaultWhenChainExhausted(t *testing.T) {
	cfg := &FallbackConfig[string]{
		Chain: []func() (string, error){
			func() (string, error) { return "", errors.New("chain-1 failed") },
		},
		Default: func() (string, bool) { return "default", true },
	}
	result, err := WithFallback(cfg, func() (string, error) { return "", errors.New("primary failed") })
	assert.NoError(t, err)
	assert.Equal(t, "default", result)
}

func TestWithFallbackReturnsLastErrorWhenNoDefault(t *testing.T) {
	lastErr := errors.New("chain-1 failed")
	cfg := &FallbackConfig[string]{
		Chain: []func() (string, error){
			func() (string, error) { return "", lastErr },
		},
	}
	_, err := WithFallback(cfg, func() (string, error) { return "", errors.New("primary failed") })
	assert.ErrorIs(t, err, lastErr)
}

func TestWithFallbackShouldFallbackFilter(t *testing.T) {
	primaryErr := errors.New("not eligible for fallback")
	cfg := &FallbackConfig[string]{
		ShouldFallback: func(err error) bool { return false },
		Chain: []func() (string, error){
			func() (string, error) { return "chain", nil },
		},
	}
	_, err := WithFallback(cfg, func() (string, error) { return "", primaryErr })
	assert.ErrorIs(t, err, primaryErr)
}

func TestWithFallbackNilConfigPropagatesPrimaryError(t *testing.T) {
	primaryErr := errors.New("boom")
	_, err := WithFallback[string](nil, func() (string, error) { return "", primaryErr })
	assert.ErrorIs(t, err, primaryErr)
}
