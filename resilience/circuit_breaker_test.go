package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmind/dispatch/core"
)

func TestCircuitBreakerTripsAfterFailureThreshold(t *testing.T) {
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{
		Name: "t", FailureThreshold: 3, SuccessThreshold: 1, ResetTimeout: time.Second,
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(func() error { return boom })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerOpenRejectsUntilResetTimeout(t *testing.T) {
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{
		Name: "t", FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_ = cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	err = cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, core.ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	err = cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State(), "a single success meeting SuccessThreshold=1 closes from half-open")
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{
		Name: "t", FailureThreshold: 1, SuccessThreshold: 2, ResetTimeout: 15 * time.Millisecond,
	})
	require.NoError(t, err)

	_ = cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	err = cb.Execute(func() error { return errors.New("still broken") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State(), "a half-open probe failure must reopen the breaker")
}

func TestCircuitBreakerHalfOpenRequiresConsecutiveSuccesses(t *testing.T) {
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{
		Name: "t", FailureThreshold: 1, SuccessThreshold: 2, ResetTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State(), "one success is not enough when SuccessThreshold is 2")

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerClosedSuccessResetsFailureCount(t *testing.T) {
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{
		Name: "t", FailureThreshold: 2, SuccessThreshold: 1, ResetTimeout: time.Second,
	})
	require.NoError(t, err)

	_ = cb.Execute(func() error { return errors.New("boom") })
	require.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, StateClosed, cb.State(), "the reset success must have cleared the earlier failure")
}

func TestCircuitBreakerConfigValidation(t *testing.T) {
	_, err := NewCircuitBreaker(&CircuitBreakerConfig{Name: "t", FailureThreshold: 0, SuccessThreshold: 1, ResetTimeout: time.Second})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = NewCircuitBreaker(&CircuitBreakerConfig{Name: "t", FailureThreshold: 1, SuccessThreshold: 0, ResetTimeout: time.Second})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = NewCircuitBreaker(&CircuitBreakerConfig{Name: "t", FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: 0})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestCircuitBreakerNilConfigUsesDefaults(t *testing.T) {
	cb, err := NewCircuitBreaker(nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerOnStateChangeNotified(t *testing.T) {
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{Name: "t", FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: time.Second})
	require.NoError(t, err)

	var gotFrom, gotTo CircuitState
	cb.OnStateChange(func(name string, from, to CircuitState) {
		gotFrom, gotTo = from, to
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, StateClosed, gotFrom)
	assert.Equal(t, StateOpen, gotTo)
}
