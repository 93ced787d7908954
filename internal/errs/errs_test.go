package errs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsByKind(t *testing.T) {
	e1 := New(IndexNotBuilt, "no build", nil)
	e2 := New(IndexNotBuilt, "different message", nil)
	assert.True(t, errors.Is(e1, e2))
	assert.True(t, errors.Is(e1, Sentinel(IndexNotBuilt)))
	assert.False(t, errors.Is(e1, Sentinel(Conflict)))
}

func TestRetryableDefaults(t *testing.T) {
	assert.True(t, IsRetryable(New(EmbedderUnavailable, "down", nil)))
	assert.False(t, IsRetryable(New(InvalidInput, "bad", nil)))
	assert.Equal(t, InvalidInput, KindOf(New(InvalidInput, "bad", nil)))
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := DefaultRetryConfig()
	err := Retry(ctx, cfg, func() error { return errors.New("never runs twice") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerTripsOpen(t *testing.T) {
	cb := NewCircuitBreaker("embedder", WithMaxFailures(2), WithResetTimeout(time.Hour))
	fail := errors.New("boom")
	assert.Error(t, cb.Execute(func() error { return fail }))
	assert.Error(t, cb.Execute(func() error { return fail }))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { t.Fatal("must not call fn while open"); return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker("embedder", WithMaxFailures(1), WithResetTimeout(time.Millisecond))
	assert.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	assert.Equal(t, StateOpen, cb.State())
	time.Sleep(2 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
