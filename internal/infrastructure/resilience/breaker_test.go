package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func call(b *Breaker, ok bool) error {
	_, err := Do(context.Background(), b, func(context.Context) (string, error) {
		if ok {
			return "ok", nil
		}
		return "", errBoom
	})
	return err
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		calls    []bool
		want     State
	}{
		{"stays closed on successes", Settings{FailureThreshold: 2}, []bool{true, true, true}, StateClosed},
		{"opens after consecutive failures", Settings{FailureThreshold: 3}, []bool{false, false, false}, StateOpen},
		{"success resets the streak", Settings{FailureThreshold: 2}, []bool{false, true, false}, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", tt.settings)
			for _, ok := range tt.calls {
				_ = call(b, ok)
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, OpenTimeout: time.Hour})
	require.ErrorIs(t, call(b, false), errBoom)

	called := false
	_, err := Do(context.Background(), b, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var transitions []string
	var mu sync.Mutex
	b := New("test", Settings{
		FailureThreshold: 1,
		OpenTimeout:      10 * time.Millisecond,
		OnStateChange: func(_ string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.Error(t, call(b, false))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, call(b, true))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})
	require.Error(t, call(b, false))
	time.Sleep(20 * time.Millisecond)

	require.ErrorIs(t, call(b, false), errBoom)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, b, func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Counts().Failures)
}
