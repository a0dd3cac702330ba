package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy bounds calls to a synthesizer
type Policy struct {
	Attempts        int           // total attempts, at least 1
	Timeout         time.Duration // budget per attempt
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the default retry policy
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        3,
		Timeout:         30 * time.Second,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Retrying retries another synthesizer with exponential backoff
type Retrying struct {
	next   Synthesizer
	policy Policy
	logger *zap.Logger
}

// NewRetrying wraps next with policy
func NewRetrying(next Synthesizer, policy Policy, logger *zap.Logger) *Retrying {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultPolicy().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, policy: policy, logger: logger}
}

func (r *Retrying) backoff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.policy.InitialInterval
	expo.MaxInterval = r.policy.MaxInterval
	expo.MaxElapsedTime = 0
	expo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.policy.Attempts-1)), ctx)
}

// Synthesize calls the wrapped synthesizer until it succeeds, the attempts
// are exhausted, or ctx ends
func (r *Retrying) Synthesize(ctx context.Context, req Request) (string, error) {
	var source string
	attempt := 0

	op := func() error {
		attempt++
		req.Attempt = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()

		out, err := r.next.Synthesize(attemptCtx, req)
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyArtifact
		}
		if err == nil {
			source = out
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, r.policy.Timeout, err)
		}
		r.logger.Warn("Synthesis attempt failed",
			zap.String("component", req.Contract.Component),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.Attempts),
			zap.Error(err))
		if errors.Is(err, ErrRejected) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, r.backoff(ctx)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("synthesize %s: %d attempts: %w", req.Contract.Component, attempt, err)
	}
	return source, nil
}
