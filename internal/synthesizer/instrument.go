package synthesizer

import (
	"context"
	"errors"
	"time"
)

// Outcome labels for recorded synthesis calls
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Recorder receives one observation per synthesis call
type Recorder interface {
	ObserveSynthesis(outcome string, duration time.Duration)
}

type instrumented struct {
	next     Synthesizer
	recorder Recorder
}

// Instrument reports every call made through next to recorder
func Instrument(next Synthesizer, recorder Recorder) Synthesizer {
	if recorder == nil {
		return next
	}
	return &instrumented{next: next, recorder: recorder}
}

func (i *instrumented) Synthesize(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	source, err := i.next.Synthesize(ctx, req)
	i.recorder.ObserveSynthesis(Outcome(err), time.Since(start))
	return source, err
}

// Outcome classifies a synthesis result
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
