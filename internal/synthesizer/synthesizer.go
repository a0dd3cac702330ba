package synthesizer

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// Synthesis errors
var (
	ErrTimeout       = errors.New("synthesizer call timed out")
	ErrUnavailable   = errors.New("synthesizer unavailable")
	ErrEmptyArtifact = errors.New("synthesizer returned an empty artifact")
)

// Request asks for an artifact satisfying Contract. Findings and Prior carry
// corrective context when the request comes from the healer.
type Request struct {
	ID       id.RequestID      `json:"id"`
	Contract artifact.Contract `json:"contract"`
	Findings finding.List      `json:"findings,omitempty"`
	Prior    string            `json:"prior,omitempty"`
	Attempt  int               `json:"attempt"`
}

// NewRequest builds a request with a fresh id
func NewRequest(c artifact.Contract, findings finding.List, prior string) Request {
	return Request{ID: id.NewRequestID(), Contract: c, Findings: findings, Prior: prior}
}

// Synthesizer produces artifact source for a contract
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Synthesizer interface
type Func func(ctx context.Context, req Request) (string, error)

// Synthesize calls f
func (f Func) Synthesize(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// IsTimeout reports whether err is a synthesis timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
