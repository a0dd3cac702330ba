package monitoring

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/bpforge/internal/sandbox"
)

type executor struct {
	next    sandbox.Executor
	metrics *Metrics
}

// InstrumentExecutor records every sandbox execution made through next
func InstrumentExecutor(next sandbox.Executor, metrics *Metrics) sandbox.Executor {
	if metrics == nil {
		return next
	}
	return &executor{next: next, metrics: metrics}
}

func (e *executor) Execute(ctx context.Context, script string, globals map[string]string) (*sandbox.Result, error) {
	res, err := e.next.Execute(ctx, script, globals)
	e.metrics.SandboxExecutions.WithLabelValues(executionOutcome(err)).Inc()
	if res != nil {
		e.metrics.SandboxDuration.Observe(res.Duration.Seconds())
	}
	return res, err
}

func executionOutcome(err error) string {
	var scriptErr *sandbox.ScriptError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sandbox.ErrExecutionTimeout):
		return "timeout"
	case errors.As(err, &scriptErr):
		return "script_error"
	default:
		return "error"
	}
}
