package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

var (
	_ pipeline.Metrics     = (*Metrics)(nil)
	_ synthesizer.Recorder = (*Metrics)(nil)
	_ sandbox.Executor     = (*executor)(nil)
)

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ObserveRun(true, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RunsTotal.WithLabelValues("passed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RunsTotal.WithLabelValues("passed")))
}

func TestPipelineObservations(t *testing.T) {
	m := NewMetrics()
	m.ObserveVerdict(false, 0.4)
	m.ObserveVerdict(true, 0.9)
	m.ObserveTransition("PatternHealing", "Resolved")
	m.ObserveComponent("Resolved", 50*time.Millisecond)
	m.ObserveRun(false, time.Second)
	m.ObserveSynthesis(synthesizer.OutcomeTimeout, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("PatternHealing", "Resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComponentsTotal.WithLabelValues("Resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SynthesisCalls.WithLabelValues("timeout")))

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.Runs)
	assert.Equal(t, int64(0), s.RunsPassed)
	assert.Equal(t, int64(1), s.SynthesisCalls)
}

func TestRunStartedIsIdempotent(t *testing.T) {
	m := NewMetrics()
	done := m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsActive))
	done()
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, int64(0), m.Snapshot().ActiveRuns)
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/v1/runs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/v1/runs/a", "/v1/runs/b", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/v1/runs/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(3), s.TotalErrors)
}

func TestMiddlewareCountsRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.POST("/v1/compile", func(c *gin.Context) {
		MarkRejected(c, c.Query("stage"))
		c.Status(http.StatusUnprocessableEntity)
	})

	for _, stage := range []string{"parse", "graph", "graph"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/compile?stage="+stage, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("parse")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rejections.WithLabelValues("graph")))
	assert.Equal(t, int64(3), m.Snapshot().Rejections)
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun(true, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "bpforge_runs_total"))
	assert.True(t, strings.Contains(body, "bpforge_uptime_seconds"))
}

type stubExecutor struct {
	err error
}

func (s stubExecutor) Execute(context.Context, string, map[string]string) (*sandbox.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sandbox.Result{Duration: time.Millisecond}, nil
}

func TestInstrumentExecutor(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	_, _ = InstrumentExecutor(stubExecutor{}, m).Execute(ctx, "1", nil)
	_, _ = InstrumentExecutor(stubExecutor{err: sandbox.ErrExecutionTimeout}, m).Execute(ctx, "1", nil)
	_, _ = InstrumentExecutor(stubExecutor{err: &sandbox.ScriptError{Message: "boom"}}, m).Execute(ctx, "1", nil)
	_, _ = InstrumentExecutor(stubExecutor{err: errors.New("pool closed")}, m).Execute(ctx, "1", nil)

	for _, outcome := range []string{"ok", "timeout", "script_error", "error"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SandboxExecutions.WithLabelValues(outcome)), outcome)
	}

	next := stubExecutor{}
	assert.Equal(t, next, InstrumentExecutor(next, nil))
}
