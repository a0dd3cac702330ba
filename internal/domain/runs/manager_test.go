package runs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/bpforge/internal/report"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

const todoSystem = `
system: {name: todo, schema_version: "1.1.0"}
components:
  - {name: todo_controller, kind: Controller, config: {schema: {id: string, title: string}}}
  - {name: todo_store, kind: Store, config: {schema: {id: string, title: string}}}
bindings:
  - {from: todo_controller.output, to: todo_store.input}
`

type countingTracker struct {
	mu      sync.Mutex
	started int
	done    int
}

func (c *countingTracker) RunStarted() func() {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.done++
		c.mu.Unlock()
	}
}

func newManager(t *testing.T, synth synthesizer.Synthesizer, opts ...Option) (*Manager, *report.Store) {
	t.Helper()
	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	p, err := pipeline.New(pool, synth, pipeline.DefaultOptions())
	require.NoError(t, err)
	store, err := report.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewManager(p, store, opts...), store
}

func TestExecutePersistsReport(t *testing.T) {
	tracker := &countingTracker{}
	m, store := newManager(t, synthesizer.NewTemplate(), WithTracker(tracker))

	res, err := m.Execute(context.Background(), Request{Content: []byte(todoSystem), Format: blueprint.FormatYAML}, nil)
	require.NoError(t, err)
	assert.True(t, res.Summary.OverallPassed)

	saved, err := store.Load(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, saved.Summary)

	run, ok := m.Get(res.RunID)
	require.True(t, ok)
	assert.Equal(t, StateFinished, run.State)
	assert.Equal(t, "todo", run.System)
	assert.Equal(t, 2, run.Components)
	assert.Equal(t, 2, run.Finished)
	require.NotNil(t, run.Passed)
	assert.True(t, *run.Passed)

	got, ok := m.Result(res.RunID)
	require.True(t, ok)
	assert.Same(t, res, got)

	assert.Equal(t, 1, tracker.started)
	assert.Equal(t, 1, tracker.done)
	assert.Equal(t, Stats{Finished: 1, Tracked: 1}, m.Stats())
}

func TestExecuteParseErrorIsStillRecorded(t *testing.T) {
	m, store := newManager(t, synthesizer.NewTemplate())

	res, err := m.Execute(context.Background(), Request{Content: []byte("system: ["), Format: blueprint.FormatYAML}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, blueprint.ErrMalformedDocument)
	assert.NotEmpty(t, res.Errors)

	_, err = store.Load(context.Background(), res.RunID)
	assert.NoError(t, err)
	_, ok := m.Get(res.RunID)
	assert.True(t, ok)
}

func TestExecuteWithOptionsOverride(t *testing.T) {
	m, _ := newManager(t, synthesizer.NewTemplate())
	opts := m.Pipeline().Options()
	opts.Threshold = 0.95

	res, err := m.Execute(context.Background(), Request{Content: []byte(todoSystem), Options: &opts}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.95, res.Threshold)
}

func TestStartAndCancel(t *testing.T) {
	release := make(chan struct{})
	blocking := synthesizer.Func(func(ctx context.Context, req synthesizer.Request) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return synthesizer.Render(req.Contract), nil
		}
	})
	m, store := newManager(t, blocking)
	defer close(release)

	finished := make(chan pipeline.Event, 1)
	runID, err := m.Start(context.Background(), Request{Content: []byte(todoSystem)}, func(e pipeline.Event) {
		if e.Type == pipeline.EventRunFinished {
			finished <- e
		}
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, ok := m.Get(runID)
	require.True(t, ok)
	assert.Equal(t, StateRunning, run.State)
	assert.Equal(t, 1, m.Stats().Running)

	require.NoError(t, m.Cancel(runID))
	select {
	case e := <-finished:
		assert.False(t, e.Passed)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after cancel")
	}
	require.NoError(t, m.Shutdown(context.Background()))

	run, _ = m.Get(runID)
	assert.Equal(t, StateCancelled, run.State)
	assert.Error(t, m.Cancel(runID))
	assert.ErrorIs(t, m.Cancel("01ARZ3NDEKTSV4RRFFQ69G5FAV"), ErrUnknownRun)

	res, err := store.Load(context.Background(), runID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Summary.CancelledComponents)
}

func TestRetentionDropsOldestFinishedRuns(t *testing.T) {
	m, _ := newManager(t, synthesizer.NewTemplate(), WithRetention(2))

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := m.Execute(context.Background(), Request{Content: []byte(todoSystem)}, nil)
		require.NoError(t, err)
		ids = append(ids, res.RunID.String())
	}

	list := m.List()
	require.Len(t, list, 2)
	for _, run := range list {
		assert.NotEqual(t, ids[0], run.ID.String())
	}
}

func TestTimeoutCancelsRun(t *testing.T) {
	slow := synthesizer.Func(func(ctx context.Context, req synthesizer.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	m, _ := newManager(t, slow, WithTimeout(50*time.Millisecond))

	res, err := m.Execute(context.Background(), Request{Content: []byte(todoSystem)}, nil)
	require.Error(t, err)
	assert.False(t, res.Summary.OverallPassed)
	assert.Len(t, res.Summary.CancelledComponents, 2)
}

func TestForget(t *testing.T) {
	m, _ := newManager(t, synthesizer.NewTemplate())
	res, err := m.Execute(context.Background(), Request{Content: []byte(todoSystem)}, nil)
	require.NoError(t, err)

	require.NoError(t, m.Forget(res.RunID))
	_, ok := m.Get(res.RunID)
	assert.False(t, ok)
	assert.ErrorIs(t, m.Forget(res.RunID), ErrUnknownRun)
}

func TestTracerRecordsRunAndComponentSpans(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := tracing.New("test", zap.New(core))
	m, _ := newManager(t, synthesizer.NewTemplate(), WithTracer(tracer))

	res, err := m.Execute(context.Background(), Request{Content: []byte(todoSystem), Format: blueprint.FormatYAML}, nil)
	require.NoError(t, err)
	tracer.Close()

	spans := logs.FilterMessage("Span finished").All()
	require.Len(t, spans, 3)

	var run map[string]any
	components := map[string]map[string]any{}
	for _, entry := range spans {
		fields := entry.ContextMap()
		switch fields["span"] {
		case "pipeline.run":
			run = fields
		case "pipeline.component":
			components[fields["component"].(string)] = fields
		}
	}
	require.NotNil(t, run)
	assert.Equal(t, res.RunID.String(), run["run_id"])
	require.Len(t, components, 2)
	for name, fields := range components {
		assert.Equal(t, run["span_id"], fields["parent_id"], name)
		assert.Equal(t, run["trace_id"], fields["trace_id"], name)
		assert.Equal(t, string(pipeline.StatusResolved), fields["status"], name)
	}
}
