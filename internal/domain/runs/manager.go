package runs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/bpforge/internal/report"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// ErrUnknownRun is returned for run ids the manager is not tracking
var ErrUnknownRun = errors.New("unknown run")

// State is the lifecycle state of a tracked run
type State string

const (
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

// Request describes one run. Either Blueprint or Content is set.
type Request struct {
	Blueprint *blueprint.Blueprint
	Content   []byte
	Format    blueprint.Format
	Options   *pipeline.Options
}

// Run is the live view of a tracked run
type Run struct {
	ID             id.RunID   `json:"run_id"`
	System         string     `json:"system,omitempty"`
	State          State      `json:"state"`
	Components     int        `json:"components"`
	Finished       int        `json:"finished_components"`
	Transitions    int        `json:"transitions"`
	Passed         *bool      `json:"passed,omitempty"`
	AggregateScore *float64   `json:"aggregate_score,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`

	cancel context.CancelFunc
	result *pipeline.Result
}

// Stats summarizes tracked runs
type Stats struct {
	Running   int `json:"running"`
	Finished  int `json:"finished"`
	Cancelled int `json:"cancelled"`
	Tracked   int `json:"tracked"`
}

// Tracker is told when runs start; the returned func marks completion
type Tracker interface {
	RunStarted() func()
}

// Option configures a Manager
type Option func(*Manager)

// WithTracer opens one span per run
func WithTracer(t *tracing.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithTracker reports active runs
func WithTracker(t Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithTimeout bounds every run; zero disables the bound
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithRetention caps how many finished runs stay in memory
func WithRetention(n int) Option {
	return func(m *Manager) { m.retain = n }
}

// WithLogger sets the manager logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager executes pipeline runs, persists their reports and tracks the
// ones in flight so they can be inspected or cancelled
type Manager struct {
	mu       sync.RWMutex
	runs     map[id.RunID]*Run // Protected by mu
	finished []id.RunID        // Protected by mu, oldest first

	pipeline *pipeline.Pipeline
	store    *report.Store
	tracer   *tracing.Tracer
	tracker  Tracker
	timeout  time.Duration
	retain   int
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewManager creates a run manager
func NewManager(p *pipeline.Pipeline, store *report.Store, opts ...Option) *Manager {
	m := &Manager{
		runs:     make(map[id.RunID]*Run),
		pipeline: p,
		store:    store,
		retain:   256,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Pipeline returns the pipeline runs execute on
func (m *Manager) Pipeline() *pipeline.Pipeline {
	return m.pipeline
}

// Execute runs req to completion, persists the report and returns it. The
// result is populated even when err reports a parse, compile or cancellation
// failure.
func (m *Manager) Execute(ctx context.Context, req Request, observe pipeline.Observer) (*pipeline.Result, error) {
	return m.execute(ctx, req, observe, nil)
}

// Start launches req in the background and returns its run id once the run
// has been assigned one
func (m *Manager) Start(ctx context.Context, req Request, observe pipeline.Observer) (id.RunID, error) {
	ready := make(chan id.RunID, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.execute(context.WithoutCancel(ctx), req, observe, ready)
	}()

	select {
	case runID := <-ready:
		return runID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) execute(ctx context.Context, req Request, observe pipeline.Observer, ready chan<- id.RunID) (*pipeline.Result, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		span       *tracing.Span
		components *componentSpans
	)
	if m.tracer != nil {
		span, ctx = m.tracer.StartSpan(ctx, "pipeline.run")
		components = &componentSpans{tracer: m.tracer, ctx: ctx}
	}
	if m.tracker != nil {
		done := m.tracker.RunStarted()
		defer done()
	}

	p := m.pipeline
	if req.Options != nil {
		p = p.With(*req.Options)
	}

	var once sync.Once
	track := func(e pipeline.Event) {
		once.Do(func() {
			m.register(e.RunID, cancel)
			if ready != nil {
				ready <- e.RunID
			}
		})
		m.progress(e)
		if components != nil {
			components.observe(e)
		}
		if observe != nil {
			observe(e)
		}
	}

	var (
		res *pipeline.Result
		err error
	)
	if req.Blueprint != nil {
		res, err = p.Run(ctx, req.Blueprint, track)
	} else {
		res, err = p.RunDocument(ctx, req.Content, req.Format, track)
	}

	m.complete(res)
	if m.store != nil {
		if _, saveErr := m.store.Save(context.WithoutCancel(ctx), res); saveErr != nil {
			m.logger.Error("Failed to persist report", zap.String("run_id", res.RunID.String()), zap.Error(saveErr))
		}
	}

	if span != nil {
		span.SetTag("run_id", res.RunID.String())
		span.SetTag("system", res.System)
		span.SetTag("passed", fmt.Sprint(res.Summary.OverallPassed))
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		m.tracer.Submit(span)
	}
	return res, err
}

// componentSpans turns component_finished events into child spans of the run
// span. Component spans start when the graph compiled, so they include time
// spent waiting for a worker.
type componentSpans struct {
	tracer *tracing.Tracer
	ctx    context.Context

	mu    sync.Mutex
	since time.Time
}

func (cs *componentSpans) observe(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventCompiled:
		cs.mu.Lock()
		cs.since = e.At
		cs.mu.Unlock()
	case pipeline.EventComponentFinished:
		cs.mu.Lock()
		start := cs.since
		cs.mu.Unlock()
		if start.IsZero() {
			start = e.At
		}
		span, _ := cs.tracer.StartSpanAt(cs.ctx, "pipeline.component", start)
		span.SetTag("component", e.Component)
		span.SetTag("status", string(e.Status))
		if !e.Passed {
			span.SetError(fmt.Errorf("component %s ended %s", e.Component, e.Status))
		}
		span.FinishAt(e.At)
		cs.tracer.Submit(span)
	}
}

func (m *Manager) register(runID id.RunID, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = &Run{ID: runID, State: StateRunning, StartedAt: time.Now(), cancel: cancel}
}

func (m *Manager) progress(e pipeline.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[e.RunID]
	if !ok {
		return
	}
	switch e.Type {
	case pipeline.EventRunStarted:
		run.System = e.Detail
	case pipeline.EventCompiled:
		run.Components = e.Components
	case pipeline.EventComponentFinished:
		run.Finished++
	case pipeline.EventTransition:
		run.Transitions++
	}
}

func (m *Manager) complete(res *pipeline.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[res.RunID]
	if !ok {
		run = &Run{ID: res.RunID, StartedAt: res.StartedAt}
		m.runs[res.RunID] = run
	}
	run.cancel = nil
	run.result = res
	run.System = res.System
	run.Components = len(res.Components)
	run.State = StateFinished
	if len(res.Summary.CancelledComponents) > 0 {
		run.State = StateCancelled
	}
	passed, score := res.Summary.OverallPassed, res.Summary.AggregateScore
	run.Passed, run.AggregateScore = &passed, &score
	finishedAt := res.FinishedAt
	run.FinishedAt = &finishedAt

	m.finished = append(m.finished, res.RunID)
	for m.retain > 0 && len(m.finished) > m.retain {
		delete(m.runs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

// Get returns a copy of the tracked run
func (m *Manager) Get(runID id.RunID) (Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return Run{}, false
	}
	return run.snapshot(), true
}

// Result returns the result of a finished run still held in memory
func (m *Manager) Result(runID id.RunID) (*pipeline.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok || run.result == nil {
		return nil, false
	}
	return run.result, true
}

// List returns every tracked run, newest first
func (m *Manager) List() []Run {
	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Cancel stops a running run. Components already finished keep their outcome.
func (m *Manager) Cancel(runID id.RunID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if run.cancel == nil {
		return fmt.Errorf("run %s is not running", runID)
	}
	run.cancel()
	m.logger.Info("Run cancelled", zap.String("run_id", runID.String()))
	return nil
}

// Forget drops a finished run from memory
func (m *Manager) Forget(runID id.RunID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if run.cancel != nil {
		return fmt.Errorf("run %s is still running", runID)
	}
	delete(m.runs, runID)
	for i, finished := range m.finished {
		if finished == runID {
			m.finished = append(m.finished[:i], m.finished[i+1:]...)
			break
		}
	}
	return nil
}

// Stats returns manager statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{Tracked: len(m.runs)}
	for _, run := range m.runs {
		switch run.State {
		case StateRunning:
			st.Running++
		case StateFinished:
			st.Finished++
		case StateCancelled:
			st.Cancelled++
		}
	}
	return st
}

// Shutdown cancels every running run and waits for background runs to finish
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, run := range m.runs {
		if run.cancel != nil {
			run.cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) snapshot() Run {
	out := *r
	out.cancel = nil
	out.result = nil
	return out
}
