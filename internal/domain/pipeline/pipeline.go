package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/graph"
	"github.com/GriffinCanCode/bpforge/internal/domain/healing"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics reports run measurements to m
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline compiles blueprints and drives per-component synthesis, validation and healing
type Pipeline struct {
	exec     sandbox.Executor
	synth    synthesizer.Synthesizer
	opts     Options
	parser   *blueprint.Parser
	expander *recipe.Expander
	gate     *validation.Gate
	engine   *healing.Engine
	metrics  Metrics
	logger   *zap.Logger
}

// New creates a pipeline executing artifacts on exec and obtaining them from synth
func New(exec sandbox.Executor, synth synthesizer.Synthesizer, opts Options, options ...Option) (*Pipeline, error) {
	table, err := recipe.DefaultTable()
	if err != nil {
		return nil, fmt.Errorf("load recipe table: %w", err)
	}
	p := &Pipeline{
		exec:     exec,
		synth:    synth,
		expander: recipe.NewExpander(table),
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.configure(opts)
	return p, nil
}

func (p *Pipeline) configure(opts Options) {
	p.opts = opts.withDefaults()
	p.parser = blueprint.NewParser(blueprint.WithSchemaVersions(p.opts.SchemaVersions...))
	p.gate = validation.NewGate(p.exec, p.opts.gate(), p.logger)
	p.engine = healing.NewEngine(p.gate, p.synth, p.opts.healing(), p.logger)
}

// With returns a pipeline sharing executor, synthesizer and expansion cache but using opts
func (p *Pipeline) With(opts Options) *Pipeline {
	clone := *p
	clone.configure(opts)
	return &clone
}

// Options returns the effective options
func (p *Pipeline) Options() Options {
	return p.opts
}

// Recipes returns the recipe table
func (p *Pipeline) Recipes() *recipe.Table {
	return p.expander.Table()
}

// Parse parses a blueprint document
func (p *Pipeline) Parse(content []byte, format blueprint.Format) (*blueprint.Blueprint, error) {
	return p.parser.Parse(content, format)
}

// Compilation is an expanded blueprint and, when consistent, its graph
type Compilation struct {
	Blueprint       *blueprint.Blueprint
	Components      []*recipe.ExpandedComponent
	ExpansionErrors ExpansionErrors
	Graph           *graph.ComponentGraph
}

// Compile expands every component and builds the graph. Expansion failures are
// isolated per component but stop compilation before the graph is built; the
// error is ExpansionErrors or graph.GraphErrors.
func (p *Pipeline) Compile(bp *blueprint.Blueprint) (*Compilation, error) {
	c := &Compilation{Blueprint: bp}
	components, errs := p.expander.ExpandAll(bp.Components)
	c.Components = components
	if len(errs) > 0 {
		c.ExpansionErrors = errs
		return c, c.ExpansionErrors
	}

	g, err := graph.Build(components, bp.Bindings)
	if err != nil {
		return c, err
	}
	c.Graph = g
	return c, nil
}

// RunDocument parses content and runs the resulting blueprint
func (p *Pipeline) RunDocument(ctx context.Context, content []byte, format blueprint.Format, observe Observer) (*Result, error) {
	bp, err := p.Parse(content, format)
	if err != nil {
		res := p.newResult(nil)
		res.Errors = errorLines(err)
		p.finish(res, observe)
		return res, err
	}
	return p.Run(ctx, bp, observe)
}

// Run compiles bp and processes every component. The result is always
// populated; the error reports a compile failure or cancellation.
func (p *Pipeline) Run(ctx context.Context, bp *blueprint.Blueprint, observe Observer) (*Result, error) {
	res := p.newResult(bp)
	emit := func(e Event) {
		if observe == nil {
			return
		}
		e.RunID = res.RunID
		e.At = time.Now()
		observe(e)
	}
	emit(Event{Type: EventRunStarted, Detail: res.System})
	p.logger.Info("Run started",
		zap.String("run_id", res.RunID.String()),
		zap.String("system", res.System),
		zap.Int("components", len(bp.Components)))

	compiled, err := p.Compile(bp)
	if err != nil {
		p.abort(res, bp, compiled, err)
		p.finish(res, observe)
		return res, err
	}
	emit(Event{
		Type:       EventCompiled,
		Components: len(compiled.Graph.Names()),
		Detail:     fmt.Sprintf("%d components, %d edges", len(compiled.Graph.Names()), len(compiled.Graph.Edges())),
	})

	engine := p.engine.WithObserver(func(t healing.Transition) {
		if p.metrics != nil {
			p.metrics.ObserveTransition(string(t.From), string(t.To))
		}
		tr := t
		emit(Event{Type: EventTransition, Component: t.Component, Transition: &tr})
	})

	components := compiled.Graph.Components()
	res.Components = make([]ComponentResult, len(components))

	var eg errgroup.Group
	eg.SetLimit(p.opts.Workers)
	for i, ec := range components {
		eg.Go(func() error {
			cr := p.component(ctx, engine, compiled.Graph, ec, emit)
			res.Components[i] = cr
			emit(Event{Type: EventComponentFinished, Component: cr.Name, Status: cr.Status, Passed: cr.Status == StatusResolved, Score: score(cr.Verdict)})
			return nil
		})
	}
	_ = eg.Wait()

	p.finish(res, observe)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// component synthesizes, validates and heals one component
func (p *Pipeline) component(ctx context.Context, engine *healing.Engine, g *graph.ComponentGraph, ec *recipe.ExpandedComponent, emit Observer) ComponentResult {
	start := time.Now()
	c := artifact.ContractFor(ec, g)
	cr := ComponentResult{Name: ec.Name, Kind: ec.Kind}
	defer func() {
		cr.Duration = time.Since(start)
		if p.metrics != nil {
			p.metrics.ObserveComponent(string(cr.Status), cr.Duration)
		}
	}()

	if ctx.Err() != nil {
		cr.Status = StatusCancelled
		return cr
	}

	req := synthesizer.NewRequest(c, nil, "")
	req.Attempt = 1
	source, synthErr := p.synth.Synthesize(ctx, req)
	cr.SynthesisCalls = 1
	if synthErr != nil {
		if ctx.Err() != nil {
			cr.Status = StatusCancelled
			return cr
		}
		p.logger.Warn("Initial synthesis failed",
			zap.String("component", ec.Name),
			zap.Error(synthErr))
		source = ""
	}
	emit(Event{Type: EventSynthesized, Component: ec.Name, Detail: synthesizer.Outcome(synthErr)})

	v, err := p.gate.Validate(ctx, c, source)
	if err != nil {
		return p.failed(ctx, cr, source, err)
	}
	if synthErr != nil {
		augmented := *v
		augmented.Findings = append(augmented.Findings[:len(augmented.Findings):len(augmented.Findings)], healing.SynthesisFinding(ec.Name, synthErr))
		augmented.Passed = false
		v = &augmented
	}
	cr.InitialScore = v.Score
	if p.metrics != nil {
		p.metrics.ObserveVerdict(v.Passed, v.Score)
	}
	emit(Event{Type: EventValidated, Component: ec.Name, Passed: v.Passed, Score: v.Score})

	out, err := engine.Heal(ctx, c, source, v)
	if out != nil {
		cr.Status = statusOf(out.State)
		cr.Artifact = out.Artifact
		cr.Verdict = out.Verdict
		cr.History = out.Checkpoints
		cr.Attempts = out.Attempts
		cr.Transitions = out.Transitions
		cr.SynthesisCalls += out.SynthesisCalls
	}
	if err != nil && ctx.Err() == nil {
		cr.Status = StatusEscalated
		cr.Error = err.Error()
	}
	if out != nil && len(out.Checkpoints) > 1 && p.metrics != nil {
		p.metrics.ObserveVerdict(out.Verdict.Passed, out.Verdict.Score)
	}
	return cr
}

func (p *Pipeline) failed(ctx context.Context, cr ComponentResult, source string, err error) ComponentResult {
	cr.Artifact = source
	if ctx.Err() != nil {
		cr.Status = StatusCancelled
		return cr
	}
	cr.Status = StatusEscalated
	cr.Error = err.Error()
	p.logger.Error("Validation failed", zap.String("component", cr.Name), zap.Error(err))
	return cr
}

// abort records a compile failure. Components that failed to expand carry their
// error; every other component is reported as not started.
func (p *Pipeline) abort(res *Result, bp *blueprint.Blueprint, compiled *Compilation, err error) {
	res.Errors = errorLines(err)
	failed := make(map[string]string)
	if compiled != nil {
		for _, e := range compiled.ExpansionErrors {
			failed[e.Component] = e.Error()
		}
	}
	for _, spec := range bp.Components {
		cr := ComponentResult{Name: spec.Name, Kind: spec.Kind, Status: StatusNotStarted}
		if msg, ok := failed[spec.Name]; ok {
			cr.Status = StatusExpansionFailed
			cr.Error = msg
		}
		res.Components = append(res.Components, cr)
	}
	p.logger.Warn("Run aborted before synthesis",
		zap.String("run_id", res.RunID.String()),
		zap.Int("errors", len(res.Errors)))
}

func (p *Pipeline) newResult(bp *blueprint.Blueprint) *Result {
	res := &Result{RunID: id.NewRunID(), Threshold: p.opts.Threshold, StartedAt: time.Now()}
	if bp != nil {
		res.System = bp.System.Name
		res.BlueprintHash = bp.Hash
	}
	return res
}

func (p *Pipeline) finish(res *Result, observe Observer) {
	res.FinishedAt = time.Now()
	res.summarize()
	if p.metrics != nil {
		p.metrics.ObserveRun(res.Summary.OverallPassed, res.FinishedAt.Sub(res.StartedAt))
	}
	if observe != nil {
		summary := res.Summary
		observe(Event{Type: EventRunFinished, RunID: res.RunID, Passed: summary.OverallPassed, Score: summary.AggregateScore, Summary: &summary, At: res.FinishedAt})
	}
	p.logger.Info("Run finished",
		zap.String("run_id", res.RunID.String()),
		zap.Bool("passed", res.Summary.OverallPassed),
		zap.Float64("aggregate_score", res.Summary.AggregateScore),
		zap.Strings("escalated", res.Summary.EscalatedComponents),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)))
}

// errorLines flattens collected errors into one message per problem
func errorLines(err error) []string {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range multi.Unwrap() {
			out = append(out, e.Error())
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{err.Error()}
}

func score(v *validation.Verdict) float64 {
	if v == nil {
		return 0
	}
	return v.Score
}
