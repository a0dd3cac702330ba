package healing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

// Validator re-validates a rewritten artifact
type Validator interface {
	Validate(ctx context.Context, c artifact.Contract, source string) (*validation.Verdict, error)
}

// Options bounds the work done per artifact
type Options struct {
	MaxPasses         int // rewrite attempts per rule-based state
	SynthesisAttempts int // synthesizer calls in SynthesizerAssisted
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{MaxPasses: 3, SynthesisAttempts: 2}
}

// Observer receives every transition as it happens. It must be safe for
// concurrent use when one engine heals several artifacts at once.
type Observer func(Transition)

// Outcome is the full record of healing one artifact
type Outcome struct {
	Component      string              `json:"component"`
	State          State               `json:"state"`
	Artifact       string              `json:"artifact"`
	Verdict        *validation.Verdict `json:"verdict"`
	Checkpoints    []Checkpoint        `json:"checkpoints"`
	Attempts       []Attempt           `json:"attempts"`
	Transitions    []Transition        `json:"transitions"`
	SynthesisCalls int                 `json:"synthesis_calls"`
}

// Latest returns the most recent checkpoint
func (o *Outcome) Latest() Checkpoint {
	return o.Checkpoints[len(o.Checkpoints)-1]
}

// Engine drives the healing state machine
type Engine struct {
	validator Validator
	synth     synthesizer.Synthesizer
	opts      Options
	observer  Observer
	logger    *zap.Logger
}

// NewEngine creates an engine. synth may be nil, in which case
// SynthesizerAssisted is never entered.
func NewEngine(v Validator, synth synthesizer.Synthesizer, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = def.MaxPasses
	}
	if opts.SynthesisAttempts <= 0 {
		opts.SynthesisAttempts = def.SynthesisAttempts
	}
	return &Engine{validator: v, synth: synth, opts: opts, logger: logger}
}

// WithObserver returns a copy of the engine reporting transitions to fn
func (e *Engine) WithObserver(fn Observer) *Engine {
	clone := *e
	clone.observer = fn
	return &clone
}

// Options returns the engine bounds
func (e *Engine) Options() Options {
	return e.opts
}

// Heal repairs source until it passes or every applicable state is exhausted.
// v is the verdict source already received. The returned error is non-nil only
// when ctx ends or the validator itself fails; the outcome is still populated.
func (e *Engine) Heal(ctx context.Context, c artifact.Contract, source string, v *validation.Verdict) (*Outcome, error) {
	r := &run{
		engine: e,
		c:      c,
		state:  StateCheckpointed,
		out:    &Outcome{Component: c.Component},
	}
	r.out.Checkpoints = append(r.out.Checkpoints, newCheckpoint(StateCheckpointed, 0, source, v))

	if v.Passed {
		r.move(StateResolved)
		return r.finish(), nil
	}

	for _, state := range healingStates {
		if state == StateSynthesizerAssisted && e.synth == nil {
			continue
		}
		if !state.applies(r.latest().Findings) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return r.cancel(err)
		}
		r.move(state)

		done, err := r.attempt(ctx, state)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancel(ctx.Err())
			}
			return r.finish(), err
		}
		if done {
			return r.finish(), nil
		}
	}

	r.move(StateEscalated)
	e.logger.Info("Artifact escalated",
		zap.String("component", c.Component),
		zap.Float64("score", r.latest().Score),
		zap.Strings("patterns", r.latest().Findings.Patterns()))
	return r.finish(), nil
}

type run struct {
	engine *Engine
	c      artifact.Contract
	state  State
	pass   int
	out    *Outcome
	// synthesizer failures, reported with the final verdict
	failures finding.List
}

func (r *run) latest() Checkpoint {
	return r.out.Latest()
}

func (r *run) move(to State) {
	t := Transition{Component: r.c.Component, From: r.state, To: to, Pass: r.pass, At: time.Now()}
	r.state = to
	r.out.Transitions = append(r.out.Transitions, t)
	if r.engine.observer != nil {
		r.engine.observer(t)
	}
}

// attempt runs one healing state, reporting true once the artifact passes.
// Every rewrite counts toward the state budget, improving or not. A rule-based
// rewrite that is rolled back ends the state at once: the base is unchanged,
// so the same rewrite would produce the same candidate again.
func (r *run) attempt(ctx context.Context, state State) (bool, error) {
	budget := r.engine.opts.MaxPasses
	if state == StateSynthesizerAssisted {
		budget = r.engine.opts.SynthesisAttempts
	}

	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		base := r.latest()

		candidate, err := r.rewrite(ctx, state, base, i+1)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			r.synthesisFailed(err)
			r.record(Attempt{Pass: r.pass, State: state, Result: AttemptFailed, Score: base.Score, Detail: err.Error()})
			continue
		}
		if candidate == base.Artifact {
			r.record(Attempt{Pass: r.pass, State: state, Result: AttemptUnchanged, Score: base.Score})
			return false, nil
		}

		r.pass++
		v, err := r.engine.validator.Validate(ctx, r.c, candidate)
		if err != nil {
			return false, fmt.Errorf("revalidate %s: %w", r.c.Component, err)
		}

		switch {
		case v.Passed:
			cp := newCheckpoint(state, r.pass, candidate, v)
			r.out.Checkpoints = append(r.out.Checkpoints, cp)
			r.record(Attempt{Pass: r.pass, State: state, Result: AttemptResolved, Score: v.Score, Digest: cp.Digest})
			r.failures = nil
			r.move(StateResolved)
			return true, nil
		case v.Score > base.Score:
			cp := newCheckpoint(state, r.pass, candidate, v)
			r.out.Checkpoints = append(r.out.Checkpoints, cp)
			r.record(Attempt{Pass: r.pass, State: state, Result: AttemptImproved, Score: v.Score, Digest: cp.Digest})
			if state != StateSynthesizerAssisted && !state.applies(v.Findings) {
				return false, nil
			}
		default:
			r.record(Attempt{
				Pass:   r.pass,
				State:  state,
				Result: AttemptRolledBack,
				Score:  v.Score,
				Digest: digest.Artifact(candidate),
				Detail: fmt.Sprintf("score %.4f did not improve on %.4f", v.Score, base.Score),
			})
			if state != StateSynthesizerAssisted {
				return false, nil
			}
		}
	}
	return false, nil
}

func (r *run) rewrite(ctx context.Context, state State, base Checkpoint, attempt int) (string, error) {
	switch state {
	case StatePatternHealing:
		return healPatterns(base.Artifact, r.c, base.Findings), nil
	case StateTypeHealing:
		return healTypes(base.Artifact, r.c, base.Findings), nil
	case StateStructuralHealing:
		return healStructure(base.Artifact, r.c, base.Findings), nil
	}

	req := synthesizer.NewRequest(r.c, base.Findings, base.Artifact)
	req.Attempt = attempt
	r.out.SynthesisCalls++
	return r.engine.synth.Synthesize(ctx, req)
}

func (r *run) synthesisFailed(err error) {
	f := SynthesisFinding(r.c.Component, err)
	for _, existing := range r.failures {
		if existing.Key() == f.Key() {
			return
		}
	}
	r.failures = append(r.failures, f)
}

func (r *run) record(a Attempt) {
	r.out.Attempts = append(r.out.Attempts, a)
	r.engine.logger.Debug("Healing attempt",
		zap.String("component", r.c.Component),
		zap.String("state", string(a.State)),
		zap.String("result", a.Result),
		zap.Int("pass", a.Pass),
		zap.Float64("score", a.Score))
}

func (r *run) cancel(err error) (*Outcome, error) {
	r.move(StateCancelled)
	return r.finish(), err
}

func (r *run) finish() *Outcome {
	cp := r.latest()
	r.out.State = r.state
	r.out.Artifact = cp.Artifact

	v := *cp.Verdict
	if len(r.failures) > 0 {
		v.Findings = append(append(finding.List(nil), v.Findings...), r.failures...)
		v.Passed = false
	}
	r.out.Verdict = &v
	return r.out
}

// SynthesisFinding converts a synthesizer error into a fatal finding
func SynthesisFinding(component string, err error) finding.Finding {
	f := finding.Finding{
		Tier:      finding.TierStructural,
		Severity:  finding.SeverityFatal,
		Pattern:   finding.SynthesizerFailure,
		Message:   err.Error(),
		Component: component,
	}
	if synthesizer.IsTimeout(err) {
		f.Pattern = finding.SynthesizerTimeout
	}
	return f
}
