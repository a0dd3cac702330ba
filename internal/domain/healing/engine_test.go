package healing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

const storePorts = `
  ports() {
    return {
      inputs: { in_input: "record{id:string,title:string}", in_txn: "TxnSignal" },
      outputs: {}
    };
  }
`

const placeholderStore = `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }
` + storePorts + `
  process(port, msg) {
    return null;
  }
}
`

const goodStore = `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }
` + storePorts + `
  process(port, msg) {
    if (port === "in_txn") {
      return this.ack(msg);
    }
    return this.persist(this.dedupeKey(msg), msg);
  }
}
`

type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, req synthesizer.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// scriptedValidator returns verdicts in order, repeating the last one
type scriptedValidator struct {
	verdicts []*validation.Verdict
	calls    int
}

func (v *scriptedValidator) Validate(ctx context.Context, c artifact.Contract, source string) (*validation.Verdict, error) {
	i := v.calls
	if i >= len(v.verdicts) {
		i = len(v.verdicts) - 1
	}
	v.calls++
	return v.verdicts[i], nil
}

func newGate(t *testing.T) *validation.Gate {
	t.Helper()
	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return validation.NewGate(pool, validation.DefaultOptions(), nil)
}

func contractFor(t *testing.T, spec blueprint.ComponentSpec) artifact.Contract {
	t.Helper()
	table, err := recipe.DefaultTable()
	require.NoError(t, err)
	ec, err := recipe.NewExpander(table).Expand(spec)
	require.NoError(t, err)
	return artifact.ContractFor(ec, nil)
}

func storeContract(t *testing.T) artifact.Contract {
	return contractFor(t, blueprint.ComponentSpec{
		Name:   "todo_store",
		Kind:   "Store",
		Config: map[string]any{"schema": map[string]any{"id": "string", "title": "string"}},
	})
}

func heal(t *testing.T, e *Engine, gate *validation.Gate, c artifact.Contract, source string) *Outcome {
	t.Helper()
	v, err := gate.Validate(context.Background(), c, source)
	require.NoError(t, err)
	out, err := e.Heal(context.Background(), c, source, v)
	require.NoError(t, err)
	return out
}

func states(ts []Transition) []State {
	out := make([]State, len(ts))
	for i, t := range ts {
		out[i] = t.To
	}
	return out
}

func TestHealPassingArtifactResolvesImmediately(t *testing.T) {
	gate := newGate(t)
	synth := &mockSynthesizer{}
	out := heal(t, NewEngine(gate, synth, DefaultOptions(), nil), gate, storeContract(t), goodStore)

	assert.Equal(t, StateResolved, out.State)
	require.Len(t, out.Transitions, 1)
	assert.Equal(t, StateCheckpointed, out.Transitions[0].From)
	assert.Equal(t, StateResolved, out.Transitions[0].To)
	assert.Equal(t, goodStore, out.Artifact)
	assert.Empty(t, out.Attempts)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)
}

func TestHealPlaceholderResolvesWithoutSynthesizer(t *testing.T) {
	gate := newGate(t)
	c := storeContract(t)
	synth := &mockSynthesizer{}

	before, err := gate.Validate(context.Background(), c, placeholderStore)
	require.NoError(t, err)
	require.False(t, before.Passed)

	out, err := NewEngine(gate, synth, DefaultOptions(), nil).Heal(context.Background(), c, placeholderStore, before)
	require.NoError(t, err)

	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, []State{StatePatternHealing, StateResolved}, states(out.Transitions))
	assert.True(t, out.Verdict.Passed, out.Verdict.Findings)
	assert.Greater(t, out.Verdict.Score, before.Score)
	assert.NotContains(t, out.Artifact, "return null")
	assert.Contains(t, out.Artifact, delegate)
	assert.Zero(t, out.SynthesisCalls)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)

	require.Len(t, out.Checkpoints, 2)
	assert.Equal(t, digest.Artifact(out.Artifact), out.Latest().Digest)
	assert.Equal(t, 1, out.Latest().Pass)
}

func TestHealIsIdempotentOnHealedOutput(t *testing.T) {
	gate := newGate(t)
	c := storeContract(t)
	e := NewEngine(gate, nil, DefaultOptions(), nil)

	first := heal(t, e, gate, c, placeholderStore)
	require.Equal(t, StateResolved, first.State)

	second := heal(t, e, gate, c, first.Artifact)
	assert.Equal(t, StateResolved, second.State)
	assert.Equal(t, first.Artifact, second.Artifact)
	assert.Len(t, second.Transitions, 1)
}

func TestHealForbiddenEval(t *testing.T) {
	gate := newGate(t)
	source := `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }
` + storePorts + `
  process(port, msg) {
    if (port === "in_txn") {
      return this.ack(msg);
    }
    var copy = eval(JSON.stringify(msg.title));
    return this.persist(this.dedupeKey(msg), Object.assign({}, msg, { title: copy }));
  }
}
`
	out := heal(t, NewEngine(gate, nil, DefaultOptions(), nil), gate, storeContract(t), source)
	assert.Equal(t, StateResolved, out.State, out.Verdict.Findings)
	assert.Contains(t, out.Artifact, "JSON.parse(JSON.stringify(msg.title))")
}

func TestHealTypeMismatchedPortsDeclaration(t *testing.T) {
	gate := newGate(t)
	source := `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }

  ports() {
    return {
      inputs: { in_input: "record{id:string}", in_txn: "TxnSignal" },
      outputs: {}
    };
  }

  process(port, msg) {
    if (port === "in_txn") {
      return this.ack(msg);
    }
    return this.persist(this.dedupeKey(msg), msg);
  }
}
`
	out := heal(t, NewEngine(gate, nil, DefaultOptions(), nil), gate, storeContract(t), source)
	assert.Equal(t, []State{StateTypeHealing, StateResolved}, states(out.Transitions))
	assert.Contains(t, out.Artifact, `"record{id:string,title:string}"`)
}

func TestHealSchemaMismatchedEmit(t *testing.T) {
	gate := newGate(t)
	c := contractFor(t, blueprint.ComponentSpec{
		Name:   "title_filter",
		Kind:   "Filter",
		Config: map[string]any{"schema": map[string]any{"id": "string", "title": "string"}, "predicate": "nonEmpty"},
	})
	source := `
class TitleFilter extends Transformer {
  constructor(config) {
    super(config);
  }

  ports() {
    return {
      inputs: { in_input: "record{id:string,title:string}" },
      outputs: { out_output: "record{id:string,title:string}" }
    };
  }

  process(port, msg) {
    return this.emit("out_output", Object.assign({}, msg, { id: 1 }));
  }
}
`
	out := heal(t, NewEngine(gate, nil, DefaultOptions(), nil), gate, c, source)
	assert.Equal(t, []State{StateTypeHealing, StateResolved}, states(out.Transitions), out.Verdict.Findings)
	assert.Contains(t, out.Artifact, `this.coerce("out_output", Object.assign({}, msg, { id: 1 }))`)
}

func TestHealStructuralWrongBaseAndMissingEntryPoint(t *testing.T) {
	gate := newGate(t)
	source := `
class TodoStore extends Component {
  constructor(config) {
    super(config);
  }
` + storePorts + `}
`
	out := heal(t, NewEngine(gate, nil, DefaultOptions(), nil), gate, storeContract(t), source)
	assert.Equal(t, []State{StateStructuralHealing, StateResolved}, states(out.Transitions), out.Verdict.Findings)
	assert.Contains(t, out.Artifact, "class TodoStore extends Sink")
	assert.Contains(t, out.Artifact, "process(port, msg)")
}

func TestHealRollbackRestoresCheckpoint(t *testing.T) {
	placeholder := finding.Finding{Tier: finding.TierLogic, Severity: finding.SeverityError, Pattern: finding.PlaceholderReturn}
	initial := &validation.Verdict{Score: 0.6, Findings: finding.List{placeholder}}
	worse := &validation.Verdict{Score: 0.4, Findings: finding.List{placeholder}}
	validator := &scriptedValidator{verdicts: []*validation.Verdict{worse}}

	c := storeContract(t)
	out, err := NewEngine(validator, nil, Options{MaxPasses: 3}, nil).Heal(context.Background(), c, placeholderStore, initial)
	require.NoError(t, err)

	assert.Equal(t, StateEscalated, out.State)
	assert.Equal(t, placeholderStore, out.Artifact)
	require.Len(t, out.Checkpoints, 1)
	assert.Equal(t, digest.Artifact(placeholderStore), out.Latest().Digest)
	assert.Equal(t, initial.Findings, out.Verdict.Findings)
	assert.Equal(t, 0.6, out.Verdict.Score)

	// the rewrite is deterministic, so one rolled-back attempt ends the state
	assert.Equal(t, 1, validator.calls)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, AttemptRolledBack, out.Attempts[0].Result)
	assert.Equal(t, []State{StatePatternHealing, StateEscalated}, states(out.Transitions))
}

func TestHealSynthesizerRetriesAfterRollback(t *testing.T) {
	broken := finding.Finding{Tier: finding.TierStructural, Severity: finding.SeverityFatal, Pattern: finding.SyntaxError}
	initial := &validation.Verdict{Score: 0.3, Findings: finding.List{broken}}
	worse := &validation.Verdict{Score: 0.1, Findings: finding.List{broken}}
	validator := &scriptedValidator{verdicts: []*validation.Verdict{worse}}

	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.MatchedBy(func(r synthesizer.Request) bool { return r.Attempt == 1 })).Return("class A {}", nil).Once()
	synth.On("Synthesize", mock.Anything, mock.MatchedBy(func(r synthesizer.Request) bool { return r.Attempt == 2 })).Return("class B {}", nil).Once()

	out, err := NewEngine(validator, synth, Options{MaxPasses: 3, SynthesisAttempts: 2}, nil).
		Heal(context.Background(), storeContract(t), "class {", initial)
	require.NoError(t, err)

	assert.Equal(t, StateEscalated, out.State)
	assert.Equal(t, "class {", out.Artifact)
	assert.Equal(t, 2, out.SynthesisCalls)
	assert.Equal(t, 2, validator.calls)
	synth.AssertExpectations(t)
}

func TestHealImprovementAdvancesCheckpoint(t *testing.T) {
	placeholder := finding.Finding{Tier: finding.TierLogic, Severity: finding.SeverityError, Pattern: finding.PlaceholderReturn}
	initial := &validation.Verdict{Score: 0.6, Findings: finding.List{placeholder}}
	better := &validation.Verdict{Score: 0.75, Findings: finding.List{{Tier: finding.TierSemantic, Severity: finding.SeverityError, Pattern: finding.NoEffect}}}
	validator := &scriptedValidator{verdicts: []*validation.Verdict{better}}

	out, err := NewEngine(validator, nil, DefaultOptions(), nil).Heal(context.Background(), storeContract(t), placeholderStore, initial)
	require.NoError(t, err)

	assert.Equal(t, StateEscalated, out.State)
	require.Len(t, out.Checkpoints, 2)
	assert.Equal(t, StatePatternHealing, out.Latest().State)
	assert.Equal(t, 0.75, out.Verdict.Score)
	assert.NotEqual(t, placeholderStore, out.Artifact)
	// the placeholder tag is gone, so the state stops after one attempt
	assert.Equal(t, 1, validator.calls)
}

func TestHealEscalatesWhenSynthesizerTimesOut(t *testing.T) {
	gate := newGate(t)
	c := storeContract(t)
	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return("", synthesizer.ErrTimeout)

	var observed []Transition
	e := NewEngine(gate, synth, DefaultOptions(), nil).WithObserver(func(tr Transition) {
		observed = append(observed, tr)
	})
	out := heal(t, e, gate, c, "")

	assert.Equal(t, StateEscalated, out.State)
	assert.Equal(t, []State{StateStructuralHealing, StateSynthesizerAssisted, StateEscalated}, states(out.Transitions))
	assert.Equal(t, out.Transitions, observed)
	assert.Equal(t, 2, out.SynthesisCalls)
	synth.AssertNumberOfCalls(t, "Synthesize", 2)

	timeouts := out.Verdict.Findings.WithPattern(finding.SynthesizerTimeout)
	require.Len(t, timeouts, 1)
	assert.True(t, timeouts[0].Fatal())
	assert.False(t, out.Verdict.Passed)
	assert.Empty(t, out.Artifact)
}

func TestHealSynthesizerRepairsSyntaxError(t *testing.T) {
	gate := newGate(t)
	c := storeContract(t)
	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.MatchedBy(func(req synthesizer.Request) bool {
		return req.Attempt == 1 && req.Findings.Has(finding.SyntaxError) && req.Prior != ""
	})).Return(synthesizer.Render(c), nil).Once()

	out := heal(t, NewEngine(gate, synth, DefaultOptions(), nil), gate, c, "class TodoStore extends Sink {\n  process(port, msg) {\n    return msg +;\n  }\n}\n")

	assert.Equal(t, []State{StateSynthesizerAssisted, StateResolved}, states(out.Transitions))
	assert.True(t, out.Verdict.Passed)
	synth.AssertExpectations(t)
}

func TestHealCancelled(t *testing.T) {
	placeholder := finding.Finding{Tier: finding.TierLogic, Severity: finding.SeverityError, Pattern: finding.PlaceholderReturn}
	initial := &validation.Verdict{Score: 0.6, Findings: finding.List{placeholder}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := NewEngine(&scriptedValidator{verdicts: []*validation.Verdict{initial}}, nil, DefaultOptions(), nil).
		Heal(ctx, storeContract(t), placeholderStore, initial)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, placeholderStore, out.Artifact)
}

func TestSynthesisFinding(t *testing.T) {
	assert.Equal(t, finding.SynthesizerTimeout, SynthesisFinding("x", synthesizer.ErrTimeout).Pattern)
	f := SynthesisFinding("x", synthesizer.ErrUnavailable)
	assert.Equal(t, finding.SynthesizerFailure, f.Pattern)
	assert.Equal(t, finding.SeverityFatal, f.Severity)
}
