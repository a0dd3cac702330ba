package validation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
)

const goodStore = `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }

  ports() {
    return {
      inputs: { in_input: "record{id:string,title:string}", in_txn: "TxnSignal" },
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

const placeholderStore = `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }

  ports() {
    return {
      inputs: { in_input: "record{id:string,title:string}", in_txn: "TxnSignal" },
      outputs: {}
    };
  }

  process(port, msg) {
    return null;
  }
}
`

func newGate(t *testing.T, timeout time.Duration) *Gate {
	t.Helper()
	cfg := sandbox.DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	pool, err := sandbox.NewPool(cfg, 2)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return NewGate(pool, DefaultOptions(), nil)
}

func expand(t *testing.T, spec blueprint.ComponentSpec) artifact.Contract {
	t.Helper()
	table, err := recipe.DefaultTable()
	require.NoError(t, err)
	ec, err := recipe.NewExpander(table).Expand(spec)
	require.NoError(t, err)
	return artifact.ContractFor(ec, nil)
}

func storeContract(t *testing.T) artifact.Contract {
	return expand(t, blueprint.ComponentSpec{
		Name:   "todo_store",
		Kind:   "Store",
		Config: map[string]any{"schema": map[string]any{"id": "string", "title": "string"}},
	})
}

func TestValidatePassingArtifact(t *testing.T) {
	gate := newGate(t, 0)
	v, err := gate.Validate(context.Background(), storeContract(t), goodStore)
	require.NoError(t, err)

	assert.True(t, v.Passed, v.Findings)
	assert.Equal(t, 1.0, v.Score)
	assert.Empty(t, v.Findings)
	require.Len(t, v.Tiers, 4)
	for _, tier := range v.Tiers {
		assert.Equal(t, tier.Total, tier.Passed, tier.Tier)
		assert.Positive(t, tier.Total, tier.Tier)
	}
}

func TestValidatePlaceholderReturn(t *testing.T) {
	gate := newGate(t, 0)
	v, err := gate.Validate(context.Background(), storeContract(t), placeholderStore)
	require.NoError(t, err)

	assert.False(t, v.Passed)
	assert.Less(t, v.Score, gate.Threshold())
	assert.Greater(t, v.Score, 0.5)
	assert.False(t, v.Findings.HasFatal())

	placeholders := v.Findings.WithPattern(finding.PlaceholderReturn)
	require.Len(t, placeholders, 1)
	assert.Equal(t, finding.TierLogic, placeholders[0].Tier)
	assert.Equal(t, 15, placeholders[0].Line)

	assert.True(t, v.Findings.Has(finding.NoEffect))
	assert.Equal(t, v.Tier(finding.TierStructural).Total, v.Tier(finding.TierStructural).Passed)
}

func TestValidateForbiddenConstructForcesFail(t *testing.T) {
	gate := newGate(t, 0)
	v, err := gate.Validate(context.Background(), storeContract(t), goodStore+"\nvar parsed = eval('1 + 1');\n")
	require.NoError(t, err)

	assert.False(t, v.Passed)
	assert.GreaterOrEqual(t, v.Score, gate.Threshold())
	forbidden := v.Findings.WithPattern(finding.ForbiddenConstruct)
	require.Len(t, forbidden, 1)
	assert.Equal(t, finding.SeverityFatal, forbidden[0].Severity)
	assert.Equal(t, "eval", forbidden[0].Symbol)
}

func TestValidateSyntaxError(t *testing.T) {
	gate := newGate(t, 0)
	v, err := gate.Validate(context.Background(), storeContract(t), "class TodoStore extends Sink {\n  process(port, msg) {\n    return msg +;\n  }\n}\n")
	require.NoError(t, err)

	assert.False(t, v.Passed)
	syntax := v.Findings.WithPattern(finding.SyntaxError)
	require.Len(t, syntax, 1)
	assert.Equal(t, 3, syntax[0].Line)
	assert.Zero(t, v.Tier(finding.TierStructural).Passed)
	assert.Equal(t, 6, v.Tier(finding.TierStructural).Total)

	skipped := v.Findings.WithPattern(finding.TierSkipped)
	assert.Len(t, skipped, 2)
	assert.Zero(t, v.Tier(finding.TierIntegration).Passed)
	assert.Zero(t, v.Tier(finding.TierSemantic).Passed)
}

func TestValidateStructuralFindings(t *testing.T) {
	gate := newGate(t, 0)
	contract := storeContract(t)

	tests := []struct {
		name    string
		source  string
		pattern string
		symbol  string
	}{
		{"empty", "", finding.MissingClass, "TodoStore"},
		{"renamed", "class Store extends Sink {}", finding.MissingClass, "TodoStore"},
		{"wrong base", "class TodoStore extends Transformer { ports() { return {inputs: {}, outputs: {}}; } process(p, m) {} }", finding.WrongBase, "Transformer"},
		{"no super", "class TodoStore extends Sink { constructor(config) { this.x = 1; } }", finding.ConstructionFailed, "constructor"},
		{"no process", "class TodoStore extends Sink { ports() { return {inputs: {}, outputs: {}}; } }", finding.MissingEntryPoint, "process"},
		{"no ports", "class TodoStore extends Sink { process(p, m) { return this.ack(m); } }", finding.MissingPortsDeclaration, "ports"},
		{"throws on load", "throw new Error('boom');", finding.ConstructionFailed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := gate.Validate(context.Background(), contract, tt.source)
			require.NoError(t, err)
			assert.False(t, v.Passed)

			matches := v.Findings.WithPattern(tt.pattern)
			require.NotEmpty(t, matches, v.Findings)
			assert.Equal(t, finding.SeverityFatal, matches[0].Severity)
			assert.Equal(t, finding.TierStructural, matches[0].Tier)
			assert.Equal(t, tt.symbol, matches[0].Symbol)
		})
	}
}

func TestValidateIntegrationMismatch(t *testing.T) {
	gate := newGate(t, 0)
	source := `
class TodoStore extends Sink {
  constructor(config) {
    super(config);
  }
  ports() {
    return { inputs: { input: "record{id:string,title:string}", in_txn: "Txn" }, outputs: {} };
  }
  process(port, msg) {
    return this.persist(this.dedupeKey(msg), msg);
  }
}
`
	v, err := gate.Validate(context.Background(), storeContract(t), source)
	require.NoError(t, err)

	assert.Equal(t, []string{"in_input"}, ports(v.Findings.WithPattern(finding.PortMissing)))
	assert.Equal(t, []string{"input"}, ports(v.Findings.WithPattern(finding.PortUnexpected)))
	mismatch := v.Findings.WithPattern(finding.SchemaIdentifierMismatch)
	require.Len(t, mismatch, 1)
	assert.Equal(t, "Txn", mismatch[0].Symbol)

	prefix := v.Findings.WithPattern(finding.WrongPortPrefix)
	require.Len(t, prefix, 1)
	assert.Equal(t, "input", prefix[0].Symbol)
	assert.Equal(t, finding.TierLogic, prefix[0].Tier)
}

func TestValidateSchemaIdentifierMismatchBlocks(t *testing.T) {
	gate := newGate(t, 0)
	source := strings.Replace(goodStore, `"record{id:string,title:string}"`, `"record{id:string}"`, 1)

	v, err := gate.Validate(context.Background(), storeContract(t), source)
	require.NoError(t, err)

	mismatch := v.Findings.WithPattern(finding.SchemaIdentifierMismatch)
	require.Len(t, mismatch, 1)
	assert.True(t, mismatch[0].Fatal())
	assert.Equal(t, "in_input", mismatch[0].Port)
	// the other tiers are clean, so only the blocking mismatch fails the verdict
	assert.GreaterOrEqual(t, v.Score, DefaultOptions().Threshold)
	assert.False(t, v.Passed)
}

func ports(fs finding.List) []string {
	var out []string
	for _, f := range fs {
		out = append(out, f.Port)
	}
	return out
}

func TestValidateTimeoutIsFatal(t *testing.T) {
	gate := newGate(t, 100*time.Millisecond)
	source := `
class TodoStore extends Sink {
  constructor(config) { super(config); }
  ports() { return { inputs: { in_input: "record{id:string,title:string}", in_txn: "TxnSignal" }, outputs: {} }; }
  process(port, msg) { while (true) {} }
}
`
	v, err := gate.Validate(context.Background(), storeContract(t), source)
	require.NoError(t, err)

	assert.False(t, v.Passed)
	timeouts := v.Findings.WithPattern(finding.ExecutionTimeout)
	require.Len(t, timeouts, 1)
	assert.Equal(t, finding.TierSemantic, timeouts[0].Tier)
	assert.True(t, timeouts[0].Fatal())
}

func TestValidateTransformerOutputSchema(t *testing.T) {
	gate := newGate(t, 0)
	contract := expand(t, blueprint.ComponentSpec{
		Name:   "title_filter",
		Kind:   "Filter",
		Config: map[string]any{"schema": map[string]any{"id": "string", "title": "string"}, "predicate": "hasTitle"},
	})
	require.Equal(t, []string{"in_input", "out_output"}, contract.Accessors())

	wrong := artifact.Skeleton(contract)
	wrong = wrong[:len(wrong)-2] + "\n  process(port, msg) {\n    this.emit(\"out_output\", {id: 1});\n  }\n}\n"
	v, err := gate.Validate(context.Background(), contract, wrong)
	require.NoError(t, err)
	assert.True(t, v.Findings.Has(finding.SchemaMismatch), v.Findings)

	v, err = gate.Validate(context.Background(), contract, artifact.Skeleton(contract))
	require.NoError(t, err)
	assert.True(t, v.Passed, v.Findings)
}

func TestValidateSourceGenerates(t *testing.T) {
	gate := newGate(t, 0)
	contract := expand(t, blueprint.ComponentSpec{
		Name:   "events",
		Kind:   "EventSource",
		Config: map[string]any{"topic": "todos", "schema": map[string]any{"id": "string"}},
	})
	assert.Contains(t, contract.EntryPoints(), artifact.MethodGenerate)

	v, err := gate.Validate(context.Background(), contract, artifact.Skeleton(contract))
	require.NoError(t, err)
	assert.True(t, v.Passed, v.Findings)
}

func TestValidateIsDeterministic(t *testing.T) {
	gate := newGate(t, 0)
	first, err := gate.Validate(context.Background(), storeContract(t), placeholderStore)
	require.NoError(t, err)
	second, err := gate.Validate(context.Background(), storeContract(t), placeholderStore)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("verdicts differ (-first +second):\n%s", diff)
	}
}

func TestValidateCancelled(t *testing.T) {
	gate := newGate(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gate.Validate(ctx, storeContract(t), goodStore)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScore(t *testing.T) {
	tiers := []TierResult{
		{Tier: finding.TierStructural, Passed: 2, Total: 2},
		{Tier: finding.TierLogic, Passed: 1, Total: 2},
		{Tier: finding.TierIntegration},
		{Tier: finding.TierSemantic, Passed: 0, Total: 3},
	}
	assert.InDelta(t, 0.30+0.10+0.20, Score(tiers), 1e-9)
}
