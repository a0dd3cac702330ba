package validation

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
)

//go:embed probe.js
var probeHarness string

//go:embed semantic.js
var semanticHarness string

const classPlaceholder = "__CLASS__"

// Options tunes the gate
type Options struct {
	Threshold   float64 // minimum score for a passing verdict
	SampleCount int     // samples per data input port
	Seed        uint64  // base seed for sample generation
}

// DefaultOptions returns the default gate options
func DefaultOptions() Options {
	return Options{Threshold: 0.80, SampleCount: 6, Seed: 1}
}

// Gate validates artifacts against their contracts
type Gate struct {
	exec   sandbox.Executor
	opts   Options
	logger *zap.Logger
}

// NewGate creates a gate running artifacts on exec
func NewGate(exec sandbox.Executor, opts Options, logger *zap.Logger) *Gate {
	if opts.SampleCount <= 0 {
		opts.SampleCount = DefaultOptions().SampleCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{exec: exec, opts: opts, logger: logger}
}

// Threshold returns the passing score
func (g *Gate) Threshold() float64 {
	return g.opts.Threshold
}

// Validate runs every tier against source. The error is non-nil only when the
// context is done or the sandbox is unavailable; artifact problems are findings.
func (g *Gate) Validate(ctx context.Context, c artifact.Contract, source string) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	src := artifact.Scan(source)

	structural, probe, err := g.structural(ctx, c, source)
	if err != nil {
		return nil, err
	}
	logic := g.logic(src, c)
	integration := g.integration(c, probe)
	semantic, err := g.semantic(ctx, c, source, probe)
	if err != nil {
		return nil, err
	}

	tallies := []*tally{structural, logic, integration, semantic}
	v := &Verdict{}
	for _, t := range tallies {
		v.Tiers = append(v.Tiers, t.result())
		v.Findings = append(v.Findings, t.findings...)
	}
	v.Findings = v.Findings.Dedupe().Sorted()
	v.Score = Score(v.Tiers)
	v.Passed = v.Score >= g.opts.Threshold && !v.Findings.HasFatal()

	g.logger.Debug("Artifact validated",
		zap.String("component", c.Component),
		zap.Bool("passed", v.Passed),
		zap.Float64("score", v.Score),
		zap.Int("findings", len(v.Findings)),
		zap.Duration("duration", time.Since(start)))
	return v, nil
}

// execute runs a harness script. A nil error with a non-nil finding means the
// artifact failed in a way the verdict should report.
func (g *Gate) execute(ctx context.Context, c artifact.Contract, script string, globals map[string]string, tier finding.Tier) (string, *finding.Finding, error) {
	result, err := g.exec.Execute(ctx, script, globals)
	if err == nil {
		out, _ := result.Value.(string)
		return out, nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", nil, ctxErr
	}

	var scriptErr *sandbox.ScriptError
	switch {
	case errors.Is(err, sandbox.ErrExecutionTimeout):
		return "", &finding.Finding{
			Tier:      tier,
			Severity:  finding.SeverityFatal,
			Pattern:   finding.ExecutionTimeout,
			Message:   "execution exceeded the sandbox time budget",
			Component: c.Component,
		}, nil
	case errors.As(err, &scriptErr):
		pattern := finding.ConstructionFailed
		if tier == finding.TierSemantic {
			pattern = finding.RuntimeException
		}
		return "", &finding.Finding{
			Tier:      tier,
			Severity:  finding.SeverityFatal,
			Pattern:   pattern,
			Message:   "artifact raised while loading: " + scriptErr.Message,
			Component: c.Component,
			Line:      scriptErr.Line,
		}, nil
	default:
		return "", nil, fmt.Errorf("sandbox: %w", err)
	}
}

func (g *Gate) globals(c artifact.Contract, extra map[string]any) (map[string]string, error) {
	values := map[string]any{
		"__bpContractJSON": c.Harness(),
		"__bpConfigJSON":   c.Config,
	}
	for k, v := range extra {
		values[k] = v
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		encoded, err := sonic.ConfigStd.MarshalToString(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = encoded
	}
	return out, nil
}

func harness(template string, c artifact.Contract) string {
	return strings.ReplaceAll(template, classPlaceholder, c.ClassName)
}
