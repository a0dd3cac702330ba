package validation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

type planStep struct {
	Port  string `json:"port"`
	Value any    `json:"value,omitempty"`
}

type plan struct {
	Cases   []planStep `json:"cases"`
	Invalid []planStep `json:"invalid"`
	Replay  *planStep  `json:"replay,omitempty"`
}

type emission struct {
	Port  string `json:"port"`
	Value any    `json:"value"`
}

type effect struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

type stepResult struct {
	Port    string     `json:"port"`
	Error   string     `json:"error"`
	Emitted []emission `json:"emitted"`
	Effects []effect   `json:"effects"`
}

type semanticReport struct {
	Error   string       `json:"error"`
	Cases   []stepResult `json:"cases"`
	Invalid []stepResult `json:"invalid"`
	Replay  *struct {
		First  stepResult `json:"first"`
		Second stepResult `json:"second"`
		Keys   []string   `json:"keys"`
	} `json:"replay"`
}

// seed derives a per-component sample seed so verdicts are reproducible
func (g *Gate) seed(component string) uint64 {
	h := digest.Default().HashString(component)
	v, err := strconv.ParseUint(h[:16], 16, 64)
	if err != nil {
		return g.opts.Seed
	}
	return g.opts.Seed ^ v
}

func (g *Gate) plan(c artifact.Contract, probe *probeReport) plan {
	sampler := schema.NewSampler(g.seed(c.Component))
	var p plan

	if probe.has(artifact.MethodProcess) {
		for _, port := range c.Inputs {
			n := g.opts.SampleCount
			if port.Class != recipe.ClassData {
				n = 1
			}
			for _, v := range sampler.Samples(port.Schema, n) {
				p.Cases = append(p.Cases, planStep{Port: port.Accessor, Value: v})
			}
		}
		for _, port := range c.Inputs {
			if port.Class != recipe.ClassData {
				continue
			}
			if c.HasTrait(recipe.TraitValidation) {
				p.Invalid = append(p.Invalid, planStep{Port: port.Accessor, Value: sampler.Invalid(port.Schema)})
			}
			if c.HasTrait(recipe.TraitIdempotency) && p.Replay == nil {
				p.Replay = &planStep{Port: port.Accessor, Value: sampler.Samples(port.Schema, 1)[0]}
			}
		}
	} else if probe.has(artifact.MethodGenerate) {
		for i := 0; i < g.opts.SampleCount; i++ {
			p.Cases = append(p.Cases, planStep{})
		}
	}
	return p
}

// semantic runs the artifact against schema-derived samples
func (g *Gate) semantic(ctx context.Context, c artifact.Contract, source string, probe *probeReport) (*tally, error) {
	t := newTally(finding.TierSemantic)
	if probe == nil || !probe.Constructed {
		t.skipped(c.Component, "artifact could not be loaded and constructed")
		return t, nil
	}

	p := g.plan(c, probe)
	if len(p.Cases) == 0 {
		t.skipped(c.Component, "no entry point to exercise")
		return t, nil
	}

	globals, err := g.globals(c, map[string]any{"__bpPlanJSON": p})
	if err != nil {
		return nil, err
	}
	out, failure, err := g.execute(ctx, c, source+"\n"+harness(semanticHarness, c), globals, finding.TierSemantic)
	if err != nil {
		return nil, err
	}
	if failure != nil {
		t.fail(*failure)
		return t, nil
	}

	var report semanticReport
	if err := sonic.UnmarshalString(out, &report); err != nil {
		return nil, fmt.Errorf("decode semantic report: %w", err)
	}
	if report.Error != "" {
		t.skipped(c.Component, report.Error)
		return t, nil
	}

	persisted := false
	for _, res := range report.Cases {
		t.check(g.judge(c, res)...)
		for _, e := range res.Effects {
			if e.Kind == "persist" {
				persisted = true
			}
		}
	}

	if c.HasTrait(recipe.TraitPersistence) {
		if persisted {
			t.pass()
		} else {
			t.fail(finding.Finding{
				Severity:  finding.SeverityError,
				Pattern:   finding.NoEffect,
				Message:   "no input was persisted",
				Component: c.Component,
				Symbol:    recipe.TraitPersistence,
			})
		}
	}

	for _, res := range report.Invalid {
		if res.Error == "" {
			t.pass()
			continue
		}
		t.fail(finding.Finding{
			Severity:  finding.SeverityError,
			Pattern:   finding.RuntimeException,
			Message:   "invalid input must be rejected without raising: " + res.Error,
			Component: c.Component,
			Port:      res.Port,
			Symbol:    recipe.TraitValidation,
		})
	}

	if r := report.Replay; r != nil {
		switch {
		case r.First.Error != "" || r.Second.Error != "":
			t.fail(finding.Finding{
				Severity:  finding.SeverityError,
				Pattern:   finding.NonIdempotent,
				Message:   "replaying a message raised: " + r.First.Error + r.Second.Error,
				Component: c.Component,
				Port:      r.First.Port,
			})
		case len(r.Keys) > 1:
			t.fail(finding.Finding{
				Severity:  finding.SeverityError,
				Pattern:   finding.NonIdempotent,
				Message:   fmt.Sprintf("replaying one message stored %d distinct keys", len(r.Keys)),
				Component: c.Component,
				Port:      r.First.Port,
			})
		default:
			t.pass()
		}
	}
	return t, nil
}

// judge returns the problems with one executed sample
func (g *Gate) judge(c artifact.Contract, res stepResult) []finding.Finding {
	if res.Error != "" {
		return []finding.Finding{{
			Severity:  finding.SeverityError,
			Pattern:   finding.RuntimeException,
			Message:   res.Error,
			Component: c.Component,
			Port:      res.Port,
		}}
	}

	var out []finding.Finding
	for _, e := range res.Emitted {
		port, ok := c.Port(e.Port)
		if !ok || port.Direction != recipe.Output {
			out = append(out, finding.Finding{
				Severity:  finding.SeverityError,
				Pattern:   finding.SchemaMismatch,
				Message:   fmt.Sprintf("emitted on undeclared output %q", e.Port),
				Component: c.Component,
				Port:      e.Port,
			})
			continue
		}
		if err := schema.Conforms(port.Schema, e.Value); err != nil {
			out = append(out, finding.Finding{
				Severity:  finding.SeverityError,
				Pattern:   finding.SchemaMismatch,
				Message:   fmt.Sprintf("output does not match %s: %v", port.SchemaID, err),
				Component: c.Component,
				Port:      e.Port,
			})
		}
	}

	dataStep := res.Port == ""
	if port, ok := c.Port(res.Port); ok && port.Class == recipe.ClassData {
		dataStep = true
	}
	if dataStep && len(res.Emitted) == 0 && len(res.Effects) == 0 {
		target := res.Port
		if target == "" {
			target = artifact.MethodGenerate
		}
		out = append(out, finding.Finding{
			Severity:  finding.SeverityError,
			Pattern:   finding.NoEffect,
			Message:   "processing produced no output and no effect",
			Component: c.Component,
			Port:      target,
		})
	}
	return out
}
