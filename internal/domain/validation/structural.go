package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
)

// probeReport is what the probe harness learns about a loaded artifact
type probeReport struct {
	Exists      bool     `json:"exists"`
	Base        string   `json:"base"`
	ExtendsBase bool     `json:"extendsBase"`
	Constructed bool     `json:"constructed"`
	Error       string   `json:"error"`
	Methods     []string `json:"methods"`
	Ports       any      `json:"ports"`
	PortsError  string   `json:"portsError"`
}

func (p *probeReport) has(method string) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// declared returns the ports() result split by direction, or false when it is not usable
func (p *probeReport) declared() (inputs, outputs map[string]string, ok bool) {
	if p == nil {
		return nil, nil, false
	}
	root, isMap := p.Ports.(map[string]any)
	if !isMap {
		return nil, nil, false
	}
	group := func(key string) map[string]string {
		out := map[string]string{}
		m, _ := root[key].(map[string]any)
		for k, v := range m {
			if s, isString := v.(string); isString {
				out[k] = s
			} else {
				out[k] = fmt.Sprint(v)
			}
		}
		return out
	}
	return group("inputs"), group("outputs"), true
}

// structural checks that the artifact compiles, defines the class and exposes its entry points.
// The returned probe is nil when the artifact could not be loaded.
func (g *Gate) structural(ctx context.Context, c artifact.Contract, source string) (*tally, *probeReport, error) {
	t := newTally(finding.TierStructural)
	entries := c.EntryPoints()
	// compile, class, base, construction, then one check per entry point
	remaining := 4 + len(entries)
	skipRest := func() {
		for ; remaining > 0; remaining-- {
			t.skip()
		}
	}
	done := func() { remaining-- }

	if err := sandbox.Check(c.Component+".js", source); err != nil {
		var scriptErr *sandbox.ScriptError
		errors.As(err, &scriptErr)
		f := finding.Finding{
			Severity:  finding.SeverityFatal,
			Pattern:   finding.SyntaxError,
			Message:   err.Error(),
			Component: c.Component,
		}
		if scriptErr != nil {
			f.Line = scriptErr.Line
		}
		t.fail(f)
		done()
		skipRest()
		return t, nil, nil
	}
	t.pass()
	done()

	globals, err := g.globals(c, nil)
	if err != nil {
		return nil, nil, err
	}
	out, failure, err := g.execute(ctx, c, source+"\n"+harness(probeHarness, c), globals, finding.TierStructural)
	if err != nil {
		return nil, nil, err
	}
	if failure != nil {
		t.fail(*failure)
		done()
		skipRest()
		return t, nil, nil
	}

	var probe probeReport
	if err := sonic.UnmarshalString(out, &probe); err != nil {
		return nil, nil, fmt.Errorf("decode probe report: %w", err)
	}

	if !probe.Exists {
		t.fail(finding.Finding{
			Severity:  finding.SeverityFatal,
			Pattern:   finding.MissingClass,
			Message:   fmt.Sprintf("class %s is not defined", c.ClassName),
			Component: c.Component,
			Symbol:    c.ClassName,
		})
		done()
		skipRest()
		return t, &probe, nil
	}
	t.pass()
	done()

	if probe.ExtendsBase && probe.Base == string(c.Base) {
		t.pass()
	} else {
		t.fail(finding.Finding{
			Severity:  finding.SeverityFatal,
			Pattern:   finding.WrongBase,
			Message:   fmt.Sprintf("class %s must extend %s, extends %q", c.ClassName, c.Base, probe.Base),
			Component: c.Component,
			Symbol:    probe.Base,
		})
	}
	done()

	if !probe.Constructed {
		t.fail(finding.Finding{
			Severity:  finding.SeverityFatal,
			Pattern:   finding.ConstructionFailed,
			Message:   fmt.Sprintf("new %s(config) failed: %s", c.ClassName, probe.Error),
			Component: c.Component,
			Symbol:    artifact.MethodConstructor,
		})
		done()
		skipRest()
		return t, &probe, nil
	}
	t.pass()
	done()

	for _, method := range entries {
		switch {
		case method == artifact.MethodPorts && !probe.has(method):
			t.fail(finding.Finding{
				Severity:  finding.SeverityFatal,
				Pattern:   finding.MissingPortsDeclaration,
				Message:   "ports() is not defined",
				Component: c.Component,
				Symbol:    method,
			})
		case method == artifact.MethodPorts && probe.PortsError != "":
			t.fail(finding.Finding{
				Severity:  finding.SeverityFatal,
				Pattern:   finding.MissingPortsDeclaration,
				Message:   "ports() raised: " + probe.PortsError,
				Component: c.Component,
				Symbol:    method,
			})
		case !probe.has(method):
			t.fail(finding.Finding{
				Severity:  finding.SeverityFatal,
				Pattern:   finding.MissingEntryPoint,
				Message:   fmt.Sprintf("%s() is not defined", method),
				Component: c.Component,
				Symbol:    method,
			})
		default:
			t.pass()
		}
		done()
	}
	return t, &probe, nil
}

// integration compares the declared ports with the graph expectation; any
// mismatch blocks the verdict because the graph cannot bind such a component
func (g *Gate) integration(c artifact.Contract, probe *probeReport) *tally {
	t := newTally(finding.TierIntegration)
	inputs, outputs, ok := probe.declared()
	if !ok {
		t.skipped(c.Component, "ports() declaration unavailable")
		return t
	}

	check := func(expected []artifact.PortSpec, declared map[string]string) {
		known := make(map[string]bool, len(expected))
		for _, p := range expected {
			known[p.Accessor] = true
			id, present := declared[p.Accessor]
			switch {
			case !present:
				t.fail(finding.Finding{
					Severity:  finding.SeverityFatal,
					Pattern:   finding.PortMissing,
					Message:   fmt.Sprintf("%s port %s is not declared", p.Direction, p.Accessor),
					Component: c.Component,
					Port:      p.Accessor,
				})
			case id != p.SchemaID:
				t.fail(finding.Finding{
					Severity:  finding.SeverityFatal,
					Pattern:   finding.SchemaIdentifierMismatch,
					Message:   fmt.Sprintf("port %s declares schema %q, expected %q", p.Accessor, id, p.SchemaID),
					Component: c.Component,
					Port:      p.Accessor,
					Symbol:    id,
				})
			default:
				t.pass()
			}
		}

		extra := make([]string, 0)
		for name := range declared {
			if !known[name] {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			t.fail(finding.Finding{
				Severity:  finding.SeverityFatal,
				Pattern:   finding.PortUnexpected,
				Message:   fmt.Sprintf("port %s is not part of the component contract", name),
				Component: c.Component,
				Port:      name,
			})
		}
	}
	check(c.Inputs, inputs)
	check(c.Outputs, outputs)
	return t
}
