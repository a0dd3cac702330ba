package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
)

// Hit is one location matched by a logic rule
type Hit struct {
	Span      artifact.Span
	Line      int
	Symbol    string
	Direction recipe.Direction // set for port accessor hits
}

// Rule is a static pattern check on artifact text
type Rule struct {
	Pattern  string
	Severity finding.Severity
	Message  string
	locate   func(s *artifact.Source, c artifact.Contract) []Hit
}

// Rules is the component-logic rule table, in evaluation order
var Rules = []Rule{
	{finding.ForbiddenConstruct, finding.SeverityFatal, "forbidden construct", locateForbidden},
	{finding.MissingSuperCall, finding.SeverityError, "constructor does not call super(config)", locateMissingSuper},
	{finding.WrongPortPrefix, finding.SeverityError, "port accessor is not in its in_/out_ prefixed form", locateWrongPrefix},
	{finding.PlaceholderReturn, finding.SeverityError, "entry point returns a placeholder value", locatePlaceholder},
	{finding.UnimplementedBody, finding.SeverityError, "entry point is not implemented", locateUnimplemented},
	{finding.HardcodedLiteral, finding.SeverityError, "constant literal emitted in place of input-derived data", locateHardcoded},
	{finding.DebugOutput, finding.SeverityWarning, "debug console output", locateDebug},
}

// Locate runs the rule registered for pattern
func Locate(pattern string, s *artifact.Source, c artifact.Contract) []Hit {
	for _, r := range Rules {
		if r.Pattern == pattern {
			return r.locate(s, c)
		}
	}
	return nil
}

func (g *Gate) logic(s *artifact.Source, c artifact.Contract) *tally {
	t := newTally(finding.TierLogic)
	for _, r := range Rules {
		hits := r.locate(s, c)
		fs := make([]finding.Finding, 0, len(hits))
		for _, h := range hits {
			msg := r.Message
			if h.Symbol != "" {
				msg = fmt.Sprintf("%s: %s", msg, h.Symbol)
			}
			fs = append(fs, finding.Finding{
				Severity:  r.Severity,
				Pattern:   r.Pattern,
				Message:   msg,
				Component: c.Component,
				Symbol:    h.Symbol,
				Line:      h.Line,
			})
		}
		t.check(fs...)
	}
	return t
}

func hitsFor(s *artifact.Source, re *regexp.Regexp, within artifact.Span, group int) []Hit {
	var out []Hit
	for _, m := range s.CodeMatches(re, within) {
		span := artifact.Span{Start: m[0], End: m[1]}
		if group > 0 && m[2*group] >= 0 {
			span = artifact.Span{Start: m[2*group], End: m[2*group+1]}
		}
		symbol := strings.TrimSpace(s.Text[span.Start:span.End])
		out = append(out, Hit{Span: span, Line: s.Line(m[0]), Symbol: symbol})
	}
	return out
}

func target(s *artifact.Source, c artifact.Contract) (artifact.ClassDecl, bool) {
	return s.Target(c.ClassName)
}

// entryBodies returns the bodies of process and generate in the target class
func entryBodies(s *artifact.Source, c artifact.Contract) []artifact.MethodDecl {
	class, ok := target(s, c)
	if !ok {
		return nil
	}
	var out []artifact.MethodDecl
	for _, m := range s.Methods(class) {
		if m.Name == artifact.MethodProcess || m.Name == artifact.MethodGenerate {
			out = append(out, m)
		}
	}
	return out
}

var forbiddenPattern = regexp.MustCompile(`\beval\s*\(|\bnew\s+Function\s*\(|\bFunction\s*\(|\brequire\s*\(|\bimport\s*\(|\bprocess\s*\.|__proto__|\bconstructor\s*\.\s*constructor\b`)

func locateForbidden(s *artifact.Source, _ artifact.Contract) []Hit {
	hits := hitsFor(s, forbiddenPattern, s.All(), 0)
	for i := range hits {
		hits[i].Symbol = strings.TrimRight(strings.Join(strings.Fields(hits[i].Symbol), " "), "( .")
	}
	return hits
}

var superPattern = regexp.MustCompile(`\bsuper\s*\(`)

func locateMissingSuper(s *artifact.Source, c artifact.Contract) []Hit {
	class, ok := target(s, c)
	if !ok || class.Base == "" {
		return nil
	}
	ctor, ok := s.Method(class, artifact.MethodConstructor)
	if !ok || len(s.CodeMatches(superPattern, ctor.Body)) > 0 {
		return nil
	}
	return []Hit{{Span: ctor.Header, Line: s.Line(ctor.Header.Start), Symbol: artifact.MethodConstructor}}
}

var (
	emitLiteralPattern = regexp.MustCompile(`\bthis\.emit\(\s*["']([\w$]+)["']`)
	portComparePattern = regexp.MustCompile(`\bport\s*[!=]==?\s*["']([\w$]+)["']`)
	groupPattern       = regexp.MustCompile(`\b(inputs|outputs)\s*:\s*\{`)
	keyPattern         = regexp.MustCompile(`(["']?)([A-Za-z_$][\w$]*)["']?\s*:`)
)

func locateWrongPrefix(s *artifact.Source, c artifact.Contract) []Hit {
	var out []Hit
	add := func(start, end int, dir recipe.Direction) {
		out = append(out, Hit{Span: artifact.Span{Start: start, End: end}, Line: s.Line(start), Symbol: s.Text[start:end], Direction: dir})
	}

	for _, m := range s.CodeMatches(emitLiteralPattern, s.All()) {
		if !strings.HasPrefix(s.Text[m[2]:m[3]], "out_") {
			add(m[2], m[3], recipe.Output)
		}
	}
	for _, m := range s.CodeMatches(portComparePattern, s.All()) {
		if !strings.HasPrefix(s.Text[m[2]:m[3]], "in_") {
			add(m[2], m[3], recipe.Input)
		}
	}

	class, ok := target(s, c)
	if !ok {
		return out
	}
	ports, ok := s.Method(class, artifact.MethodPorts)
	if !ok {
		return out
	}
	for _, g := range s.CodeMatches(groupPattern, ports.Body) {
		dir, prefix := recipe.Input, "in_"
		if s.Text[g[2]:g[3]] == "outputs" {
			dir, prefix = recipe.Output, "out_"
		}
		open := g[1] - 1
		closing := s.MatchBrace(open)
		if closing < 0 {
			continue
		}
		level := s.Depth(open) + 1
		for _, k := range keyPattern.FindAllStringSubmatchIndex(s.Text[open+1:closing], -1) {
			start, end := open+1+k[4], open+1+k[5]
			if s.Depth(open+1+k[0]) != level {
				continue
			}
			// quoted keys start inside a string, so test the opening quote or the bare key
			if !s.IsCode(open+1+k[0]) && k[2] == k[3] {
				continue
			}
			if !strings.HasPrefix(s.Text[start:end], prefix) {
				add(start, end, dir)
			}
		}
	}
	return out
}

var placeholderPattern = regexp.MustCompile(`\breturn\s*(null|undefined|\{\s*\}|\[\s*\])\s*;`)

func locatePlaceholder(s *artifact.Source, c artifact.Contract) []Hit {
	var out []Hit
	for _, m := range entryBodies(s, c) {
		out = append(out, hitsFor(s, placeholderPattern, m.Body, 0)...)
	}
	return out
}

var unimplementedPattern = regexp.MustCompile("(?i)\\bthrow\\s+new\\s+Error\\(\\s*[\"'`][^\"'`]*(not\\s+implemented|unimplemented|todo)[^\"'`]*[\"'`]\\s*\\)\\s*;?")

func locateUnimplemented(s *artifact.Source, c artifact.Contract) []Hit {
	out := hitsFor(s, unimplementedPattern, s.All(), 0)
	for _, m := range entryBodies(s, c) {
		if isBlank(s, m.Body) {
			out = append(out, Hit{Span: m.Body, Line: s.Line(m.Header.Start), Symbol: m.Name})
		}
	}
	return out
}

func isBlank(s *artifact.Source, span artifact.Span) bool {
	for i := span.Start; i < span.End; i++ {
		if s.IsCode(i) && !strings.ContainsRune(" \t\r\n", rune(s.Text[i])) {
			return false
		}
	}
	return true
}

const literal = `"[^"\n]*"|'[^'\n]*'|-?\d+(?:\.\d+)?|true|false`

var hardcodedPattern = regexp.MustCompile(`\bthis\.emit\(\s*["'][\w$]+["']\s*,\s*(` + literal + `|\{(?:\s*["']?[\w$]+["']?\s*:\s*(?:` + literal + `|null)\s*,?)*\s*\})\s*\)`)

func locateHardcoded(s *artifact.Source, c artifact.Contract) []Hit {
	if len(c.Inputs) == 0 {
		return nil
	}
	var out []Hit
	for _, m := range entryBodies(s, c) {
		if m.Name != artifact.MethodProcess {
			continue
		}
		out = append(out, hitsFor(s, hardcodedPattern, m.Body, 1)...)
	}
	return out
}

var debugPattern = regexp.MustCompile(`\bconsole\.(log|debug|info)\s*\(`)

func locateDebug(s *artifact.Source, _ artifact.Contract) []Hit {
	return hitsFor(s, debugPattern, s.All(), 1)
}
