package finding

import (
	"fmt"
	"sort"
)

// Tier identifies the validation tier that produced a finding
type Tier string

const (
	TierStructural  Tier = "structural"
	TierLogic       Tier = "logic"
	TierIntegration Tier = "integration"
	TierSemantic    Tier = "semantic"
)

// Tiers lists the tiers in evaluation order
var Tiers = []Tier{TierStructural, TierLogic, TierIntegration, TierSemantic}

// Severity grades a finding
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

func (s Severity) rank() int {
	switch s {
	case SeverityFatal:
		return 2
	case SeverityError:
		return 1
	default:
		return 0
	}
}

// Pattern tags shared by validators and healers
const (
	SyntaxError              = "syntax_error"
	MissingClass             = "missing_class"
	WrongBase                = "wrong_base"
	ConstructionFailed       = "construction_failed"
	MissingEntryPoint        = "missing_entry_point"
	MissingPortsDeclaration  = "missing_ports_declaration"
	ExecutionTimeout         = "execution_timeout"
	PlaceholderReturn        = "placeholder_return"
	UnimplementedBody        = "unimplemented_body"
	WrongPortPrefix          = "wrong_port_prefix"
	MissingSuperCall         = "missing_super_call"
	HardcodedLiteral         = "hardcoded_literal"
	ForbiddenConstruct       = "forbidden_construct"
	DebugOutput              = "debug_output"
	PortMissing              = "port_missing"
	PortUnexpected           = "port_unexpected"
	SchemaIdentifierMismatch = "schema_identifier_mismatch"
	RuntimeException         = "runtime_exception"
	NoEffect                 = "no_effect"
	SchemaMismatch           = "schema_mismatch"
	NonIdempotent            = "non_idempotent"
	SynthesizerTimeout       = "synthesizer_timeout"
	SynthesizerFailure       = "synthesizer_failure"
	TierSkipped              = "tier_skipped"
)

// Finding is a single diagnostic produced while validating an artifact
type Finding struct {
	Tier      Tier     `json:"tier"`
	Severity  Severity `json:"severity"`
	Pattern   string   `json:"pattern"`
	Message   string   `json:"message"`
	Component string   `json:"component,omitempty"`
	Port      string   `json:"port,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	Line      int      `json:"line,omitempty"`
}

// String implements fmt.Stringer
func (f Finding) String() string {
	loc := f.Component
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, f.Line)
	}
	if f.Port != "" {
		loc += " port " + f.Port
	}
	return fmt.Sprintf("[%s/%s] %s %s: %s", f.Tier, f.Severity, f.Pattern, loc, f.Message)
}

// Fatal reports whether the finding forces a failed verdict
func (f Finding) Fatal() bool {
	return f.Severity == SeverityFatal
}

// Key identifies a finding for deduplication
func (f Finding) Key() string {
	return string(f.Tier) + "|" + f.Pattern + "|" + f.Port + "|" + f.Symbol
}

// List is an ordered collection of findings
type List []Finding

// HasFatal reports whether any finding is fatal
func (l List) HasFatal() bool {
	for _, f := range l {
		if f.Fatal() {
			return true
		}
	}
	return false
}

// Has reports whether any finding carries one of the given patterns
func (l List) Has(patterns ...string) bool {
	for _, f := range l {
		for _, p := range patterns {
			if f.Pattern == p {
				return true
			}
		}
	}
	return false
}

// WithPattern returns the findings carrying the given pattern
func (l List) WithPattern(pattern string) List {
	var out List
	for _, f := range l {
		if f.Pattern == pattern {
			out = append(out, f)
		}
	}
	return out
}

// Patterns returns the distinct patterns in first-seen order
func (l List) Patterns() []string {
	seen := make(map[string]bool, len(l))
	var out []string
	for _, f := range l {
		if !seen[f.Pattern] {
			seen[f.Pattern] = true
			out = append(out, f.Pattern)
		}
	}
	return out
}

// Dedupe drops repeated findings, keeping the most severe occurrence of each key
func (l List) Dedupe() List {
	index := make(map[string]int, len(l))
	out := make(List, 0, len(l))
	for _, f := range l {
		if i, ok := index[f.Key()]; ok {
			if f.Severity.rank() > out[i].Severity.rank() {
				out[i] = f
			}
			continue
		}
		index[f.Key()] = len(out)
		out = append(out, f)
	}
	return out
}

// Merge appends other and deduplicates
func (l List) Merge(other List) List {
	merged := make(List, 0, len(l)+len(other))
	merged = append(merged, l...)
	merged = append(merged, other...)
	return merged.Dedupe()
}

// Sorted returns a copy ordered by tier, severity (most severe first), line, and pattern
func (l List) Sorted() List {
	out := make(List, len(l))
	copy(out, l)
	tierRank := map[Tier]int{}
	for i, t := range Tiers {
		tierRank[t] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Tier != b.Tier {
			return tierRank[a.Tier] < tierRank[b.Tier]
		}
		if a.Severity != b.Severity {
			return a.Severity.rank() > b.Severity.rank()
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Pattern < b.Pattern
	})
	return out
}
