package validation

import (
	"math"

	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
)

// Weights are the tier weights used by Score; they sum to 1
var Weights = map[finding.Tier]float64{
	finding.TierStructural:  0.30,
	finding.TierLogic:       0.20,
	finding.TierIntegration: 0.20,
	finding.TierSemantic:    0.30,
}

// TierResult is the check tally of one tier
type TierResult struct {
	Tier   finding.Tier `json:"tier"`
	Passed int          `json:"passed"`
	Total  int          `json:"total"`
}

// Ratio returns the passed fraction; a tier without checks counts as fully passed
func (t TierResult) Ratio() float64 {
	if t.Total == 0 {
		return 1
	}
	return float64(t.Passed) / float64(t.Total)
}

// Verdict is the outcome of validating one artifact
type Verdict struct {
	Passed   bool         `json:"passed"`
	Score    float64      `json:"score"`
	Findings finding.List `json:"findings"`
	Tiers    []TierResult `json:"tiers"`
}

// Tier returns the result of the named tier
func (v *Verdict) Tier(t finding.Tier) TierResult {
	for _, r := range v.Tiers {
		if r.Tier == t {
			return r
		}
	}
	return TierResult{Tier: t}
}

// Score returns the weighted fraction of passed checks, rounded to 4 places
func Score(tiers []TierResult) float64 {
	var total float64
	for _, t := range tiers {
		total += Weights[t.Tier] * t.Ratio()
	}
	return math.Round(total*1e4) / 1e4
}

// tally accumulates checks and findings for one tier
type tally struct {
	tier     finding.Tier
	passed   int
	total    int
	findings finding.List
}

func newTally(tier finding.Tier) *tally {
	return &tally{tier: tier}
}

// pass records a passed check
func (t *tally) pass() {
	t.total++
	t.passed++
}

// fail records a failed check with its findings; warnings alone do not fail the check
func (t *tally) fail(fs ...finding.Finding) {
	t.total++
	blocking := false
	for _, f := range fs {
		f.Tier = t.tier
		t.findings = append(t.findings, f)
		if f.Severity != finding.SeverityWarning {
			blocking = true
		}
	}
	if !blocking {
		t.passed++
	}
}

// check records a check that passes when no findings are given
func (t *tally) check(fs ...finding.Finding) {
	if len(fs) == 0 {
		t.pass()
		return
	}
	t.fail(fs...)
}

// skip records a failed check whose cause was already reported elsewhere
func (t *tally) skip() {
	t.total++
}

// skipped records that the tier could not run
func (t *tally) skipped(component, reason string) {
	t.total++
	t.findings = append(t.findings, finding.Finding{
		Tier:      t.tier,
		Severity:  finding.SeverityWarning,
		Pattern:   finding.TierSkipped,
		Message:   reason,
		Component: component,
	})
}

func (t *tally) result() TierResult {
	return TierResult{Tier: t.tier, Passed: t.passed, Total: t.total}
}
