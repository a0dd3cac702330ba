package pipeline

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/bpforge/internal/domain/healing"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// Status is the terminal state of one component in a run
type Status string

const (
	StatusResolved        Status = "Resolved"
	StatusEscalated       Status = "Escalated"
	StatusCancelled       Status = "Cancelled"
	StatusExpansionFailed Status = "ExpansionFailed"
	StatusNotStarted      Status = "NotStarted"
)

func statusOf(s healing.State) Status {
	switch s {
	case healing.StateResolved:
		return StatusResolved
	case healing.StateCancelled:
		return StatusCancelled
	default:
		return StatusEscalated
	}
}

// ComponentResult is the outcome for one component
type ComponentResult struct {
	Name           string               `json:"name"`
	Kind           string               `json:"kind"`
	Status         Status               `json:"status"`
	Artifact       string               `json:"artifact_source"`
	Verdict        *validation.Verdict  `json:"verdict,omitempty"`
	InitialScore   float64              `json:"initial_score"`
	History        []healing.Checkpoint `json:"healing_history"`
	Attempts       []healing.Attempt    `json:"attempts,omitempty"`
	Transitions    []healing.Transition `json:"transitions,omitempty"`
	SynthesisCalls int                  `json:"synthesis_calls"`
	Error          string               `json:"error,omitempty"`
	Duration       time.Duration        `json:"duration"`
}

// Summary is the system-level view of a run
type Summary struct {
	OverallPassed       bool     `json:"overall_passed"`
	AggregateScore      float64  `json:"aggregate_score"`
	ResolvedComponents  []string `json:"resolved_components"`
	EscalatedComponents []string `json:"escalated_components"`
	CancelledComponents []string `json:"cancelled_components,omitempty"`
	FailedComponents    []string `json:"failed_components,omitempty"`
}

// Result is the full record of a run
type Result struct {
	RunID         id.RunID          `json:"run_id"`
	System        string            `json:"system"`
	BlueprintHash string            `json:"blueprint_hash,omitempty"`
	Threshold     float64           `json:"threshold"`
	Errors        []string          `json:"errors,omitempty"`
	Components    []ComponentResult `json:"components"`
	Summary       Summary           `json:"summary"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// Component returns the named component result
func (r *Result) Component(name string) (ComponentResult, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentResult{}, false
}

// Failing returns the components that did not resolve
func (r *Result) Failing() []ComponentResult {
	var out []ComponentResult
	for _, c := range r.Components {
		if c.Status != StatusResolved {
			out = append(out, c)
		}
	}
	return out
}

// summarize computes the summary from component results. The aggregate
// score is the mean verdict score; components without a verdict count as 0.
func (r *Result) summarize() {
	s := Summary{}
	scores := make([]float64, 0, len(r.Components))
	for _, c := range r.Components {
		score := 0.0
		if c.Verdict != nil {
			score = c.Verdict.Score
		}
		scores = append(scores, score)

		switch c.Status {
		case StatusResolved:
			s.ResolvedComponents = append(s.ResolvedComponents, c.Name)
		case StatusEscalated:
			s.EscalatedComponents = append(s.EscalatedComponents, c.Name)
		case StatusCancelled:
			s.CancelledComponents = append(s.CancelledComponents, c.Name)
		default:
			s.FailedComponents = append(s.FailedComponents, c.Name)
		}
	}
	if len(scores) > 0 {
		s.AggregateScore = roundScore(stat.Mean(scores, nil))
	}
	s.OverallPassed = len(r.Errors) == 0 && len(r.Components) > 0 && len(s.ResolvedComponents) == len(r.Components)
	for _, names := range [][]string{s.ResolvedComponents, s.EscalatedComponents, s.CancelledComponents, s.FailedComponents} {
		sort.Strings(names)
	}
	r.Summary = s
}

func roundScore(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
