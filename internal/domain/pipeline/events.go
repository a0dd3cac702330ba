package pipeline

import (
	"time"

	"github.com/GriffinCanCode/bpforge/internal/domain/healing"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// EventType identifies a pipeline progress event
type EventType string

const (
	EventRunStarted        EventType = "run_started"
	EventCompiled          EventType = "compiled"
	EventSynthesized       EventType = "synthesized"
	EventValidated         EventType = "validated"
	EventTransition        EventType = "transition"
	EventComponentFinished EventType = "component_finished"
	EventRunFinished       EventType = "run_finished"
)

// Event reports progress of a run. Observers receive events from several
// goroutines and must be safe for concurrent use.
type Event struct {
	Type       EventType           `json:"type"`
	RunID      id.RunID            `json:"run_id"`
	Component  string              `json:"component,omitempty"`
	Status     Status              `json:"status,omitempty"`
	Passed     bool                `json:"passed,omitempty"`
	Score      float64             `json:"score,omitempty"`
	Transition *healing.Transition `json:"transition,omitempty"`
	Summary    *Summary            `json:"summary,omitempty"`
	Components int                 `json:"components,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	At         time.Time           `json:"at"`
}

// Observer receives run events
type Observer func(Event)

// Metrics receives run measurements
type Metrics interface {
	ObserveVerdict(passed bool, score float64)
	ObserveTransition(from, to string)
	ObserveComponent(status string, duration time.Duration)
	ObserveRun(passed bool, duration time.Duration)
}
