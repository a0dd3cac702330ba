package healing

import (
	"time"

	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
)

// State is a step of the healing state machine
type State string

const (
	StateCheckpointed        State = "Checkpointed"
	StatePatternHealing      State = "PatternHealing"
	StateTypeHealing         State = "TypeHealing"
	StateStructuralHealing   State = "StructuralHealing"
	StateSynthesizerAssisted State = "SynthesizerAssisted"
	StateResolved            State = "Resolved"
	StateEscalated           State = "Escalated"
	StateCancelled           State = "Cancelled"
)

// healingStates is the strict order in which repairs are attempted
var healingStates = []State{StatePatternHealing, StateTypeHealing, StateStructuralHealing, StateSynthesizerAssisted}

// Terminal reports whether no further transition can follow s
func (s State) Terminal() bool {
	return s == StateResolved || s == StateEscalated || s == StateCancelled
}

// Tags returns the finding patterns a state knows how to repair. The
// synthesizer state accepts anything, so it reports nil.
func (s State) Tags() []string {
	switch s {
	case StatePatternHealing:
		return []string{
			finding.ForbiddenConstruct,
			finding.MissingSuperCall,
			finding.WrongPortPrefix,
			finding.PlaceholderReturn,
			finding.UnimplementedBody,
			finding.HardcodedLiteral,
		}
	case StateTypeHealing:
		return []string{finding.SchemaIdentifierMismatch, finding.SchemaMismatch}
	case StateStructuralHealing:
		return []string{
			finding.MissingClass,
			finding.WrongBase,
			finding.ConstructionFailed,
			finding.MissingEntryPoint,
			finding.MissingPortsDeclaration,
			finding.PortMissing,
			finding.PortUnexpected,
		}
	}
	return nil
}

func (s State) applies(fs finding.List) bool {
	if s == StateSynthesizerAssisted {
		return true
	}
	return fs.Has(s.Tags()...)
}

// Transition records one move of the state machine
type Transition struct {
	Component string    `json:"component"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Pass      int       `json:"pass"`
	At        time.Time `json:"at"`
}

// Result of a single healing attempt
const (
	AttemptImproved   = "improved"
	AttemptResolved   = "resolved"
	AttemptRolledBack = "rolled_back"
	AttemptUnchanged  = "unchanged"
	AttemptFailed     = "failed"
)

// Attempt records one rewrite and its re-validation
type Attempt struct {
	Pass   int     `json:"pass"`
	State  State   `json:"state"`
	Result string  `json:"result"`
	Score  float64 `json:"score"`
	Digest string  `json:"digest,omitempty"`
	Detail string  `json:"detail,omitempty"`
}
