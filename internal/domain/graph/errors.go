package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
)

// Graph failure kinds
var (
	ErrDanglingReference             = errors.New("dangling reference")
	ErrDirectionMismatch             = errors.New("direction mismatch")
	ErrSchemaIncompatible            = errors.New("schema incompatible")
	ErrFanInViolation                = errors.New("fan-in violation")
	ErrPrimitiveCardinalityViolation = errors.New("primitive cardinality violation")
	ErrUnreachable                   = errors.New("unreachable component")
	ErrDuplicateComponent            = errors.New("duplicate component")
)

// GraphError is one consistency problem found while building the graph
type GraphError struct {
	Kind      error
	Component string
	From      *blueprint.Endpoint
	To        *blueprint.Endpoint
	Detail    string
}

func (e *GraphError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	switch {
	case e.From != nil && e.To != nil:
		fmt.Fprintf(&b, " %s -> %s", e.From, e.To)
	case e.From != nil:
		fmt.Fprintf(&b, " at %s", e.From)
	case e.To != nil:
		fmt.Fprintf(&b, " at %s", e.To)
	case e.Component != "":
		fmt.Fprintf(&b, " in %s", e.Component)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	return b.String()
}

// Unwrap returns the kind sentinel
func (e *GraphError) Unwrap() error {
	return e.Kind
}

// GraphErrors is the full set of problems found by Build
type GraphErrors []*GraphError

func (es GraphErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d graph errors: %s", len(es), strings.Join(msgs, "; "))
}

// Unwrap exposes each error to errors.Is and errors.As
func (es GraphErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// OfKind returns the errors matching kind
func (es GraphErrors) OfKind(kind error) GraphErrors {
	var out GraphErrors
	for _, e := range es {
		if errors.Is(e, kind) {
			out = append(out, e)
		}
	}
	return out
}
