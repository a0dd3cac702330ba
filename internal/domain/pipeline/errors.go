package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/graph"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
)

// Compile stages that can reject a blueprint
const (
	StageParse     = "parse"
	StageExpansion = "expansion"
	StageGraph     = "graph"
)

// Stage names the compile stage that produced err, or "" when err did not
// come from compilation
func Stage(err error) string {
	var (
		parseErrs blueprint.ParseErrors
		parseErr  *blueprint.ParseError
		expErrs   ExpansionErrors
		graphErrs graph.GraphErrors
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErrs), errors.As(err, &parseErr):
		return StageParse
	case errors.As(err, &expErrs):
		return StageExpansion
	case errors.As(err, &graphErrs):
		return StageGraph
	}
	return ""
}

// ExpansionErrors is every component that failed to expand in one run
type ExpansionErrors []*recipe.ExpansionError

func (es ExpansionErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d components failed to expand: %s", len(es), strings.Join(msgs, "; "))
}

// Unwrap exposes each error to errors.Is and errors.As
func (es ExpansionErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}
