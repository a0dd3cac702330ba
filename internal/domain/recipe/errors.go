package recipe

import (
	"errors"
	"fmt"
	"strings"
)

// Expansion failure reasons
var (
	ErrUnknownRecipe        = errors.New("unknown recipe")
	ErrConfigSchemaMismatch = errors.New("config schema mismatch")
	ErrTraitPortCollision   = errors.New("trait port collision")
)

// ExpansionError reports why a single component could not be expanded
type ExpansionError struct {
	Component string
	Kind      string
	Reason    error
	Fields    []FieldIssue
	Detail    string
}

func (e *ExpansionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "component %s (kind %s): %v", e.Component, e.Kind, e.Reason)
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if len(e.Fields) > 0 {
		issues := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			issues[i] = f.String()
		}
		b.WriteString(": " + strings.Join(issues, "; "))
	}
	return b.String()
}

// Unwrap returns the reason sentinel
func (e *ExpansionError) Unwrap() error {
	return e.Reason
}
