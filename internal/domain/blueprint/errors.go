package blueprint

import (
	"errors"
	"fmt"
	"strings"
)

// Parse failure reasons
var (
	ErrMalformedDocument        = errors.New("malformed document")
	ErrSchemaVersionUnsupported = errors.New("schema version unsupported")
	ErrDuplicateComponentName   = errors.New("duplicate component name")
	ErrMissingRequiredField     = errors.New("missing required field")
)

// ParseError describes one problem found while parsing a blueprint
type ParseError struct {
	Reason error
	Path   string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("%v at %s: %s", e.Reason, e.Path, e.Detail)
}

// Unwrap returns the reason sentinel
func (e *ParseError) Unwrap() error {
	return e.Reason
}

// ParseErrors is the full set of problems found in one document
type ParseErrors []*ParseError

func (es ParseErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d blueprint errors: %s", len(es), strings.Join(msgs, "; "))
}

// Unwrap exposes every error to errors.Is and errors.As
func (es ParseErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

func malformed(format string, args ...any) ParseErrors {
	return ParseErrors{{Reason: ErrMalformedDocument, Detail: fmt.Sprintf(format, args...)}}
}
