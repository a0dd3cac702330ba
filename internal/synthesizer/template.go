package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
)

// Template renders artifacts from the contract without any remote call
type Template struct{}

// NewTemplate creates a template synthesizer
func NewTemplate() *Template {
	return &Template{}
}

// Synthesize renders the artifact for req.Contract
func (t *Template) Synthesize(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Render(req.Contract), nil
}

// Render returns the template artifact for a contract
func Render(c artifact.Contract) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s (%s): generated from its %s contract\n", c.Component, c.Kind, c.Base)
	fmt.Fprintf(&b, "class %s extends %s {\n", c.ClassName, c.Base)
	b.WriteString(artifact.ConstructorMethod())
	b.WriteString("\n")
	b.WriteString(artifact.PortsMethod(c))

	for _, entry := range c.EntryPoints() {
		switch entry {
		case artifact.MethodProcess:
			b.WriteString("\n")
			b.WriteString(processMethod(c))
		case artifact.MethodGenerate:
			b.WriteString("\n")
			b.WriteString(artifact.EntryMethod(artifact.MethodGenerate))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func processMethod(c artifact.Contract) string {
	var b strings.Builder
	line := func(depth int, format string, args ...any) {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\n")
	}

	line(1, "process(port, msg) {")
	for _, p := range c.Inputs {
		if p.Class == recipe.ClassData {
			continue
		}
		line(2, "if (port === %s) {", artifact.Quote(p.Accessor))
		line(3, "return this.ack(msg);")
		line(2, "}")
	}
	if c.HasTrait(recipe.TraitValidation) {
		line(2, "if (!this.accepts(port, msg)) {")
		line(3, "return this.reject(msg, %s + port);", artifact.Quote("input does not match "))
		line(2, "}")
	}

	outputs := c.DataOutputs()
	switch {
	case len(outputs) == 0 && c.HasTrait(recipe.TraitPersistence):
		line(2, "return this.persist(this.dedupeKey(msg), msg);")
	case len(outputs) == 0:
		line(2, "return this.ack(msg);")
	case len(outputs) == 1:
		out := artifact.Quote(outputs[0].Accessor)
		line(2, "return this.emit(%s, this.coerce(%s, msg));", out, out)
	default:
		accessors := make([]string, len(outputs))
		for i, p := range outputs {
			accessors[i] = artifact.Quote(p.Accessor)
		}
		line(2, "var routes = [%s];", strings.Join(accessors, ", "))
		line(2, "var key = String(this.dedupeKey(msg));")
		line(2, "var h = 0;")
		line(2, "for (var i = 0; i < key.length; i++) {")
		line(3, "h = (h * 31 + key.charCodeAt(i)) | 0;")
		line(2, "}")
		line(2, "var out = routes[Math.abs(h) %% routes.length];")
		line(2, "return this.emit(out, this.coerce(out, msg));")
	}
	line(1, "}")
	return b.String()
}
