package healing

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/bpforge/internal/domain/artifact"
	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
)

// delegate hands an entry point to the base class default
const delegate = "return this.passthrough.apply(this, arguments);"

type repair struct {
	pattern string
	apply   func(src string, c artifact.Contract) string
}

// patternRepairs run in order; each one rescans the text it is given
var patternRepairs = []repair{
	{finding.ForbiddenConstruct, replaceEval},
	{finding.MissingSuperCall, insertSuper},
	{finding.WrongPortPrefix, canonicalAccessors},
	{finding.PlaceholderReturn, replacePlaceholders},
	{finding.UnimplementedBody, implementBodies},
	{finding.HardcodedLiteral, deriveLiterals},
}

func healPatterns(src string, c artifact.Contract, fs finding.List) string {
	for _, r := range patternRepairs {
		if fs.Has(r.pattern) {
			src = r.apply(src, c)
		}
	}
	return src
}

func healTypes(src string, c artifact.Contract, fs finding.List) string {
	if fs.Has(finding.SchemaIdentifierMismatch) {
		src = regeneratePorts(src, c)
	}
	if fs.Has(finding.SchemaMismatch) {
		src = coerceEmits(src, c)
	}
	return src
}

func healStructure(src string, c artifact.Contract, fs finding.List) string {
	if strings.TrimSpace(src) == "" {
		return src
	}
	src = ensureClass(src, c)
	src = ensureBase(src, c)
	if fs.Has(finding.ConstructionFailed, finding.MissingSuperCall) {
		src = repairConstructor(src, c)
	}
	src = ensureMethods(src, c)
	if fs.Has(finding.PortMissing, finding.PortUnexpected, finding.MissingPortsDeclaration) {
		src = regeneratePorts(src, c)
	}
	return src
}

func replaceEval(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	var edits []artifact.Edit
	for _, h := range validation.Locate(finding.ForbiddenConstruct, s, c) {
		if h.Symbol == "eval" {
			edits = append(edits, artifact.Edit{Span: h.Span, Text: "JSON.parse("})
		}
	}
	return artifact.Apply(src, edits...)
}

var (
	superCall  = regexp.MustCompile(`\bsuper\s*\(`)
	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

func insertSuper(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Target(c.ClassName)
	if !ok || class.Base == "" {
		return src
	}
	ctor, ok := s.Method(class, artifact.MethodConstructor)
	if !ok || len(s.CodeMatches(superCall, ctor.Body)) > 0 {
		return src
	}
	return artifact.Apply(src, artifact.Edit{
		Span: artifact.Span{Start: ctor.Body.Start, End: ctor.Body.Start},
		Text: "\n    super(" + param(ctor, 0, "{}") + ");",
	})
}

// param returns the i-th plain parameter name of m, or fallback
func param(m artifact.MethodDecl, i int, fallback string) string {
	if i >= len(m.Params) {
		return fallback
	}
	name := strings.TrimSpace(strings.SplitN(m.Params[i], "=", 2)[0])
	if !identifier.MatchString(name) {
		return fallback
	}
	return name
}

func canonicalAccessors(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	var edits []artifact.Edit
	for _, h := range validation.Locate(finding.WrongPortPrefix, s, c) {
		edits = append(edits, artifact.Edit{Span: h.Span, Text: accessorFor(c, h.Symbol, h.Direction)})
	}
	return artifact.Apply(src, edits...)
}

func accessorFor(c artifact.Contract, symbol string, dir recipe.Direction) string {
	if p, ok := c.PortByName(symbol, dir); ok {
		return p.Accessor
	}
	name := strings.TrimPrefix(strings.TrimPrefix(symbol, "in_"), "out_")
	if p, ok := c.PortByName(name, dir); ok {
		return p.Accessor
	}
	if dir == recipe.Output {
		return "out_" + name
	}
	return "in_" + name
}

func replacePlaceholders(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	var edits []artifact.Edit
	for _, h := range validation.Locate(finding.PlaceholderReturn, s, c) {
		edits = append(edits, artifact.Edit{Span: h.Span, Text: delegate})
	}
	return artifact.Apply(src, edits...)
}

func implementBodies(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	var edits []artifact.Edit
	for _, h := range validation.Locate(finding.UnimplementedBody, s, c) {
		text := delegate
		if !strings.HasPrefix(strings.TrimSpace(src[h.Span.Start:h.Span.End]), "throw") {
			// an empty method body
			text = "\n    " + delegate + "\n  "
		}
		edits = append(edits, artifact.Edit{Span: h.Span, Text: text})
	}
	return artifact.Apply(src, edits...)
}

func deriveLiterals(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Target(c.ClassName)
	if !ok {
		return src
	}
	process, ok := s.Method(class, artifact.MethodProcess)
	if !ok {
		return src
	}
	msg := param(process, 1, "arguments[1]")

	var edits []artifact.Edit
	for _, h := range validation.Locate(finding.HardcodedLiteral, s, c) {
		edits = append(edits, artifact.Edit{Span: h.Span, Text: msg})
	}
	return artifact.Apply(src, edits...)
}

// regeneratePorts replaces the body of ports() with the canonical declaration
func regeneratePorts(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Target(c.ClassName)
	if !ok {
		return src
	}
	ports, ok := s.Method(class, artifact.MethodPorts)
	if !ok {
		return src
	}
	return artifact.Apply(src, artifact.Edit{Span: ports.Body, Text: artifact.PortsBody(c)})
}

var (
	emitCall   = regexp.MustCompile(`\bthis\.emit\s*\(`)
	coerceCall = regexp.MustCompile(`^this\.coerce\s*\(`)
)

// coerceEmits routes every emitted value through the declared port schema
func coerceEmits(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Target(c.ClassName)
	if !ok {
		return src
	}
	var edits []artifact.Edit
	for _, m := range s.CodeMatches(emitCall, class.Body) {
		args, _ := s.CallArgs(m[1] - 1)
		if len(args) != 2 {
			continue
		}
		port := strings.TrimSpace(src[args[0].Start:args[0].End])
		value := strings.TrimSpace(src[args[1].Start:args[1].End])
		if coerceCall.MatchString(value) {
			continue
		}
		edits = append(edits, artifact.Edit{Span: args[1], Text: " this.coerce(" + port + ", " + value + ")"})
	}
	return artifact.Apply(src, edits...)
}

// ensureClass renames a misnamed class or appends a skeleton around the existing code
func ensureClass(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	if _, ok := s.Class(c.ClassName); ok {
		return src
	}
	if classes := s.Classes(); len(classes) > 0 {
		return artifact.Apply(src, artifact.Edit{Span: classes[0].NameSpan, Text: c.ClassName})
	}
	return strings.TrimRight(src, "\n") + "\n\n" + artifact.Skeleton(c)
}

func ensureBase(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Class(c.ClassName)
	if !ok || class.Base == string(c.Base) {
		return src
	}
	if class.Base == "" {
		at := class.NameSpan.End
		return artifact.Apply(src, artifact.Edit{Span: artifact.Span{Start: at, End: at}, Text: " extends " + string(c.Base)})
	}
	return artifact.Apply(src, artifact.Edit{Span: class.BaseSpan, Text: string(c.Base)})
}

// repairConstructor adds a missing super call, or replaces a constructor
// that already calls super and still fails with the plain default
func repairConstructor(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Class(c.ClassName)
	if !ok {
		return src
	}
	ctor, ok := s.Method(class, artifact.MethodConstructor)
	if !ok {
		return src
	}
	if len(s.CodeMatches(superCall, ctor.Body)) == 0 {
		return insertSuper(src, c)
	}
	return artifact.Apply(src, artifact.Edit{
		Span: artifact.Span{Start: ctor.Header.Start, End: ctor.Body.End + 1},
		Text: strings.TrimSpace(artifact.ConstructorMethod()),
	})
}

func ensureMethods(src string, c artifact.Contract) string {
	s := artifact.Scan(src)
	class, ok := s.Class(c.ClassName)
	if !ok {
		return src
	}
	at := artifact.Span{Start: class.Body.End, End: class.Body.End}
	var edits []artifact.Edit
	for _, name := range c.EntryPoints() {
		if _, ok := s.Method(class, name); ok {
			continue
		}
		text := artifact.EntryMethod(name)
		if name == artifact.MethodPorts {
			text = artifact.PortsMethod(c)
		}
		edits = append(edits, artifact.Edit{Span: at, Text: "\n" + text})
	}
	return artifact.Apply(src, edits...)
}
