package blueprint

import (
	"fmt"
	"os"
	"strings"

	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
)

// Parser converts raw blueprint documents into typed Blueprints
type Parser struct {
	supported []Version
	hasher    *digest.Hasher
}

// Option configures a Parser
type Option func(*Parser)

// WithSchemaVersions overrides the recognized schema versions
func WithSchemaVersions(versions ...Version) Option {
	return func(p *Parser) {
		if len(versions) > 0 {
			p.supported = append([]Version(nil), versions...)
		}
	}
}

// NewParser creates a new blueprint parser
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		supported: append([]Version(nil), DefaultSchemaVersions...),
		hasher:    digest.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SupportedVersions returns the recognized schema versions
func (p *Parser) SupportedVersions() []Version {
	return append([]Version(nil), p.supported...)
}

// ParseFile reads and parses a blueprint file, inferring the format from its extension
func (p *Parser) ParseFile(path string) (*Blueprint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint: %w", err)
	}
	return p.Parse(content, FormatFromPath(path))
}

// Parse converts raw content to a Blueprint. Every problem in the document is
// reported; a non-nil error is always ParseErrors.
func (p *Parser) Parse(content []byte, format Format) (*Blueprint, error) {
	doc, errs := decode(content, format)
	if errs != nil {
		return nil, errs
	}

	b := &builder{parser: p}
	bp := b.build(doc)
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	hash, err := p.hasher.HashJSON(bp)
	if err != nil {
		return nil, malformed("cannot normalize document: %v", err)
	}
	bp.Hash = hash
	return bp, nil
}

func (p *Parser) recognized(v Version) bool {
	for _, s := range p.supported {
		if s.Compare(v) == 0 {
			return true
		}
	}
	return false
}

// builder accumulates errors while converting a generic tree
type builder struct {
	parser *Parser
	errs   ParseErrors
}

func (b *builder) fail(reason error, path, format string, args ...any) {
	b.errs = append(b.errs, &ParseError{Reason: reason, Path: path, Detail: fmt.Sprintf(format, args...)})
}

func (b *builder) build(doc map[string]any) *Blueprint {
	bp := &Blueprint{}
	bp.System = b.system(doc)

	rawComponents, ok := doc["components"]
	if !ok {
		b.fail(ErrMissingRequiredField, "components", "blueprint declares no components")
	}
	bp.Components = b.components(rawComponents)
	bp.Bindings = b.bindings(doc["bindings"])
	return bp
}

func (b *builder) system(doc map[string]any) System {
	var sys System
	raw, present := doc["system"]
	m, ok := raw.(map[string]any)
	switch {
	case !present:
		b.fail(ErrMissingRequiredField, "system", "system block is required")
		m = map[string]any{}
	case !ok:
		b.fail(ErrMalformedDocument, "system", "expected mapping, got %s", kindOf(raw))
		m = map[string]any{}
	}

	sys.Name = b.requiredString(m, "name", "system.name")
	sys.Version = b.optionalString(m, "version", "system.version")
	sys.Description = b.optionalString(m, "description", "system.description")

	versionPath := "system.schema_version"
	rawVersion, has := m["schema_version"]
	if !has {
		rawVersion, has = doc["schema_version"]
		versionPath = "schema_version"
	}
	if !has {
		b.fail(ErrMissingRequiredField, "system.schema_version", "schema_version is required")
		return sys
	}
	text, ok := scalarString(rawVersion)
	if !ok {
		b.fail(ErrSchemaVersionUnsupported, versionPath, "expected version string, got %s", kindOf(rawVersion))
		return sys
	}
	v, err := ParseVersion(text)
	if err != nil {
		b.fail(ErrSchemaVersionUnsupported, versionPath, "%v", err)
		return sys
	}
	if !b.parser.recognized(v) {
		b.fail(ErrSchemaVersionUnsupported, versionPath, "version %s is not one of %s", v, versionList(b.parser.supported))
		return sys
	}
	sys.SchemaVersion = v
	return sys
}

func (b *builder) components(raw any) []ComponentSpec {
	if raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		b.fail(ErrMalformedDocument, "components", "expected list, got %s", kindOf(raw))
		return nil
	}

	seen := make(map[string]int, len(items))
	specs := make([]ComponentSpec, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("components[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			b.fail(ErrMalformedDocument, path, "expected mapping, got %s", kindOf(item))
			continue
		}

		spec := ComponentSpec{
			Name:        b.requiredString(m, "name", path+".name"),
			Kind:        b.requiredString(m, "kind", path+".kind"),
			Description: b.optionalString(m, "description", path+".description"),
		}
		if entry, present := m["entry"]; present {
			flag, ok := entry.(bool)
			if !ok {
				b.fail(ErrMalformedDocument, path+".entry", "expected boolean, got %s", kindOf(entry))
			}
			spec.Entry = flag
		}
		if cfg, present := m["config"]; present && cfg != nil {
			cm, ok := cfg.(map[string]any)
			if !ok {
				b.fail(ErrMalformedDocument, path+".config", "expected mapping, got %s", kindOf(cfg))
			}
			spec.Config = cm
		}

		if spec.Name != "" {
			if first, dup := seen[spec.Name]; dup {
				b.fail(ErrDuplicateComponentName, path+".name", "component %q already declared at components[%d]", spec.Name, first)
				continue
			}
			seen[spec.Name] = i
		}
		specs = append(specs, spec)
	}
	return specs
}

func (b *builder) bindings(raw any) []Binding {
	if raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		b.fail(ErrMalformedDocument, "bindings", "expected list, got %s", kindOf(raw))
		return nil
	}

	out := make([]Binding, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("bindings[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			b.fail(ErrMalformedDocument, path, "expected mapping, got %s", kindOf(item))
			continue
		}

		var binding Binding
		valid := true
		from := b.requiredString(m, "from", path+".from")
		if from != "" {
			ep, err := ParseEndpoint(from)
			if err != nil {
				b.fail(ErrMalformedDocument, path+".from", "%v", err)
				valid = false
			}
			binding.From = ep
		} else {
			valid = false
		}

		targets, ok := b.targets(m["to"], path+".to")
		if !ok {
			valid = false
		}
		binding.To = targets
		binding.Transform = b.optionalString(m, "transform", path+".transform")
		binding.Condition = b.optionalString(m, "condition", path+".condition")
		if valid {
			out = append(out, binding)
		}
	}
	return out
}

func (b *builder) targets(raw any, path string) ([]Endpoint, bool) {
	var texts []string
	switch v := raw.(type) {
	case nil:
		b.fail(ErrMissingRequiredField, path, "binding target is required")
		return nil, false
	case string:
		texts = []string{v}
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				b.fail(ErrMalformedDocument, fmt.Sprintf("%s[%d]", path, i), "expected endpoint string, got %s", kindOf(item))
				return nil, false
			}
			texts = append(texts, s)
		}
	default:
		b.fail(ErrMalformedDocument, path, "expected endpoint or list, got %s", kindOf(raw))
		return nil, false
	}
	if len(texts) == 0 {
		b.fail(ErrMissingRequiredField, path, "binding target list is empty")
		return nil, false
	}

	out := make([]Endpoint, 0, len(texts))
	ok := true
	for i, text := range texts {
		ep, err := ParseEndpoint(text)
		if err != nil {
			b.fail(ErrMalformedDocument, fmt.Sprintf("%s[%d]", path, i), "%v", err)
			ok = false
			continue
		}
		out = append(out, ep)
	}
	return out, ok
}

func (b *builder) requiredString(m map[string]any, key, path string) string {
	raw, present := m[key]
	if !present || raw == nil {
		b.fail(ErrMissingRequiredField, path, "%s is required", key)
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		b.fail(ErrMalformedDocument, path, "expected string, got %s", kindOf(raw))
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		b.fail(ErrMissingRequiredField, path, "%s must not be empty", key)
	}
	return s
}

func (b *builder) optionalString(m map[string]any, key, path string) string {
	raw, present := m[key]
	if !present || raw == nil {
		return ""
	}
	s, ok := scalarString(raw)
	if !ok {
		b.fail(ErrMalformedDocument, path, "expected string, got %s", kindOf(raw))
	}
	return s
}

// scalarString accepts strings and numbers (YAML turns 1.0 into a number)
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int64, float64:
		return fmt.Sprint(t), true
	}
	return "", false
}

func versionList(vs []Version) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
