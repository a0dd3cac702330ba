package recipe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

const configRef = "$config."

var portNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Expander applies recipes to component specs. Results for identical
// (kind, config) pairs are cached; expansion never touches the network.
type Expander struct {
	table  *Table
	hasher *digest.Hasher

	mu    sync.RWMutex
	cache map[string]*ExpandedComponent
	hits  int
}

// NewExpander creates an expander over a recipe table
func NewExpander(table *Table) *Expander {
	return &Expander{
		table:  table,
		hasher: digest.Default(),
		cache:  make(map[string]*ExpandedComponent),
	}
}

// Table returns the recipe table
func (e *Expander) Table() *Table {
	return e.table
}

// CacheHits reports how many expansions were served from cache
func (e *Expander) CacheHits() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hits
}

// Expand applies the recipe for spec.Kind. A non-nil error is always *ExpansionError.
func (e *Expander) Expand(spec blueprint.ComponentSpec) (*ExpandedComponent, error) {
	key, err := e.cacheKey(spec)
	if err == nil {
		e.mu.Lock()
		cached, ok := e.cache[key]
		if ok {
			e.hits++
		}
		e.mu.Unlock()
		if ok {
			return instantiate(cached, spec), nil
		}
	}

	template, expErr := e.expand(spec)
	if expErr != nil {
		return nil, expErr
	}
	if err == nil {
		e.mu.Lock()
		e.cache[key] = template
		e.mu.Unlock()
	}
	return instantiate(template, spec), nil
}

// ExpandAll expands every spec independently; one failure never blocks its siblings
func (e *Expander) ExpandAll(specs []blueprint.ComponentSpec) ([]*ExpandedComponent, []*ExpansionError) {
	var (
		out  []*ExpandedComponent
		errs []*ExpansionError
	)
	for _, spec := range specs {
		ec, err := e.Expand(spec)
		if err != nil {
			errs = append(errs, err.(*ExpansionError))
			continue
		}
		out = append(out, ec)
	}
	return out, errs
}

func (e *Expander) cacheKey(spec blueprint.ComponentSpec) (string, error) {
	h, err := e.hasher.HashJSON(spec.Config)
	if err != nil {
		return "", err
	}
	return spec.Kind + "|" + h, nil
}

// expand builds a name-independent template for the (kind, config) pair
func (e *Expander) expand(spec blueprint.ComponentSpec) (*ExpandedComponent, *ExpansionError) {
	fail := func(reason error, detail string, fields []FieldIssue) *ExpansionError {
		return &ExpansionError{Component: spec.Name, Kind: spec.Kind, Reason: reason, Detail: detail, Fields: fields}
	}

	r, ok := e.table.Lookup(spec.Kind)
	if !ok {
		return nil, fail(ErrUnknownRecipe, fmt.Sprintf("known kinds: %s", strings.Join(e.table.Kinds(), ", ")), nil)
	}

	attached := make([]Trait, 0, len(r.Traits))
	fields := append([]FieldSpec(nil), r.Config...)
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}
	for _, name := range r.Traits {
		t, _ := LookupTrait(name)
		attached = append(attached, t)
		for _, f := range t.ConfigFields() {
			if !declared[f.Name] {
				declared[f.Name] = true
				fields = append(fields, f)
			}
		}
	}

	cfg, issues := validateConfig(fields, spec.Config, e.table.ResolveSchema)

	var ports []Port
	for _, tmpl := range r.Ports {
		resolved, portIssues := e.instantiatePorts(tmpl, cfg, "")
		issues = append(issues, portIssues...)
		ports = append(ports, resolved...)
	}
	if len(issues) > 0 {
		return nil, fail(ErrConfigSchemaMismatch, "", dedupeIssues(issues))
	}

	var collisions []FieldIssue
	for _, t := range attached {
		for _, tmpl := range t.Ports(cfg) {
			resolved, portIssues := e.instantiatePorts(tmpl, cfg, t.Name())
			for _, issue := range portIssues {
				issue.Field = "trait " + t.Name() + ": " + issue.Field
				issues = append(issues, issue)
			}
			for _, p := range resolved {
				if _, exists := findPort(ports, p.Name, p.Direction); exists {
					collisions = append(collisions, FieldIssue{
						Field:   "trait " + t.Name(),
						Problem: fmt.Sprintf("adds %s port %q which already exists", p.Direction, p.Name),
					})
					continue
				}
				ports = append(ports, p)
			}
		}
	}
	// collisions take precedence; the remaining trait issues ride along
	if len(collisions) > 0 {
		return nil, fail(ErrTraitPortCollision, "", append(collisions, issues...))
	}
	if len(issues) > 0 {
		return nil, fail(ErrConfigSchemaMismatch, "", issues)
	}

	return &ExpandedComponent{
		Kind:        r.Kind,
		Primitive:   r.Primitive,
		Entry:       r.EntryPoint,
		Description: r.Description,
		Ports:       ports,
		Traits:      attached,
		Config:      cfg,
	}, nil
}

func (e *Expander) instantiatePorts(tmpl PortTemplate, cfg Config, trait string) ([]Port, []FieldIssue) {
	s, issue := e.resolvePortSchema(tmpl, cfg)
	if issue != nil {
		return nil, []FieldIssue{*issue}
	}

	names := []string{tmpl.Name}
	if tmpl.Each != "" {
		names = names[:0]
		for _, item := range cfg.Strings(tmpl.Each) {
			names = append(names, strings.ReplaceAll(tmpl.Name, "{item}", item))
		}
	}

	class := tmpl.Class
	if class == "" {
		class = ClassData
	}
	var (
		ports  []Port
		issues []FieldIssue
	)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		field := tmpl.Each
		if field == "" {
			field = "port " + tmpl.Name
		}
		if !portNamePattern.MatchString(name) {
			issues = append(issues, FieldIssue{Field: field, Problem: fmt.Sprintf("%q is not a valid port name", name)})
			continue
		}
		if seen[name] {
			issues = append(issues, FieldIssue{Field: field, Problem: fmt.Sprintf("port %q listed twice", name)})
			continue
		}
		seen[name] = true
		ports = append(ports, Port{
			Name:      name,
			Direction: tmpl.Direction,
			Class:     class,
			Schema:    s.Clone(),
			FanIn:     tmpl.FanIn,
			Trait:     trait,
		})
	}
	return ports, issues
}

func (e *Expander) resolvePortSchema(tmpl PortTemplate, cfg Config) (*schema.Schema, *FieldIssue) {
	if ref, ok := tmpl.Schema.(string); ok && strings.HasPrefix(ref, configRef) {
		field := strings.TrimPrefix(ref, configRef)
		s := cfg.Schema(field)
		if s == nil {
			return nil, &FieldIssue{Field: field, Problem: fmt.Sprintf("port %s needs a schema from this field", tmpl.Name)}
		}
		return s, nil
	}
	if tmpl.Schema == nil {
		return schema.Primitive(schema.KindAny), nil
	}
	s, err := schema.Parse(tmpl.Schema, e.table.ResolveSchema)
	if err != nil {
		return nil, &FieldIssue{Field: "port " + tmpl.Name, Problem: err.Error()}
	}
	return s, nil
}

// dedupeIssues keeps the first issue per field, sorted by field name
func dedupeIssues(issues []FieldIssue) []FieldIssue {
	seen := make(map[string]bool, len(issues))
	out := make([]FieldIssue, 0, len(issues))
	for _, issue := range issues {
		if seen[issue.Field] {
			continue
		}
		seen[issue.Field] = true
		out = append(out, issue)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func findPort(ports []Port, name string, dir Direction) (Port, bool) {
	for _, p := range ports {
		if p.Name == name && p.Direction == dir {
			return p, true
		}
	}
	return Port{}, false
}

// instantiate binds a cached template to a concrete component name
func instantiate(template *ExpandedComponent, spec blueprint.ComponentSpec) *ExpandedComponent {
	ports := make([]Port, len(template.Ports))
	for i, p := range template.Ports {
		p.Schema = p.Schema.Clone()
		ports[i] = p
	}
	ec := *template
	ec.Name = spec.Name
	ec.Entry = template.Entry || spec.Entry
	if spec.Description != "" {
		ec.Description = spec.Description
	}
	ec.Ports = ports
	ec.Traits = append([]Trait(nil), template.Traits...)
	return &ec
}
