package recipe

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

//go:embed recipes.yaml
var defaultRecipes []byte

// Table is the immutable recipe table plus the named schemas recipes refer to
type Table struct {
	recipes map[string]*Recipe
	schemas map[string]*schema.Schema
}

type tableDocument struct {
	Schemas []struct {
		Name   string `yaml:"name"`
		Schema any    `yaml:"schema"`
	} `yaml:"schemas"`
	Recipes []*Recipe `yaml:"recipes"`
}

var (
	defaultTable     *Table
	defaultTableErr  error
	defaultTableOnce sync.Once
)

// DefaultTable returns the built-in recipe table, loaded once
func DefaultTable() (*Table, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = LoadTable(defaultRecipes)
	})
	return defaultTable, defaultTableErr
}

// MustDefaultTable returns the built-in table or panics; the embedded table is validated by tests
func MustDefaultTable() *Table {
	t, err := DefaultTable()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable parses and checks a recipe table document
func LoadTable(data []byte) (*Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse recipe table: %w", err)
	}

	t := &Table{
		recipes: make(map[string]*Recipe, len(doc.Recipes)),
		schemas: make(map[string]*schema.Schema, len(doc.Schemas)),
	}

	var errs []error
	for _, named := range doc.Schemas {
		if named.Name == "" {
			errs = append(errs, errors.New("named schema without a name"))
			continue
		}
		s, err := schema.Parse(normalizeYAML(named.Schema), t.ResolveSchema)
		if err != nil {
			errs = append(errs, fmt.Errorf("schema %s: %w", named.Name, err))
			continue
		}
		t.schemas[named.Name] = s.Named(named.Name)
	}

	for _, r := range doc.Recipes {
		if err := t.check(r); err != nil {
			errs = append(errs, err)
			continue
		}
		for i := range r.Config {
			r.Config[i].Default = normalizeYAML(r.Config[i].Default)
		}
		for i := range r.Ports {
			r.Ports[i].Schema = normalizeYAML(r.Ports[i].Schema)
		}
		t.recipes[r.Kind] = r
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func (t *Table) check(r *Recipe) error {
	switch {
	case r == nil || r.Kind == "":
		return errors.New("recipe without a kind")
	case !r.Primitive.Valid():
		return fmt.Errorf("recipe %s: unknown primitive %q", r.Kind, r.Primitive)
	}
	if _, dup := t.recipes[r.Kind]; dup {
		return fmt.Errorf("recipe %s declared twice", r.Kind)
	}
	for _, name := range r.Traits {
		if _, ok := LookupTrait(name); !ok {
			return fmt.Errorf("recipe %s: unknown trait %q", r.Kind, name)
		}
	}
	fields := make(map[string]string, len(r.Config))
	for _, f := range r.Config {
		if _, ok := fieldType(f.Type); !ok && f.Type != TypeSchema {
			return fmt.Errorf("recipe %s: field %s has unknown type %q", r.Kind, f.Name, f.Type)
		}
		fields[f.Name] = f.Type
	}
	for _, p := range r.Ports {
		if p.Direction != Input && p.Direction != Output {
			return fmt.Errorf("recipe %s: port %s has invalid direction %q", r.Kind, p.Name, p.Direction)
		}
		if p.Each != "" && fields[p.Each] != TypeStringList {
			return fmt.Errorf("recipe %s: port %s repeats over %q, which is not a list(string) field", r.Kind, p.Name, p.Each)
		}
	}
	return nil
}

// Lookup returns the recipe for kind
func (t *Table) Lookup(kind string) (*Recipe, bool) {
	r, ok := t.recipes[kind]
	return r, ok
}

// Kinds returns every kind in sorted order
func (t *Table) Kinds() []string {
	kinds := make([]string, 0, len(t.recipes))
	for k := range t.recipes {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Recipes returns every recipe sorted by kind
func (t *Table) Recipes() []*Recipe {
	out := make([]*Recipe, 0, len(t.recipes))
	for _, k := range t.Kinds() {
		out = append(out, t.recipes[k])
	}
	return out
}

// ResolveSchema looks up a named schema
func (t *Table) ResolveSchema(name string) (*schema.Schema, bool) {
	s, ok := t.schemas[name]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// normalizeYAML converts decoder-specific numbers and maps into the plain forms used elsewhere
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	default:
		return v
	}
}
