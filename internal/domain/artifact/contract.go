package artifact

import (
	"sort"
	"strings"
	"unicode"

	"github.com/GriffinCanCode/bpforge/internal/domain/graph"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

// Entry point method names
const (
	MethodConstructor = "constructor"
	MethodPorts       = "ports"
	MethodProcess     = "process"
	MethodGenerate    = "generate"
)

// PortSpec is one port as the artifact must declare it
type PortSpec struct {
	Name      string           `json:"name"`
	Accessor  string           `json:"accessor"`
	Direction recipe.Direction `json:"direction"`
	Class     recipe.Class     `json:"class"`
	SchemaID  string           `json:"schema_id"`
	Schema    *schema.Schema   `json:"schema"`
	Trait     string           `json:"trait,omitempty"`
}

// Contract is everything an artifact for one component has to satisfy
type Contract struct {
	Component   string             `json:"component"`
	Kind        string             `json:"kind"`
	ClassName   string             `json:"class_name"`
	Base        recipe.Primitive   `json:"base"`
	Description string             `json:"description,omitempty"`
	Inputs      []PortSpec         `json:"inputs"`
	Outputs     []PortSpec         `json:"outputs"`
	Traits      []string           `json:"traits,omitempty"`
	Obligations []string           `json:"obligations,omitempty"`
	Config      map[string]any     `json:"config,omitempty"`
	Neighbors   graph.Neighborhood `json:"neighbors"`
}

// ContractFor derives the contract of a component. g may be nil when the
// component is validated outside of a graph.
func ContractFor(ec *recipe.ExpandedComponent, g *graph.ComponentGraph) Contract {
	c := Contract{
		Component:   ec.Name,
		Kind:        ec.Kind,
		ClassName:   ClassName(ec.Name),
		Base:        ec.Primitive,
		Description: ec.Description,
		Traits:      ec.TraitNames(),
		Obligations: ec.Obligations(),
		Config:      ec.Config.Plain(),
	}
	for _, p := range ec.Ports {
		spec := PortSpec{
			Name:      p.Name,
			Accessor:  p.Accessor(),
			Direction: p.Direction,
			Class:     p.Class,
			SchemaID:  p.Schema.ID(),
			Schema:    p.Schema,
			Trait:     p.Trait,
		}
		if p.Direction == recipe.Input {
			c.Inputs = append(c.Inputs, spec)
		} else {
			c.Outputs = append(c.Outputs, spec)
		}
	}
	if g != nil {
		c.Neighbors = g.Neighbors(ec.Name)
	}
	return c
}

// ClassName converts a component name to the PascalCase class name artifacts define
func ClassName(component string) string {
	var b strings.Builder
	upper := true
	for _, r := range component {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "C" + name
	}
	return name
}

// Ports returns inputs followed by outputs
func (c Contract) Ports() []PortSpec {
	out := make([]PortSpec, 0, len(c.Inputs)+len(c.Outputs))
	out = append(out, c.Inputs...)
	return append(out, c.Outputs...)
}

// Port looks up a port by accessor
func (c Contract) Port(accessor string) (PortSpec, bool) {
	for _, p := range c.Ports() {
		if p.Accessor == accessor {
			return p, true
		}
	}
	return PortSpec{}, false
}

// PortByName looks up a port by its unprefixed name and direction
func (c Contract) PortByName(name string, dir recipe.Direction) (PortSpec, bool) {
	for _, p := range c.Ports() {
		if p.Name == name && p.Direction == dir {
			return p, true
		}
	}
	return PortSpec{}, false
}

// DataOutputs returns the data-class output ports
func (c Contract) DataOutputs() []PortSpec {
	var out []PortSpec
	for _, p := range c.Outputs {
		if p.Class == recipe.ClassData {
			out = append(out, p)
		}
	}
	return out
}

func (c Contract) hasDataInput() bool {
	for _, p := range c.Inputs {
		if p.Class == recipe.ClassData {
			return true
		}
	}
	return false
}

// HasTrait reports whether the component carries the trait
func (c Contract) HasTrait(name string) bool {
	for _, t := range c.Traits {
		if t == name {
			return true
		}
	}
	return false
}

// EntryPoints returns the methods the artifact must define, in order
func (c Contract) EntryPoints() []string {
	methods := []string{MethodPorts}
	if len(c.Inputs) > 0 {
		methods = append(methods, MethodProcess)
	}
	if len(c.Outputs) > 0 && !c.hasDataInput() {
		methods = append(methods, MethodGenerate)
	}
	return methods
}

// Declared is the shape returned by an artifact's ports() method
type Declared struct {
	Inputs  map[string]string `json:"inputs"`
	Outputs map[string]string `json:"outputs"`
}

// Declaration returns the ports() value the artifact is expected to return
func (c Contract) Declaration() Declared {
	d := Declared{Inputs: map[string]string{}, Outputs: map[string]string{}}
	for _, p := range c.Inputs {
		d.Inputs[p.Accessor] = p.SchemaID
	}
	for _, p := range c.Outputs {
		d.Outputs[p.Accessor] = p.SchemaID
	}
	return d
}

// HarnessPort is the per-port entry of the contract object installed in the sandbox
type HarnessPort struct {
	Direction recipe.Direction `json:"direction"`
	Class     recipe.Class     `json:"class"`
	Schema    *schema.Schema   `json:"schema"`
}

// Harness returns the contract object the prelude reads from globalThis.__bpContract
func (c Contract) Harness() map[string]any {
	ports := make(map[string]HarnessPort, len(c.Inputs)+len(c.Outputs))
	for _, p := range c.Ports() {
		ports[p.Accessor] = HarnessPort{Direction: p.Direction, Class: p.Class, Schema: p.Schema}
	}
	return map[string]any{"ports": ports}
}

// Accessors returns every accessor, sorted
func (c Contract) Accessors() []string {
	var out []string
	for _, p := range c.Ports() {
		out = append(out, p.Accessor)
	}
	sort.Strings(out)
	return out
}
