package recipe

import (
	"fmt"

	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

// Primitive is one of the five component shapes
type Primitive string

const (
	Source      Primitive = "Source"
	Sink        Primitive = "Sink"
	Transformer Primitive = "Transformer"
	Splitter    Primitive = "Splitter"
	Merger      Primitive = "Merger"
)

// Primitives lists every primitive shape
var Primitives = []Primitive{Source, Sink, Transformer, Splitter, Merger}

// Valid reports whether p is a known primitive
func (p Primitive) Valid() bool {
	for _, known := range Primitives {
		if p == known {
			return true
		}
	}
	return false
}

// Direction of a port
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Class is the semantic class of a port
type Class string

const (
	ClassData    Class = "data"
	ClassControl Class = "control"
	ClassError   Class = "error"
	ClassMetrics Class = "metrics"
)

// Port is a resolved port on an expanded component
type Port struct {
	Name      string         `json:"name"`
	Direction Direction      `json:"direction"`
	Class     Class          `json:"class"`
	Schema    *schema.Schema `json:"schema"`
	FanIn     bool           `json:"fan_in,omitempty"`
	Trait     string         `json:"trait,omitempty"`
}

// Accessor returns the canonical artifact-side port name (in_/out_ prefixed)
func (p Port) Accessor() string {
	return Accessor(p.Direction, p.Name)
}

// Accessor builds the canonical artifact-side name for a port
func Accessor(dir Direction, name string) string {
	if dir == Input {
		return "in_" + name
	}
	return "out_" + name
}

// String implements fmt.Stringer
func (p Port) String() string {
	return fmt.Sprintf("%s(%s %s %s)", p.Name, p.Direction, p.Class, p.Schema.ID())
}

// FieldSpec declares one recipe config field
type FieldSpec struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required" json:"required,omitempty"`
	Default     any    `yaml:"default" json:"default,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// PortTemplate declares a port on a recipe; Each repeats it per item of a list config field
type PortTemplate struct {
	Name      string    `yaml:"name" json:"name"`
	Direction Direction `yaml:"direction" json:"direction"`
	Class     Class     `yaml:"class" json:"class"`
	Schema    any       `yaml:"schema" json:"schema"`
	FanIn     bool      `yaml:"fan_in" json:"fan_in,omitempty"`
	Each      string    `yaml:"each" json:"each,omitempty"`
}

// Recipe maps a component kind to a primitive shape, traits and port templates
type Recipe struct {
	Kind        string         `yaml:"kind" json:"kind"`
	Primitive   Primitive      `yaml:"primitive" json:"primitive"`
	Description string         `yaml:"description" json:"description,omitempty"`
	EntryPoint  bool           `yaml:"entry_point" json:"entry_point,omitempty"`
	Traits      []string       `yaml:"traits" json:"traits,omitempty"`
	Config      []FieldSpec    `yaml:"config" json:"config"`
	Ports       []PortTemplate `yaml:"ports" json:"ports"`
}

// ExpandedComponent is a component spec with its recipe applied
type ExpandedComponent struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Primitive   Primitive `json:"primitive"`
	Entry       bool      `json:"entry,omitempty"`
	Description string    `json:"description,omitempty"`
	Ports       []Port    `json:"ports"`
	Traits      []Trait   `json:"-"`
	Config      Config    `json:"-"`
}

// Port returns the port with the given name
func (c *ExpandedComponent) Port(name string) (Port, bool) {
	for _, p := range c.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// PortIn returns the port with the given name and direction. A component may
// use one name for an input and an output, so bindings resolve through here.
func (c *ExpandedComponent) PortIn(name string, dir Direction) (Port, bool) {
	return findPort(c.Ports, name, dir)
}

// Inputs returns input ports in declaration order
func (c *ExpandedComponent) Inputs() []Port {
	return c.filter(func(p Port) bool { return p.Direction == Input })
}

// Outputs returns output ports in declaration order
func (c *ExpandedComponent) Outputs() []Port {
	return c.filter(func(p Port) bool { return p.Direction == Output })
}

// DataInputs returns data-class input ports
func (c *ExpandedComponent) DataInputs() []Port {
	return c.filter(func(p Port) bool { return p.Direction == Input && p.Class == ClassData })
}

// DataOutputs returns data-class output ports
func (c *ExpandedComponent) DataOutputs() []Port {
	return c.filter(func(p Port) bool { return p.Direction == Output && p.Class == ClassData })
}

func (c *ExpandedComponent) filter(keep func(Port) bool) []Port {
	var out []Port
	for _, p := range c.Ports {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// HasTrait reports whether the component carries the named trait
func (c *ExpandedComponent) HasTrait(name string) bool {
	for _, t := range c.Traits {
		if t.Name() == name {
			return true
		}
	}
	return false
}

// TraitNames returns trait names in attachment order
func (c *ExpandedComponent) TraitNames() []string {
	names := make([]string, len(c.Traits))
	for i, t := range c.Traits {
		names[i] = t.Name()
	}
	return names
}

// Obligations collects the behavioral requirements of every trait
func (c *ExpandedComponent) Obligations() []string {
	var out []string
	for _, t := range c.Traits {
		out = append(out, t.Obligations(c.Config)...)
	}
	return out
}

// IsEntryPoint reports whether the component may receive external input
func (c *ExpandedComponent) IsEntryPoint() bool {
	return c.Entry || c.Primitive == Source
}
