package graph

import (
	"fmt"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

// Edge is a validated port-to-port connection. Fan-out bindings produce one edge per target.
type Edge struct {
	From      blueprint.Endpoint `json:"from"`
	To        blueprint.Endpoint `json:"to"`
	Binding   int                `json:"binding"`
	Transform string             `json:"transform,omitempty"`
	Condition string             `json:"condition,omitempty"`
}

// ComponentGraph is the immutable set of expanded components and their validated edges
type ComponentGraph struct {
	order      []string
	components map[string]*recipe.ExpandedComponent
	edges      []Edge
}

// Components returns components in blueprint order
func (g *ComponentGraph) Components() []*recipe.ExpandedComponent {
	out := make([]*recipe.ExpandedComponent, len(g.order))
	for i, name := range g.order {
		out[i] = g.components[name]
	}
	return out
}

// Names returns component names in blueprint order
func (g *ComponentGraph) Names() []string {
	return append([]string(nil), g.order...)
}

// Component returns the named component
func (g *ComponentGraph) Component(name string) (*recipe.ExpandedComponent, bool) {
	c, ok := g.components[name]
	return c, ok
}

// Edges returns every edge in binding order
func (g *ComponentGraph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Inbound returns edges arriving at the component
func (g *ComponentGraph) Inbound(name string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To.Component == name {
			out = append(out, e)
		}
	}
	return out
}

// Outbound returns edges leaving the component
func (g *ComponentGraph) Outbound(name string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From.Component == name {
			out = append(out, e)
		}
	}
	return out
}

// Expectation returns the ports an artifact for the component must declare
func (g *ComponentGraph) Expectation(name string) ([]recipe.Port, error) {
	c, ok := g.components[name]
	if !ok {
		return nil, fmt.Errorf("component %q is not in the graph", name)
	}
	return append([]recipe.Port(nil), c.Ports...), nil
}

// Neighbor describes a port on an adjacent component
type Neighbor struct {
	LocalPort  string             `json:"local_port"`
	Remote     blueprint.Endpoint `json:"remote"`
	RemoteKind string             `json:"remote_kind"`
	Schema     *schema.Schema     `json:"schema"`
}

// Neighborhood is the upstream/downstream context of one component
type Neighborhood struct {
	Upstream   []Neighbor `json:"upstream"`
	Downstream []Neighbor `json:"downstream"`
}

// Neighbors summarizes the schemas adjacent components produce and consume
func (g *ComponentGraph) Neighbors(name string) Neighborhood {
	var n Neighborhood
	for _, e := range g.edges {
		switch name {
		case e.To.Component:
			src := g.components[e.From.Component]
			port, _ := src.PortIn(e.From.Port, recipe.Output)
			n.Upstream = append(n.Upstream, Neighbor{LocalPort: e.To.Port, Remote: e.From, RemoteKind: src.Kind, Schema: port.Schema})
		case e.From.Component:
			dst := g.components[e.To.Component]
			port, _ := dst.PortIn(e.To.Port, recipe.Input)
			n.Downstream = append(n.Downstream, Neighbor{LocalPort: e.From.Port, Remote: e.To, RemoteKind: dst.Kind, Schema: port.Schema})
		}
	}
	return n
}

// ComponentSummary is a serializable view of one expanded component
type ComponentSummary struct {
	Name      string           `json:"name"`
	Kind      string           `json:"kind"`
	Primitive recipe.Primitive `json:"primitive"`
	Entry     bool             `json:"entry"`
	Traits    []string         `json:"traits"`
	Ports     []recipe.Port    `json:"ports"`
}

// Summary is a serializable view of the graph
type Summary struct {
	Components []ComponentSummary `json:"components"`
	Edges      []Edge             `json:"edges"`
}

// Summary returns a serializable view of the graph
func (g *ComponentGraph) Summary() Summary {
	s := Summary{Edges: g.Edges()}
	for _, c := range g.Components() {
		s.Components = append(s.Components, ComponentSummary{
			Name:      c.Name,
			Kind:      c.Kind,
			Primitive: c.Primitive,
			Entry:     c.IsEntryPoint(),
			Traits:    c.TraitNames(),
			Ports:     c.Ports,
		})
	}
	return s
}
