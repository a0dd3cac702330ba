package graph

import (
	"fmt"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

// Build assembles expanded components and bindings into a ComponentGraph.
// Every problem is collected; a non-nil error is always GraphErrors.
func Build(components []*recipe.ExpandedComponent, bindings []blueprint.Binding) (*ComponentGraph, error) {
	g := &ComponentGraph{components: make(map[string]*recipe.ExpandedComponent, len(components))}
	var errs GraphErrors

	for _, c := range components {
		if _, dup := g.components[c.Name]; dup {
			errs = append(errs, &GraphError{Kind: ErrDuplicateComponent, Component: c.Name})
			continue
		}
		g.components[c.Name] = c
		g.order = append(g.order, c.Name)
	}

	for _, name := range g.order {
		if err := checkCardinality(g.components[name]); err != nil {
			errs = append(errs, err)
		}
	}

	// resolved holds every structurally valid edge, including schema-incompatible ones,
	// so fan-in and reachability are judged on the intended topology
	var resolved []Edge
	for i, b := range bindings {
		for _, to := range b.To {
			from := b.From
			edge := Edge{From: from, To: to, Binding: i, Transform: b.Transform, Condition: b.Condition}

			src, srcErr := g.resolve(from, recipe.Output)
			dst, dstErr := g.resolve(to, recipe.Input)
			if srcErr != nil || dstErr != nil {
				for _, err := range []*GraphError{srcErr, dstErr} {
					if err != nil {
						err.From, err.To = &from, &to
						errs = append(errs, err)
					}
				}
				continue
			}
			resolved = append(resolved, edge)

			if ok, reason := schema.Compatible(src.Schema, dst.Schema); !ok {
				errs = append(errs, &GraphError{
					Kind:   ErrSchemaIncompatible,
					From:   &from,
					To:     &to,
					Detail: fmt.Sprintf("%s is not compatible with %s: %s", src.Schema.ID(), dst.Schema.ID(), reason),
				})
				continue
			}
			g.edges = append(g.edges, edge)
		}
	}

	errs = append(errs, g.checkFanIn(resolved)...)
	errs = append(errs, g.checkReachability(resolved)...)

	if len(errs) > 0 {
		return nil, errs
	}
	return g, nil
}

func (g *ComponentGraph) resolve(ep blueprint.Endpoint, want recipe.Direction) (recipe.Port, *GraphError) {
	c, ok := g.components[ep.Component]
	if !ok {
		return recipe.Port{}, &GraphError{Kind: ErrDanglingReference, Detail: fmt.Sprintf("component %q does not exist", ep.Component)}
	}
	if p, ok := c.PortIn(ep.Port, want); ok {
		return p, nil
	}
	p, ok := c.Port(ep.Port)
	if !ok {
		return recipe.Port{}, &GraphError{Kind: ErrDanglingReference, Detail: fmt.Sprintf("component %q (%s) has no port %q", ep.Component, c.Kind, ep.Port)}
	}
	return recipe.Port{}, &GraphError{Kind: ErrDirectionMismatch, Detail: fmt.Sprintf("%s is an %s port, binding needs an %s port", ep, p.Direction, want)}
}

// checkCardinality enforces primitive shape on data-class ports; trait ports do not count
func checkCardinality(c *recipe.ExpandedComponent) *GraphError {
	in, out := len(c.DataInputs()), len(c.DataOutputs())

	var ok bool
	var want string
	switch c.Primitive {
	case recipe.Source:
		ok, want = in == 0 && out >= 1, "0 inputs and at least 1 output"
	case recipe.Sink:
		ok, want = in >= 1 && out == 0, "at least 1 input and 0 outputs"
	case recipe.Transformer:
		ok, want = in == 1 && out == 1, "exactly 1 input and 1 output"
	case recipe.Splitter:
		ok, want = in == 1 && out >= 2, "exactly 1 input and at least 2 outputs"
	case recipe.Merger:
		ok, want = in >= 2 && out == 1, "at least 2 inputs and exactly 1 output"
	default:
		return &GraphError{Kind: ErrPrimitiveCardinalityViolation, Component: c.Name, Detail: fmt.Sprintf("unknown primitive %q", c.Primitive)}
	}
	if ok {
		return nil
	}
	return &GraphError{
		Kind:      ErrPrimitiveCardinalityViolation,
		Component: c.Name,
		Detail:    fmt.Sprintf("%s requires %s data ports, has %d inputs and %d outputs", c.Primitive, want, in, out),
	}
}

func (g *ComponentGraph) checkFanIn(edges []Edge) GraphErrors {
	inbound := make(map[blueprint.Endpoint][]Edge)
	for _, e := range edges {
		inbound[e.To] = append(inbound[e.To], e)
	}

	var errs GraphErrors
	for _, name := range g.order {
		c := g.components[name]
		for _, p := range c.Inputs() {
			ep := blueprint.Endpoint{Component: name, Port: p.Name}
			if n := len(inbound[ep]); n > 1 && !p.FanIn {
				errs = append(errs, &GraphError{
					Kind:   ErrFanInViolation,
					To:     &ep,
					Detail: fmt.Sprintf("%d bindings target a port that is not fan-in capable", n),
				})
			}
		}
	}
	return errs
}

func (g *ComponentGraph) checkReachability(edges []Edge) GraphErrors {
	adjacent := make(map[string][]string)
	for _, e := range edges {
		adjacent[e.From.Component] = append(adjacent[e.From.Component], e.To.Component)
	}

	visited := make(map[string]bool, len(g.order))
	var queue []string
	for _, name := range g.order {
		if g.components[name].IsEntryPoint() {
			visited[name] = true
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adjacent[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var errs GraphErrors
	for _, name := range g.order {
		if !visited[name] {
			errs = append(errs, &GraphError{
				Kind:      ErrUnreachable,
				Component: name,
				Detail:    "not reachable from any Source or entry-point component",
			})
		}
	}
	return errs
}
