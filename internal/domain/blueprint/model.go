package blueprint

import (
	"fmt"
	"strings"
)

// Blueprint is the root of a parsed blueprint document
type Blueprint struct {
	System     System          `json:"system"`
	Components []ComponentSpec `json:"components"`
	Bindings   []Binding       `json:"bindings"`
	Hash       string          `json:"hash"`
}

// System holds blueprint metadata
type System struct {
	Name          string  `json:"name"`
	Version       string  `json:"version,omitempty"`
	SchemaVersion Version `json:"schema_version"`
	Description   string  `json:"description,omitempty"`
}

// ComponentSpec is a component as written in the blueprint, before expansion
type ComponentSpec struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Entry       bool           `json:"entry,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// Endpoint addresses a port on a component
type Endpoint struct {
	Component string `json:"component"`
	Port      string `json:"port"`
}

// String renders the endpoint in "component.port" form
func (e Endpoint) String() string {
	return e.Component + "." + e.Port
}

// ParseEndpoint splits "component.port"
func ParseEndpoint(s string) (Endpoint, error) {
	text := strings.TrimSpace(s)
	i := strings.LastIndex(text, ".")
	if i <= 0 || i == len(text)-1 {
		return Endpoint{}, fmt.Errorf("endpoint %q must have the form component.port", s)
	}
	return Endpoint{Component: text[:i], Port: text[i+1:]}, nil
}

// Binding connects one output port to one or more input ports
type Binding struct {
	From      Endpoint   `json:"from"`
	To        []Endpoint `json:"to"`
	Transform string     `json:"transform,omitempty"`
	Condition string     `json:"condition,omitempty"`
}

// Component returns the component spec with the given name
func (b *Blueprint) Component(name string) (ComponentSpec, bool) {
	for _, c := range b.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentSpec{}, false
}

// ComponentNames returns component names in declaration order
func (b *Blueprint) ComponentNames() []string {
	names := make([]string, len(b.Components))
	for i, c := range b.Components {
		names[i] = c.Name
	}
	return names
}
