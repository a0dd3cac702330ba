package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the structural kind of a schema
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBoolean Kind = "boolean"
	KindRecord  Kind = "record"
	KindList    Kind = "list"
	KindAny     Kind = "any"
)

// IsPrimitive reports whether the kind is a scalar type
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindString, KindInteger, KindFloat, KindBoolean:
		return true
	}
	return false
}

// Schema is a structural type descriptor attached to ports
type Schema struct {
	Name   string  `json:"name,omitempty"`
	Kind   Kind    `json:"kind"`
	Fields []Field `json:"fields,omitempty"`
	Elem   *Schema `json:"elem,omitempty"`
}

// Field is a named member of a record schema
type Field struct {
	Name     string  `json:"name"`
	Schema   *Schema `json:"schema"`
	Required bool    `json:"required"`
}

// Primitive returns an unnamed scalar schema
func Primitive(kind Kind) *Schema {
	return &Schema{Kind: kind}
}

// Record builds a record schema; fields are kept sorted by name
func Record(name string, fields ...Field) *Schema {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Schema{Name: name, Kind: KindRecord, Fields: sorted}
}

// List builds a list schema
func List(elem *Schema) *Schema {
	return &Schema{Kind: KindList, Elem: elem}
}

// Field returns the record field with the given name
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ID returns the schema identifier used in artifacts and integration checks.
// Named schemas use their name; anonymous schemas use a canonical structural form.
func (s *Schema) ID() string {
	if s == nil {
		return string(KindAny)
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Canonical()
}

// Canonical returns the structural representation of the schema, ignoring names
func (s *Schema) Canonical() string {
	if s == nil {
		return string(KindAny)
	}
	switch s.Kind {
	case KindList:
		return "list<" + s.Elem.Canonical() + ">"
	case KindRecord:
		parts := make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			suffix := ""
			if !f.Required {
				suffix = "?"
			}
			parts = append(parts, f.Name+suffix+":"+f.Schema.Canonical())
		}
		return "record{" + strings.Join(parts, ",") + "}"
	default:
		return string(s.Kind)
	}
}

// String implements fmt.Stringer
func (s *Schema) String() string {
	if s != nil && s.Name != "" {
		return fmt.Sprintf("%s%s", s.Name, s.Canonical())
	}
	return s.Canonical()
}

// Clone returns a deep copy of the schema
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Name: s.Name, Kind: s.Kind, Elem: s.Elem.Clone()}
	if len(s.Fields) > 0 {
		out.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = Field{Name: f.Name, Schema: f.Schema.Clone(), Required: f.Required}
		}
	}
	return out
}

// Named returns a copy of the schema carrying the given name
func (s *Schema) Named(name string) *Schema {
	out := s.Clone()
	if out == nil {
		out = Primitive(KindAny)
	}
	out.Name = name
	return out
}
