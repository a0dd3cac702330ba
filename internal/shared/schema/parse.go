package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSchema is returned when a schema declaration cannot be interpreted
var ErrInvalidSchema = errors.New("invalid schema")

// Resolver looks up named schemas (e.g. builtins declared alongside recipes)
type Resolver func(name string) (*Schema, bool)

// Parse interprets a loosely typed schema declaration as found in blueprint config.
//
// Accepted forms:
//
//	"string" | "integer" | "float" | "number" | "boolean" | "any"
//	"string?"                     optional when used as a record field
//	"list<integer>"               list of a primitive or named schema
//	"Todo"                        named schema resolved through the resolver
//	{id: "string", title: "string?"}
//	{type: "record", name: "Todo", fields: {...}}
//	{type: "list", elem: ...}
//	[ "string" ]                  list shorthand
func Parse(raw any, resolve Resolver) (*Schema, error) {
	s, _, err := parse(raw, resolve, "")
	return s, err
}

func parse(raw any, resolve Resolver, path string) (*Schema, bool, error) {
	switch v := raw.(type) {
	case nil:
		return nil, false, fmt.Errorf("%w: %s: empty declaration", ErrInvalidSchema, pathOr(path))
	case string:
		return parseString(v, resolve, path)
	case []any:
		if len(v) != 1 {
			return nil, false, fmt.Errorf("%w: %s: list shorthand takes exactly one element type", ErrInvalidSchema, pathOr(path))
		}
		elem, _, err := parse(v[0], resolve, path+"[]")
		if err != nil {
			return nil, false, err
		}
		return List(elem), true, nil
	case map[string]any:
		return parseMap(v, resolve, path)
	default:
		return nil, false, fmt.Errorf("%w: %s: unsupported declaration %T", ErrInvalidSchema, pathOr(path), raw)
	}
}

func parseString(raw string, resolve Resolver, path string) (*Schema, bool, error) {
	text := strings.TrimSpace(raw)
	required := true
	if strings.HasSuffix(text, "?") {
		required = false
		text = strings.TrimSpace(strings.TrimSuffix(text, "?"))
	}
	if text == "" {
		return nil, false, fmt.Errorf("%w: %s: empty type name", ErrInvalidSchema, pathOr(path))
	}

	if strings.HasPrefix(text, "list<") && strings.HasSuffix(text, ">") {
		elem, _, err := parseString(text[len("list<"):len(text)-1], resolve, path+"[]")
		if err != nil {
			return nil, false, err
		}
		return List(elem), required, nil
	}

	switch text {
	case "string", "str", "text":
		return Primitive(KindString), required, nil
	case "integer", "int":
		return Primitive(KindInteger), required, nil
	case "float", "number", "double":
		return Primitive(KindFloat), required, nil
	case "boolean", "bool":
		return Primitive(KindBoolean), required, nil
	case "any", "object":
		return Primitive(KindAny), required, nil
	}

	if resolve != nil {
		if named, ok := resolve(text); ok {
			return named.Clone(), required, nil
		}
	}
	return nil, false, fmt.Errorf("%w: %s: unknown type %q", ErrInvalidSchema, pathOr(path), text)
}

func parseMap(m map[string]any, resolve Resolver, path string) (*Schema, bool, error) {
	typ, hasType := m["type"].(string)
	if !hasType {
		fields, err := parseFields(m, resolve, path)
		if err != nil {
			return nil, false, err
		}
		return Record("", fields...), true, nil
	}

	required := true
	if opt, ok := m["optional"].(bool); ok && opt {
		required = false
	}
	name, _ := m["name"].(string)

	switch strings.TrimSpace(typ) {
	case "record":
		rawFields, ok := m["fields"].(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s: record requires a fields mapping", ErrInvalidSchema, pathOr(path))
		}
		fields, err := parseFields(rawFields, resolve, path)
		if err != nil {
			return nil, false, err
		}
		return Record(name, fields...), required, nil
	case "list":
		elem, _, err := parse(m["elem"], resolve, path+"[]")
		if err != nil {
			return nil, false, err
		}
		s := List(elem)
		s.Name = name
		return s, required, nil
	default:
		s, _, err := parseString(typ, resolve, path)
		if err != nil {
			return nil, false, err
		}
		if name != "" {
			s = s.Named(name)
		}
		return s, required, nil
	}
}

func parseFields(m map[string]any, resolve Resolver, path string) ([]Field, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	var errs []error
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("%w: %s: empty field name", ErrInvalidSchema, pathOr(path)))
			continue
		}
		s, required, err := parse(m[name], resolve, joinPath(path, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields = append(fields, Field{Name: name, Schema: s, Required: required})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return fields, nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func pathOr(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
