package schema

import (
	"fmt"
	"math"
)

// Conforms checks that a decoded runtime value (as produced by a JSON decoder
// or the sandbox export) satisfies the schema. It returns nil on success.
func Conforms(s *Schema, value any) error {
	return conforms(s, value, "")
}

func conforms(s *Schema, value any, path string) error {
	if s == nil || s.Kind == KindAny {
		return nil
	}
	switch s.Kind {
	case KindString:
		if _, ok := value.(string); ok {
			return nil
		}
	case KindBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	case KindInteger:
		if f, ok := asNumber(value); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return nil
		}
	case KindFloat:
		if f, ok := asNumber(value); ok && !math.IsNaN(f) {
			return nil
		}
	case KindList:
		items, ok := value.([]any)
		if !ok {
			break
		}
		for i, item := range items {
			if err := conforms(s.Elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case KindRecord:
		m, ok := value.(map[string]any)
		if !ok {
			break
		}
		for _, f := range s.Fields {
			v, present := m[f.Name]
			if !present || v == nil {
				if f.Required {
					return fmt.Errorf("%s: missing required field", joinPath(path, f.Name))
				}
				continue
			}
			if err := conforms(f.Schema, v, joinPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%s: expected %s, got %s", pathOr(path), s.Kind, describe(value))
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "record"
	}
	if _, ok := asNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
