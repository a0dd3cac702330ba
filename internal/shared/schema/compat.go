package schema

import "fmt"

// Compatible reports whether values produced under src are acceptable to dst.
//
// Records are compared structurally: every field dst requires must be present
// in src with a compatible type. Optional dst fields are checked only when src
// carries them. Primitives must match exactly, except integer widens to float.
// The returned reason is empty when the schemas are compatible.
func Compatible(src, dst *Schema) (bool, string) {
	return compatible(src, dst, "")
}

func compatible(src, dst *Schema, path string) (bool, string) {
	if dst == nil || dst.Kind == KindAny {
		return true, ""
	}
	if src == nil || src.Kind == KindAny {
		return false, fmt.Sprintf("%s: source is untyped, destination requires %s", pathOr(path), dst.Canonical())
	}

	switch dst.Kind {
	case KindRecord:
		if src.Kind != KindRecord {
			return false, fmt.Sprintf("%s: expected record, got %s", pathOr(path), src.Kind)
		}
		for _, want := range dst.Fields {
			have, ok := src.Field(want.Name)
			if !ok {
				if want.Required {
					return false, fmt.Sprintf("%s: missing required field", joinPath(path, want.Name))
				}
				continue
			}
			if want.Required && !have.Required {
				return false, fmt.Sprintf("%s: field is optional in source but required by destination", joinPath(path, want.Name))
			}
			if ok, reason := compatible(have.Schema, want.Schema, joinPath(path, want.Name)); !ok {
				return false, reason
			}
		}
		return true, ""
	case KindList:
		if src.Kind != KindList {
			return false, fmt.Sprintf("%s: expected list, got %s", pathOr(path), src.Kind)
		}
		return compatible(src.Elem, dst.Elem, path+"[]")
	case KindFloat:
		if src.Kind == KindFloat || src.Kind == KindInteger {
			return true, ""
		}
	default:
		if src.Kind == dst.Kind {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s: expected %s, got %s", pathOr(path), dst.Kind, src.Kind)
}
