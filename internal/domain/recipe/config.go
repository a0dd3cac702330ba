package recipe

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/GriffinCanCode/bpforge/internal/shared/schema"
)

// Config field types
const (
	TypeString     = "string"
	TypeInteger    = "integer"
	TypeNumber     = "number"
	TypeBool       = "bool"
	TypeStringList = "list(string)"
	TypeSchema     = "schema"
)

// Config holds typed, validated component configuration
type Config struct {
	values  map[string]cty.Value
	schemas map[string]*schema.Schema
	plain   map[string]any
}

// Has reports whether the field is set (explicitly or by default)
func (c Config) Has(name string) bool {
	_, ok := c.values[name]
	if !ok {
		_, ok = c.schemas[name]
	}
	return ok
}

// String returns a string field
func (c Config) String(name string) string {
	v, ok := c.values[name]
	if !ok || v.IsNull() || !v.Type().Equals(cty.String) {
		return ""
	}
	return v.AsString()
}

// Int returns an integer field
func (c Config) Int(name string) int64 {
	v, ok := c.values[name]
	if !ok || v.IsNull() || !v.Type().Equals(cty.Number) {
		return 0
	}
	i, _ := v.AsBigFloat().Int64()
	return i
}

// Float returns a number field
func (c Config) Float(name string) float64 {
	v, ok := c.values[name]
	if !ok || v.IsNull() || !v.Type().Equals(cty.Number) {
		return 0
	}
	f, _ := v.AsBigFloat().Float64()
	return f
}

// Bool returns a bool field
func (c Config) Bool(name string) bool {
	v, ok := c.values[name]
	if !ok || v.IsNull() || !v.Type().Equals(cty.Bool) {
		return false
	}
	return v.True()
}

// Strings returns a list(string) field
func (c Config) Strings(name string) []string {
	v, ok := c.values[name]
	if !ok || v.IsNull() || !v.Type().IsListType() {
		return nil
	}
	out := make([]string, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, el := it.Element()
		out = append(out, el.AsString())
	}
	return out
}

// Schema returns a schema field
func (c Config) Schema(name string) *schema.Schema {
	return c.schemas[name]
}

// Plain returns the configuration as plain data, defaults applied
func (c Config) Plain() map[string]any {
	out := make(map[string]any, len(c.plain))
	for k, v := range c.plain {
		out[k] = v
	}
	return out
}

// FieldIssue describes one offending config field
type FieldIssue struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

func (f FieldIssue) String() string {
	return f.Field + ": " + f.Problem
}

// fieldType maps a declared field type to its cty type; schema fields are handled separately
func fieldType(t string) (cty.Type, bool) {
	switch t {
	case TypeString:
		return cty.String, true
	case TypeInteger, TypeNumber:
		return cty.Number, true
	case TypeBool:
		return cty.Bool, true
	case TypeStringList:
		return cty.List(cty.String), true
	}
	return cty.NilType, false
}

// validateConfig types raw config against the field specs, reporting every problem
func validateConfig(fields []FieldSpec, raw map[string]any, resolve schema.Resolver) (Config, []FieldIssue) {
	cfg := Config{
		values:  make(map[string]cty.Value),
		schemas: make(map[string]*schema.Schema),
		plain:   make(map[string]any),
	}
	var issues []FieldIssue

	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true

		value, present := raw[f.Name]
		if !present || value == nil {
			if f.Default == nil {
				if f.Required {
					issues = append(issues, FieldIssue{Field: f.Name, Problem: "required field is missing"})
				}
				continue
			}
			value = f.Default
		}

		if f.Type == TypeSchema {
			s, err := schema.Parse(value, resolve)
			if err != nil {
				issues = append(issues, FieldIssue{Field: f.Name, Problem: err.Error()})
				continue
			}
			cfg.schemas[f.Name] = s
			cfg.plain[f.Name] = value
			continue
		}

		want, ok := fieldType(f.Type)
		if !ok {
			issues = append(issues, FieldIssue{Field: f.Name, Problem: fmt.Sprintf("recipe declares unknown type %q", f.Type)})
			continue
		}
		in, err := toCty(value)
		if err != nil {
			issues = append(issues, FieldIssue{Field: f.Name, Problem: err.Error()})
			continue
		}
		// GetConversion is nil for identical types, so those skip the lookup
		if !in.Type().Equals(want) && convert.GetConversion(in.Type(), want) == nil {
			issues = append(issues, FieldIssue{Field: f.Name, Problem: fmt.Sprintf("expected %s, got %s", f.Type, in.Type().FriendlyName())})
			continue
		}
		out, err := convert.Convert(in, want)
		if err != nil {
			issues = append(issues, FieldIssue{Field: f.Name, Problem: fmt.Sprintf("expected %s: %v", f.Type, err)})
			continue
		}
		if f.Type == TypeInteger && !out.AsBigFloat().IsInt() {
			issues = append(issues, FieldIssue{Field: f.Name, Problem: "expected integer, got fractional number"})
			continue
		}
		cfg.values[f.Name] = out
		cfg.plain[f.Name] = fromCty(out)
	}

	for name := range raw {
		if !declared[name] {
			issues = append(issues, FieldIssue{Field: name, Problem: "unknown field"})
		}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return cfg, issues
}

// toCty converts decoded document data into a cty value
func toCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case uint64:
		return cty.NumberUIntVal(t), nil
	case float64:
		if math.IsNaN(t) {
			return cty.NilVal, fmt.Errorf("NaN is not a valid number")
		}
		return cty.NumberFloatVal(t), nil
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(t))
		for i, e := range t {
			ev, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return toCty(items)
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(t))
		for k, e := range t {
			ev, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = ev
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value of type %T", v)
	}
}

// fromCty converts a validated cty value back to plain data
func fromCty(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return v.AsString()
	case ty.Equals(cty.Bool):
		return v.True()
	case ty.Equals(cty.Number):
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i
			}
		}
		f, _ := bf.Float64()
		return f
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			out = append(out, fromCty(el))
		}
		return out
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, el := it.Element()
			out[k.AsString()] = fromCty(el)
		}
		return out
	}
	return nil
}
