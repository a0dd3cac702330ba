package blueprint

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pelletier/go-toml/v2"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Format identifies a blueprint document encoding
type Format string

const (
	FormatAuto Format = ""
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath infers the format from a file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	case ".hcl", ".bp":
		return FormatHCL
	}
	return FormatAuto
}

var (
	hclBlockPattern  = regexp.MustCompile(`(?m)^\s*(system|component|binding)\b[^=\n]*\{\s*$`)
	tomlTablePattern = regexp.MustCompile(`(?m)^\s*\[\[?\s*[A-Za-z_][\w.]*\s*\]\]?\s*$`)
	tomlKeyPattern   = regexp.MustCompile(`(?m)^\s*[A-Za-z_][\w-]*\s*=`)
)

// DetectFormat returns the format Parse would use for content given FormatAuto
func DetectFormat(content []byte) Format {
	return sniff(content)
}

// ParseFormat maps a format name or file extension onto a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "auto":
		return FormatAuto, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "hcl", "bp":
		return FormatHCL, nil
	}
	return FormatAuto, fmt.Errorf("unknown blueprint format %q", name)
}

// sniff picks a format for content without an explicit one
func sniff(content []byte) Format {
	trimmed := bytes.TrimSpace(content)
	first, _, _ := bytes.Cut(trimmed, []byte("\n"))
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		return FormatJSON
	case len(trimmed) > 0 && trimmed[0] == '[':
		// a TOML document may open with a table header such as [system]
		if tomlTablePattern.Match(bytes.TrimSpace(first)) {
			return FormatTOML
		}
		return FormatJSON
	case hclBlockPattern.Match(trimmed):
		return FormatHCL
	case tomlTablePattern.Match(trimmed), tomlKeyPattern.Match(trimmed):
		return FormatTOML
	default:
		return FormatYAML
	}
}

// isText reports whether the content is textual; binary input is never a blueprint
func isText(content []byte) bool {
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// decode turns raw content into a generic document tree
func decode(content []byte, format Format) (doc map[string]any, errs ParseErrors) {
	defer func() {
		if r := recover(); r != nil {
			doc, errs = nil, malformed("decoder panic: %v", r)
		}
	}()

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, malformed("empty document")
	}
	if !isText(content) {
		return nil, malformed("document is not text (detected %s)", mimetype.Detect(content).String())
	}
	if format == FormatAuto {
		format = sniff(content)
	}

	var raw any
	switch format {
	case FormatJSON:
		if err := sonic.Unmarshal(content, &raw); err != nil {
			return nil, malformed("invalid JSON: %v", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, malformed("invalid YAML: %v", err)
		}
	case FormatTOML:
		var m map[string]any
		if err := toml.Unmarshal(content, &m); err != nil {
			return nil, malformed("invalid TOML: %v", err)
		}
		raw = m
	case FormatHCL:
		m, err := decodeHCL(content)
		if err != nil {
			return nil, malformed("invalid HCL: %v", err)
		}
		raw = m
	default:
		return nil, malformed("unsupported format %q", format)
	}

	m, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, malformed("document root must be a mapping, got %s", kindOf(raw))
	}
	return m, nil
}

// normalize converts decoder-specific containers and numbers into
// map[string]any, []any, int64 and float64
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t > 1<<62 {
			return float64(t)
		}
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		if t == float64(int64(t)) && t < 1<<53 && t > -(1<<53) {
			return int64(t)
		}
		return t
	default:
		return v
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "list"
	case string:
		return "string"
	}
	return fmt.Sprintf("%T", v)
}

// ============================================================================
// HCL
// ============================================================================

type hclDocument struct {
	SchemaVersion *string         `hcl:"schema_version,optional"`
	System        *hclSystem      `hcl:"system,block"`
	Components    []*hclComponent `hcl:"component,block"`
	Bindings      []*hclBinding   `hcl:"binding,block"`
	Remain        hcl.Body        `hcl:",remain"`
}

type hclSystem struct {
	Name          *string  `hcl:"name,optional"`
	Version       *string  `hcl:"version,optional"`
	SchemaVersion *string  `hcl:"schema_version,optional"`
	Description   *string  `hcl:"description,optional"`
	Remain        hcl.Body `hcl:",remain"`
}

type hclComponent struct {
	Name        string    `hcl:"name,label"`
	Kind        *string   `hcl:"kind,optional"`
	Entry       *bool     `hcl:"entry,optional"`
	Description *string   `hcl:"description,optional"`
	Config      cty.Value `hcl:"config,optional"`
	Remain      hcl.Body  `hcl:",remain"`
}

type hclBinding struct {
	From      *string   `hcl:"from,optional"`
	To        cty.Value `hcl:"to,optional"`
	Transform *string   `hcl:"transform,optional"`
	Condition *string   `hcl:"condition,optional"`
	Remain    hcl.Body  `hcl:",remain"`
}

func decodeHCL(content []byte) (map[string]any, error) {
	file, diags := hclparse.NewParser().ParseHCL(content, "blueprint.hcl")
	if diags.HasErrors() {
		return nil, diags
	}
	var doc hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, diags
	}

	out := map[string]any{}
	if doc.SchemaVersion != nil {
		out["schema_version"] = *doc.SchemaVersion
	}
	if doc.System != nil {
		sys := map[string]any{}
		setString(sys, "name", doc.System.Name)
		setString(sys, "version", doc.System.Version)
		setString(sys, "schema_version", doc.System.SchemaVersion)
		setString(sys, "description", doc.System.Description)
		out["system"] = sys
	}

	components := make([]any, 0, len(doc.Components))
	for _, c := range doc.Components {
		m := map[string]any{"name": c.Name}
		setString(m, "kind", c.Kind)
		setString(m, "description", c.Description)
		if c.Entry != nil {
			m["entry"] = *c.Entry
		}
		cfg, err := ctyToGo(c.Config)
		if err != nil {
			return nil, fmt.Errorf("component %q config: %w", c.Name, err)
		}
		if cfg != nil {
			m["config"] = cfg
		}
		components = append(components, m)
	}
	out["components"] = components

	bindings := make([]any, 0, len(doc.Bindings))
	for i, b := range doc.Bindings {
		m := map[string]any{}
		setString(m, "from", b.From)
		setString(m, "transform", b.Transform)
		setString(m, "condition", b.Condition)
		to, err := ctyToGo(b.To)
		if err != nil {
			return nil, fmt.Errorf("binding %d target: %w", i, err)
		}
		if to != nil {
			m["to"] = to
		}
		bindings = append(bindings, m)
	}
	out["bindings"] = bindings
	return out, nil
}

func setString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

// ctyToGo converts a decoded HCL value to plain Go data through its JSON form
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known at parse time")
	}
	data, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
