package artifact

import (
	"strings"

	"github.com/bytedance/sonic"
)

const indent = "  "

// Quote renders s as a JavaScript string literal
func Quote(s string) string {
	out, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return `""`
	}
	return out
}

// ConstructorMethod renders a constructor that wires the base class
func ConstructorMethod() string {
	return indent + "constructor(config) {\n" + indent + indent + "super(config);\n" + indent + "}\n"
}

// PortsMethod renders the canonical ports() declaration for the contract
func PortsMethod(c Contract) string {
	var b strings.Builder
	b.WriteString(indent + "ports() {\n")
	b.WriteString(indent + indent + "return {\n")
	writeGroup(&b, "inputs", c.Inputs, ",")
	writeGroup(&b, "outputs", c.Outputs, "")
	b.WriteString(indent + indent + "};\n")
	b.WriteString(indent + "}\n")
	return b.String()
}

func writeGroup(b *strings.Builder, key string, ports []PortSpec, trailer string) {
	pad := strings.Repeat(indent, 3)
	if len(ports) == 0 {
		b.WriteString(pad + key + ": {}" + trailer + "\n")
		return
	}
	b.WriteString(pad + key + ": {\n")
	for i, p := range ports {
		sep := ","
		if i == len(ports)-1 {
			sep = ""
		}
		b.WriteString(pad + indent + Quote(p.Accessor) + ": " + Quote(p.SchemaID) + sep + "\n")
	}
	b.WriteString(pad + "}" + trailer + "\n")
}

// PortsBody renders only the statements inside ports()
func PortsBody(c Contract) string {
	m := PortsMethod(c)
	open := strings.IndexByte(m, '{')
	closing := strings.LastIndexByte(m, '}')
	return m[open+1 : closing]
}

// EntryMethod renders a default implementation of process or generate
func EntryMethod(name string) string {
	switch name {
	case MethodGenerate:
		return indent + "generate() {\n" + indent + indent + "return this.passthrough();\n" + indent + "}\n"
	case MethodPorts, MethodConstructor:
		return ""
	default:
		return indent + name + "(port, msg) {\n" + indent + indent + "return this.passthrough(port, msg);\n" + indent + "}\n"
	}
}

// Skeleton renders a minimal artifact that satisfies the contract
func Skeleton(c Contract) string {
	methods := []string{ConstructorMethod(), PortsMethod(c)}
	for _, name := range c.EntryPoints() {
		if m := EntryMethod(name); m != "" {
			methods = append(methods, m)
		}
	}
	return "class " + c.ClassName + " extends " + string(c.Base) + " {\n" + strings.Join(methods, "\n") + "}\n"
}
