// Package blueprint provides parsing and structural validation of blueprint documents.
//
// A blueprint is the declarative description of a system: its metadata, an
// ordered list of components (each naming a recipe kind and its config), and
// the bindings that connect component ports. This package turns raw bytes in
// any supported format into a typed Blueprint and reports every problem it
// finds instead of stopping at the first one.
//
// Key Components:
//   - Parser: multi-format decoding (YAML, JSON, TOML, HCL) into a Blueprint
//   - Version: recognized, comparable schema versions
//   - ParseErrors: collect-all typed parse failures
//   - ValidateBindingReferences: pure dangling-reference check
//   - Discover: locate blueprint files under a directory tree
//
// Blueprint Structure:
//   - system: name, version, schema_version, description
//   - components: [{name, kind, entry?, config}]
//   - bindings: [{from: "component.port", to: "component.port" | [...], transform?, condition?}]
//
// Example:
//
//	parser := blueprint.NewParser()
//	bp, err := parser.Parse(content, blueprint.FormatAuto)
package blueprint
