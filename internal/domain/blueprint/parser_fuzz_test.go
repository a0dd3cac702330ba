package blueprint

import (
	"errors"
	"testing"
)

// FuzzParse checks that arbitrary input never panics and only yields ParseErrors
func FuzzParse(f *testing.F) {
	f.Add([]byte(todoJSON))
	f.Add([]byte(todoTOML))
	f.Add([]byte(todoHCL))
	f.Add([]byte("system: {name: x, schema_version: 1.1.0}\ncomponents: [{name: a}]"))
	f.Add([]byte("bindings: [{from: ., to: [1, 2]}]"))
	f.Add([]byte{0xff, 0xfe, 0x00})
	f.Add([]byte(""))

	parser := NewParser()
	f.Fuzz(func(t *testing.T, data []byte) {
		bp, err := parser.Parse(data, FormatAuto)
		if err == nil {
			if bp == nil || bp.Hash == "" {
				t.Fatalf("successful parse without hash")
			}
			return
		}
		var perrs ParseErrors
		if !errors.As(err, &perrs) || len(perrs) == 0 {
			t.Fatalf("unexpected error type %T: %v", err, err)
		}
	})
}
