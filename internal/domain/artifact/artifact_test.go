package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/recipe"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
)

func storeContract(t *testing.T) Contract {
	t.Helper()
	table, err := recipe.DefaultTable()
	require.NoError(t, err)
	ec, err := recipe.NewExpander(table).Expand(blueprint.ComponentSpec{
		Name:   "todo_store",
		Kind:   "Store",
		Config: map[string]any{"schema": map[string]any{"id": "string", "title": "string"}},
	})
	require.NoError(t, err)
	return ContractFor(ec, nil)
}

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"todo_store":     "TodoStore",
		"api-gateway":    "ApiGateway",
		"router":         "Router",
		"2fa_check":      "C2faCheck",
		"already.Pascal": "AlreadyPascal",
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassName(in), in)
	}
}

func TestContractFor(t *testing.T) {
	c := storeContract(t)

	assert.Equal(t, "TodoStore", c.ClassName)
	assert.Equal(t, recipe.Sink, c.Base)
	assert.Equal(t, []string{"in_input", "in_txn"}, c.Accessors())
	assert.Empty(t, c.Outputs)
	assert.Equal(t, []string{MethodPorts, MethodProcess}, c.EntryPoints())
	assert.True(t, c.HasTrait(recipe.TraitPersistence))

	decl := c.Declaration()
	assert.Equal(t, "record{id:string,title:string}", decl.Inputs["in_input"])
	assert.Equal(t, "TxnSignal", decl.Inputs["in_txn"])

	p, ok := c.PortByName("txn", recipe.Input)
	require.True(t, ok)
	assert.Equal(t, recipe.ClassControl, p.Class)
}

func TestSkeletonSatisfiesContract(t *testing.T) {
	c := storeContract(t)
	src := Skeleton(c)
	require.NoError(t, sandbox.Check("skeleton.js", src))

	s := Scan(src)
	class, ok := s.Class("TodoStore")
	require.True(t, ok)
	assert.Equal(t, "Sink", class.Base)

	var names []string
	for _, m := range s.Methods(class) {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"constructor", "ports", "process"}, names)
	assert.Contains(t, src, `"in_txn": "TxnSignal"`)
}

func TestScanSkipsStringsAndComments(t *testing.T) {
	src := `// class Fake extends Sink {
const banner = "class Other {";
/* } */
class Real extends Transformer {
  process(port, msg) {
    if (msg) {
      return this.emit('out_output', "}" + msg);
    }
  }

  helper(a, b) { return a + b; }
}
`
	s := Scan(src)
	classes := s.Classes()
	require.Len(t, classes, 1)
	assert.Equal(t, "Real", classes[0].Name)
	assert.Equal(t, 4, s.Line(classes[0].Header.Start))

	methods := s.Methods(classes[0])
	require.Len(t, methods, 2)
	assert.Equal(t, "process", methods[0].Name)
	assert.Equal(t, []string{"port", "msg"}, methods[0].Params)
	assert.Contains(t, src[methods[0].Body.Start:methods[0].Body.End], `"}" + msg`)
	assert.Equal(t, "helper", methods[1].Name)
}

func TestApplyEdits(t *testing.T) {
	text := "abc def ghi"
	out := Apply(text,
		Edit{Span: Span{8, 11}, Text: "GHI"},
		Edit{Span: Span{0, 3}, Text: "ABC"},
	)
	assert.Equal(t, "ABC def GHI", out)
	assert.Equal(t, text, Apply(text))
}
