package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
)

const todoYAML = `
system: {name: todo, schema_version: "1.1.0", description: tasks}
components:
  - {name: todo_controller, kind: Controller, config: {schema: {id: string, title: string}}}
  - {name: todo_store, kind: Store, config: {schema: {id: string, title: string}}}
bindings:
  - {from: todo_controller.output, to: todo_store.input}
`

func entry(t *testing.T, doc string) *Entry {
	t.Helper()
	bp, err := blueprint.NewParser().Parse([]byte(doc), blueprint.FormatYAML)
	require.NoError(t, err)
	return &Entry{Format: blueprint.FormatYAML, Blueprint: bp, Source: []byte(doc)}
}

func TestSaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	ctx := context.Background()

	e := entry(t, todoYAML)
	require.NoError(t, m.Save(ctx, e, false))
	assert.Equal(t, "todo", e.Name)
	assert.Equal(t, filepath.Join(dir, "todo.yaml"), e.Path)
	assert.FileExists(t, e.Path)

	got, err := m.Load("todo")
	require.NoError(t, err)
	assert.Equal(t, e.Blueprint.Hash, got.Blueprint.Hash)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, "tasks", list[0].Description)
	assert.Equal(t, 2, list[0].Components)

	st := m.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 2, st.Components)
	assert.NotNil(t, st.LastUpdated)

	require.NoError(t, m.Delete(ctx, "todo"))
	assert.NoFileExists(t, e.Path)
	_, err = m.Load("todo")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "todo"), ErrNotFound)
}

func TestSaveConflicts(t *testing.T) {
	m := NewManager("")
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, entry(t, todoYAML), false))

	// identical document is a no-op
	require.NoError(t, m.Save(ctx, entry(t, todoYAML), false))

	changed := entry(t, todoYAML+"  - {from: todo_controller.output, to: todo_store.input}\n")
	assert.ErrorIs(t, m.Save(ctx, changed, false), ErrConflict)
	require.NoError(t, m.Save(ctx, changed, true))

	got, err := m.Load("todo")
	require.NoError(t, err)
	assert.Len(t, got.Blueprint.Bindings, 2)
}

func TestSaveRejectsUnsafeNames(t *testing.T) {
	e := entry(t, todoYAML)
	e.Name = "../escape"
	assert.Error(t, NewManager(t.TempDir()).Save(context.Background(), e, false))
}

func TestSeeder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "todo.yaml"), []byte(todoYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "broken.json"), []byte(`{"system": `), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))

	m := NewManager(root)
	res, err := NewSeeder(m, blueprint.NewParser(), root, nil).Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "nested/broken.json")

	e, err := m.Load("todo")
	require.NoError(t, err)
	assert.True(t, e.Seeded)

	// deleting a seeded entry leaves the source file alone
	require.NoError(t, m.Delete(context.Background(), "todo"))
	assert.FileExists(t, filepath.Join(root, "todo.yaml"))

	res, err = NewSeeder(m, blueprint.NewParser(), filepath.Join(root, "missing"), nil).Seed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Loaded)
}
