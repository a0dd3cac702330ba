package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/domain/registry"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bpforge/internal/report"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

const todoSystem = `
system: {name: todo, schema_version: "1.1.0"}
components:
  - {name: todo_controller, kind: Controller, config: {schema: {id: string, title: string}}}
  - {name: todo_store, kind: Store, config: {schema: {id: string, title: string}}}
bindings:
  - {from: todo_controller.output, to: todo_store.input}
`

const brokenGraph = `
system: {name: broken, schema_version: "1.1.0"}
components:
  - {name: todo_controller, kind: Controller, config: {schema: {title: string}}}
  - {name: todo_store, kind: Store, config: {schema: {id: string, title: string}}}
bindings:
  - {from: todo_controller.output, to: todo_store.input}
`

type fixture struct {
	router  *gin.Engine
	runs    *runs.Manager
	catalog *registry.Manager
	metrics *monitoring.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	metrics := monitoring.NewMetrics()
	p, err := pipeline.New(pool, synthesizer.NewTemplate(), pipeline.DefaultOptions(), pipeline.WithMetrics(metrics))
	require.NoError(t, err)
	store, err := report.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	manager := runs.NewManager(p, store, runs.WithTracker(metrics))
	catalog := registry.NewManager("")

	router := gin.New()
	router.Use(monitoring.Middleware(metrics))
	NewHandlers(manager, store, catalog, metrics, nil, nil).Register(router)
	return &fixture{router: router, runs: manager, catalog: catalog, metrics: metrics}
}

func (f *fixture) do(method, path, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", decode(t, w)["status"])

	w = f.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 9, body["recipes"])
	assert.Equal(t, "none", body["synthesizer"].(map[string]any)["breaker"])
}

func TestCompile(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/compile", todoSystem, "application/yaml")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	graph := decode(t, w)["graph"].(map[string]any)
	assert.Len(t, graph["components"], 2)
	assert.Len(t, graph["edges"], 1)

	w = f.do(http.MethodPost, "/v1/compile", brokenGraph, "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "graph", body["stage"])
	require.Len(t, body["errors"], 1)
	assert.Contains(t, body["errors"].([]any)[0], "schema incompatible")

	w = f.do(http.MethodPost, "/v1/compile", "system: [", "application/yaml")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "parse", decode(t, w)["stage"])
	assert.Equal(t, int64(2), f.metrics.Snapshot().Rejections)

	w = f.do(http.MethodPost, "/v1/compile", "  ", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/compile?format=xml", todoSystem, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/runs?threshold=0.9", todoSystem, "application/yaml")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	runID := body["run_id"].(string)
	assert.Equal(t, "/v1/runs/"+runID, w.Header().Get("Location"))
	assert.Equal(t, 0.9, body["threshold"])
	assert.Equal(t, true, body["summary"].(map[string]any)["overall_passed"])

	w = f.do(http.MethodGet, "/v1/runs/"+runID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "todo", decode(t, w)["system"])

	w = f.do(http.MethodGet, "/v1/runs/"+runID+"?format=text", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "todo")

	w = f.do(http.MethodGet, "/v1/runs/"+runID+"/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["components"])

	w = f.do(http.MethodGet, "/v1/runs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["reports"], 1)

	w = f.do(http.MethodPost, "/v1/runs/"+runID+"/cancel", "", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodDelete, "/v1/runs/"+runID, "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, "/v1/runs/"+runID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodDelete, "/v1/runs/"+runID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := map[string]struct {
		path string
		body string
		code int
	}{
		"threshold out of range": {"/v1/runs?threshold=1.5", todoSystem, http.StatusBadRequest},
		"bad max passes":         {"/v1/runs?max_passes=zero", todoSystem, http.StatusBadRequest},
		"malformed document":     {"/v1/runs?format=yaml", "system: [", http.StatusUnprocessableEntity},
		"inconsistent graph":     {"/v1/runs", brokenGraph, http.StatusUnprocessableEntity},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w := f.do(http.MethodPost, tc.path, tc.body, "")
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}

	w := f.do(http.MethodGet, "/v1/runs/not-a-run", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodGet, "/v1/runs/01ARZ3NDEKTSV4RRFFQ69G5FAV", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodPost, "/v1/runs/01ARZ3NDEKTSV4RRFFQ69G5FAV/cancel", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAsyncRun(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/runs?async=true", todoSystem, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	runID := decode(t, w)["run_id"].(string)

	require.Eventually(t, func() bool {
		w := f.do(http.MethodGet, "/v1/runs/"+runID, "", "")
		return w.Code == http.StatusOK && decode(t, w)["summary"] != nil
	}, 10*time.Second, 20*time.Millisecond)
}

func TestRecipes(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/v1/recipes", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["kinds"], "Store")

	w = f.do(http.MethodGet, "/v1/recipes/Store", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sink", decode(t, w)["primitive"])

	w = f.do(http.MethodGet, "/v1/recipes/Teleporter", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBlueprintCatalog(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/blueprints", todoSystem, "application/yaml")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "todo", decode(t, w)["name"])

	w = f.do(http.MethodPost, "/v1/blueprints", todoSystem, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	renamed := strings.Replace(todoSystem, "todo_store", "todo_db", 2)
	w = f.do(http.MethodPost, "/v1/blueprints", renamed, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = f.do(http.MethodPost, "/v1/blueprints?replace=true", renamed, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, "/v1/blueprints", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["blueprints"], 1)

	w = f.do(http.MethodGet, "/v1/blueprints/todo?raw=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, renamed, w.Body.String())
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))

	w = f.do(http.MethodPost, "/v1/blueprints/todo/runs", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "todo", decode(t, w)["system"])

	w = f.do(http.MethodDelete, "/v1/blueprints/todo", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, "/v1/blueprints/todo", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodPost, "/v1/blueprints/todo/runs", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/runs", todoSystem, "").Code)

	w := f.do(http.MethodGet, "/v1/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["metrics"].(map[string]any)["runs"])
	assert.EqualValues(t, 1, body["summary"].(map[string]any)["pass_rate"])
	assert.EqualValues(t, 1, body["runs"].(map[string]any)["finished"])
	assert.EqualValues(t, 1, body["reports"].(map[string]any)["reports"])
}

func TestFormatFromContentType(t *testing.T) {
	assert.Equal(t, "json", string(formatFromContentType("application/json")))
	assert.Equal(t, "yaml", string(formatFromContentType("text/yaml")))
	assert.Equal(t, "toml", string(formatFromContentType("application/toml")))
	assert.Equal(t, "hcl", string(formatFromContentType("application/hcl")))
	assert.Equal(t, "", string(formatFromContentType("text/plain")))
}
