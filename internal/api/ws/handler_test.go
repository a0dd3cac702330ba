package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
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

func dial(t *testing.T, metrics *monitoring.Metrics, origins []string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	p, err := pipeline.New(pool, synthesizer.NewTemplate(), pipeline.DefaultOptions())
	require.NoError(t, err)
	store, err := report.NewStore("")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/v1/stream", NewHandler(runs.NewManager(p, store), metrics, origins, nil).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "system", hello["type"])
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPingAndUnknown(t *testing.T) {
	conn := dial(t, nil, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", read(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	msg := read(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "unknown message type", msg["message"])

	require.NoError(t, conn.WriteJSON(Message{Type: "run"}))
	assert.Equal(t, "error", read(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(Message{Type: "run", Blueprint: todoSystem, Format: "xml"}))
	assert.Equal(t, "error", read(t, conn)["type"])
}

func TestRunStreamsEventsThenResult(t *testing.T) {
	metrics := monitoring.NewMetrics()
	conn := dial(t, metrics, []string{"*"})

	require.NoError(t, conn.WriteJSON(Message{Type: "run", Blueprint: todoSystem, Format: "yaml", Threshold: 0.8}))

	seen := map[string]int{}
	var complete map[string]any
	for complete == nil {
		msg := read(t, conn)
		switch msg["type"] {
		case "event":
			seen[msg["event"].(map[string]any)["type"].(string)]++
		case "complete":
			complete = msg
		default:
			t.Fatalf("unexpected message %v", msg)
		}
	}

	assert.Equal(t, 1, seen[string(pipeline.EventRunStarted)])
	assert.Equal(t, 1, seen[string(pipeline.EventCompiled)])
	assert.Equal(t, 2, seen[string(pipeline.EventComponentFinished)])
	assert.Equal(t, 1, seen[string(pipeline.EventRunFinished)])
	assert.Equal(t, true, complete["passed"])
	assert.NotContains(t, complete, "error")
	assert.Equal(t, "todo", complete["result"].(map[string]any)["system"])

	assert.EqualValues(t, 1, metrics.Snapshot().ActiveConnections)
}

func TestRunReportsParseFailure(t *testing.T) {
	conn := dial(t, nil, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: "run", Blueprint: "system: [", Format: "yaml"}))
	for {
		msg := read(t, conn)
		if msg["type"] != "complete" {
			continue
		}
		assert.Equal(t, false, msg["passed"])
		assert.Contains(t, msg["error"], "malformed document")
		return
	}
}
