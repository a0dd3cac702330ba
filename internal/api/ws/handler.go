package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 1 << 20
)

// Message is a client request
type Message struct {
	Type      string  `json:"type"`
	Blueprint string  `json:"blueprint,omitempty"`
	Format    string  `json:"format,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	MaxPasses int     `json:"max_passes,omitempty"`
	RunID     string  `json:"run_id,omitempty"`
}

// Handler streams run progress over WebSocket connections
type Handler struct {
	runs     *runs.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. An empty origin list or "*" accepts
// every origin.
func NewHandler(runManager *runs.Manager, metrics *monitoring.Metrics, origins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handler{
		runs:    runManager,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
	}
}

// session serializes writes to one connection; observers call send from
// several goroutines
type session struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (s *session) send(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics != nil {
		if t, ok := data["type"].(string); ok {
			s.metrics.RecordWSMessage("out", t)
		}
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(data)
}

func (s *session) sendError(msg string) error {
	return s.send(map[string]any{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	// runs started on this connection are cancelled when it closes
	ctx, cancel := context.WithCancel(c.Request.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	s := &session{conn: conn, metrics: h.metrics}
	s.send(map[string]any{
		"type":    "system",
		"message": "Connected to bpforge",
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "run":
			req, err := h.request(msg)
			if err != nil {
				s.sendError(err.Error())
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.handleRun(ctx, s, req)
			}()
		case "cancel":
			if err := h.runs.Cancel(id.RunID(msg.RunID)); err != nil {
				s.sendError(err.Error())
			}
		case "ping":
			s.send(map[string]any{"type": "pong"})
		default:
			s.sendError("unknown message type")
		}
	}
}

func (h *Handler) request(msg Message) (runs.Request, error) {
	if msg.Blueprint == "" {
		return runs.Request{}, errors.New("blueprint is required")
	}
	format, err := blueprint.ParseFormat(msg.Format)
	if err != nil {
		return runs.Request{}, err
	}
	req := runs.Request{Content: []byte(msg.Blueprint), Format: format}

	if msg.Threshold != 0 || msg.MaxPasses != 0 {
		opts := h.runs.Pipeline().Options()
		if msg.Threshold != 0 {
			if msg.Threshold < 0 || msg.Threshold > 1 {
				return runs.Request{}, errors.New("threshold must be in (0, 1]")
			}
			opts.Threshold = msg.Threshold
		}
		if msg.MaxPasses > 0 {
			opts.MaxPasses = msg.MaxPasses
		}
		req.Options = &opts
	}
	return req, nil
}

func (h *Handler) handleRun(ctx context.Context, s *session, req runs.Request) {
	res, err := h.runs.Execute(ctx, req, func(e pipeline.Event) {
		s.send(map[string]any{
			"type":  "event",
			"event": e,
		})
	})

	out := map[string]any{
		"type":      "complete",
		"run_id":    res.RunID,
		"passed":    res.Summary.OverallPassed,
		"result":    res,
		"timestamp": time.Now().Unix(),
	}
	if err != nil {
		out["error"] = err.Error()
	}
	if sendErr := s.send(out); sendErr != nil {
		h.logger.Debug("Failed to deliver run result",
			zap.String("run_id", res.RunID.String()),
			zap.Error(sendErr))
	}
}
