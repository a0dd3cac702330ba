package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bpforge/internal/report"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// CreateRun runs the posted blueprint. The report is persisted either way;
// ?async=true returns 202 with the run id instead of waiting.
func (h *Handlers) CreateRun(c *gin.Context) {
	body, format, err := readDocument(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	opts, err := h.runOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, runs.Request{Content: body, Format: format, Options: opts})
}

func (h *Handlers) run(c *gin.Context, req runs.Request) {
	ctx := c.Request.Context()

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		runID, err := h.runs.Start(ctx, req, nil)
		if err != nil {
			h.internalError(c, "Failed to start run", err)
			return
		}
		c.Header("Location", "/v1/runs/"+runID.String())
		c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "state": runs.StateRunning})
		return
	}

	res, err := h.runs.Execute(ctx, req, nil)
	switch {
	case err == nil:
		c.Header("Location", "/v1/runs/"+res.RunID.String())
		c.JSON(http.StatusCreated, res)
	case isContextError(err):
		h.logger.Warn("Run interrupted", zap.String("run_id", res.RunID.String()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, res)
	default:
		if stage := pipeline.Stage(err); stage != "" {
			monitoring.MarkRejected(c, stage)
		}
		c.JSON(http.StatusUnprocessableEntity, res)
	}
}

// ListRuns lists live runs and stored reports
func (h *Handlers) ListRuns(c *gin.Context) {
	reports, err := h.store.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":    h.runs.List(),
		"reports": reports,
		"stats":   h.runs.Stats(),
	})
}

func runID(c *gin.Context) (id.RunID, bool) {
	runID, err := id.ParseRunID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return runID, true
}

// GetRun returns the progress of a live run or the report of a finished one.
// ?format=text renders the human-readable report.
func (h *Handlers) GetRun(c *gin.Context) {
	runID, ok := runID(c)
	if !ok {
		return
	}

	if run, ok := h.runs.Get(runID); ok && run.State == runs.StateRunning {
		c.JSON(http.StatusOK, run)
		return
	}

	res, ok := h.runs.Result(runID)
	if !ok {
		var err error
		res, err = h.store.Load(c.Request.Context(), runID)
		if errors.Is(err, report.ErrNotFound) {
			notFound(c, err)
			return
		}
		if err != nil {
			h.internalError(c, "Failed to load report", err)
			return
		}
	}

	if c.Query("format") == "text" {
		var buf bytes.Buffer
		if err := report.Render(&buf, res); err != nil {
			h.internalError(c, "Failed to render report", err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetRunStats returns score and healing statistics for a finished run
func (h *Handlers) GetRunStats(c *gin.Context) {
	runID, ok := runID(c)
	if !ok {
		return
	}
	res, ok := h.runs.Result(runID)
	if !ok {
		var err error
		if res, err = h.store.Load(c.Request.Context(), runID); err != nil {
			notFound(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, report.Summarize(res))
}

// CancelRun stops a live run
func (h *Handlers) CancelRun(c *gin.Context) {
	runID, ok := runID(c)
	if !ok {
		return
	}
	if err := h.runs.Cancel(runID); err != nil {
		if errors.Is(err, runs.ErrUnknownRun) {
			notFound(c, err)
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "cancelled": true})
}

// DeleteRun removes a finished run and its stored report
func (h *Handlers) DeleteRun(c *gin.Context) {
	runID, ok := runID(c)
	if !ok {
		return
	}
	if run, ok := h.runs.Get(runID); ok && run.State == runs.StateRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "run is still running"})
		return
	}
	_ = h.runs.Forget(runID)
	if err := h.store.Delete(runID); err != nil {
		if errors.Is(err, report.ErrNotFound) {
			notFound(c, err)
			return
		}
		h.internalError(c, "Failed to delete report", err)
		return
	}
	c.Status(http.StatusNoContent)
}
