package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/bpforge/internal/domain/registry"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bpforge/internal/report"
)

// StatsSnapshot is the JSON view of service activity
type StatsSnapshot struct {
	Timestamp  time.Time            `json:"timestamp"`
	Metrics    *monitoring.Snapshot `json:"metrics,omitempty"`
	Runs       runs.Stats           `json:"runs"`
	Reports    report.StoreStats    `json:"reports"`
	Blueprints registry.Stats       `json:"blueprints"`
	Summary    StatsSummary         `json:"summary"`
}

// StatsSummary provides high-level figures
type StatsSummary struct {
	PassRate         float64 `json:"pass_rate"`
	ErrorRate        float64 `json:"error_rate"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// Stats returns the aggregated service statistics
func (h *Handlers) Stats(c *gin.Context) {
	snapshot := StatsSnapshot{
		Timestamp:  time.Now(),
		Runs:       h.runs.Stats(),
		Reports:    h.store.Stats(),
		Blueprints: h.catalog.Stats(),
	}
	if h.metrics != nil {
		m := h.metrics.Snapshot()
		snapshot.Metrics = &m
		snapshot.Summary = summarize(m)
	}
	c.JSON(http.StatusOK, snapshot)
}

func summarize(m monitoring.Snapshot) StatsSummary {
	s := StatsSummary{AverageLatencyMs: m.AvgLatencyMS, UptimeSeconds: m.UptimeSeconds}
	if m.Runs > 0 {
		s.PassRate = float64(m.RunsPassed) / float64(m.Runs)
	}
	if m.TotalRequests > 0 {
		s.ErrorRate = float64(m.TotalErrors) / float64(m.TotalRequests)
	}
	return s
}
