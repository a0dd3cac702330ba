package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/domain/registry"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/bpforge/internal/report"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	runs    *runs.Manager
	store   *report.Store
	catalog *registry.Manager
	metrics *monitoring.Metrics
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. metrics and breaker may be nil.
func NewHandlers(
	runManager *runs.Manager,
	store *report.Store,
	catalog *registry.Manager,
	metrics *monitoring.Metrics,
	breaker *resilience.Breaker,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		runs:    runManager,
		store:   store,
		catalog: catalog,
		metrics: metrics,
		breaker: breaker,
		logger:  logger,
	}
}

// Register mounts every handler on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	v1.POST("/compile", h.Compile)
	v1.GET("/stats", h.Stats)

	v1.GET("/recipes", h.ListRecipes)
	v1.GET("/recipes/:kind", h.GetRecipe)

	v1.POST("/runs", h.CreateRun)
	v1.GET("/runs", h.ListRuns)
	v1.GET("/runs/:id", h.GetRun)
	v1.GET("/runs/:id/stats", h.GetRunStats)
	v1.POST("/runs/:id/cancel", h.CancelRun)
	v1.DELETE("/runs/:id", h.DeleteRun)

	v1.GET("/blueprints", h.ListBlueprints)
	v1.POST("/blueprints", h.SaveBlueprint)
	v1.GET("/blueprints/:name", h.GetBlueprint)
	v1.DELETE("/blueprints/:name", h.DeleteBlueprint)
	v1.POST("/blueprints/:name/runs", h.RunBlueprint)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "bpforge",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	synth := gin.H{"breaker": "none"}
	if h.breaker != nil {
		synth = gin.H{"breaker": h.breaker.State().String(), "counts": h.breaker.Counts()}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"recipes":     len(h.runs.Pipeline().Recipes().Kinds()),
		"runs":        h.runs.Stats(),
		"reports":     h.store.Stats(),
		"blueprints":  h.catalog.Stats(),
		"synthesizer": synth,
	})
}

// readDocument reads the request body as a blueprint document and resolves its
// format from ?format=, then Content-Type, then content sniffing
func readDocument(c *gin.Context) ([]byte, blueprint.Format, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, blueprint.FormatAuto, fmt.Errorf("failed to read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, blueprint.FormatAuto, errors.New("empty blueprint document")
	}

	if name := c.Query("format"); name != "" {
		format, err := blueprint.ParseFormat(name)
		return body, format, err
	}
	return body, formatFromContentType(c.ContentType()), nil
}

func formatFromContentType(ct string) blueprint.Format {
	switch ct {
	case "application/json":
		return blueprint.FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return blueprint.FormatYAML
	case "application/toml":
		return blueprint.FormatTOML
	case "application/hcl", "text/hcl":
		return blueprint.FormatHCL
	}
	return blueprint.FormatAuto
}

// runOptions applies ?threshold=, ?max_passes=, ?workers= and ?seed= over the
// pipeline defaults. nil means no override was given.
func (h *Handlers) runOptions(c *gin.Context) (*pipeline.Options, error) {
	opts := h.runs.Pipeline().Options()
	changed := false

	if v := c.Query("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, fmt.Errorf("threshold %q must be a number in (0, 1]", v)
		}
		opts.Threshold, changed = f, true
	}
	for name, dst := range map[string]*int{"max_passes": &opts.MaxPasses, "workers": &opts.Workers} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%s %q must be a positive integer", name, v)
		}
		*dst, changed = n, true
	}
	if v := c.Query("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("seed %q must be an unsigned integer", v)
		}
		opts.Seed, changed = n, true
	}

	if !changed {
		return nil, nil
	}
	return &opts, nil
}

// problems flattens collected errors into one message per problem
func problems(err error) []string {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range multi.Unwrap() {
			out = append(out, e.Error())
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{err.Error()}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, err error) {
	c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
}

func unprocessable(c *gin.Context, stage string, err error) {
	monitoring.MarkRejected(c, stage)
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":  fmt.Sprintf("blueprint failed at %s", stage),
		"stage":  stage,
		"errors": problems(err),
	})
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
