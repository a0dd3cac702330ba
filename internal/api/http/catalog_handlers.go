package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/domain/registry"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
)

// Compile parses and compiles a blueprint without synthesizing anything
func (h *Handlers) Compile(c *gin.Context) {
	body, format, err := readDocument(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	p := h.runs.Pipeline()
	bp, err := p.Parse(body, format)
	if err != nil {
		unprocessable(c, pipeline.StageParse, err)
		return
	}
	compiled, err := p.Compile(bp)
	if err != nil {
		unprocessable(c, pipeline.Stage(err), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"system":         bp.System,
		"blueprint_hash": bp.Hash,
		"graph":          compiled.Graph.Summary(),
	})
}

// ListRecipes lists the component kinds the expander knows
func (h *Handlers) ListRecipes(c *gin.Context) {
	table := h.runs.Pipeline().Recipes()
	c.JSON(http.StatusOK, gin.H{
		"kinds":   table.Kinds(),
		"recipes": table.Recipes(),
	})
}

// GetRecipe returns one recipe
func (h *Handlers) GetRecipe(c *gin.Context) {
	kind := c.Param("kind")
	r, ok := h.runs.Pipeline().Recipes().Lookup(kind)
	if !ok {
		notFound(c, fmt.Errorf("unknown component kind %q", kind))
		return
	}
	c.JSON(http.StatusOK, r)
}

// ListBlueprints lists registered blueprints
func (h *Handlers) ListBlueprints(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"blueprints": h.catalog.List(),
		"stats":      h.catalog.Stats(),
	})
}

// SaveBlueprint registers the posted blueprint under its system name.
// ?replace=true overwrites a different document with the same name.
func (h *Handlers) SaveBlueprint(c *gin.Context) {
	body, format, err := readDocument(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	bp, err := h.runs.Pipeline().Parse(body, format)
	if err != nil {
		unprocessable(c, pipeline.StageParse, err)
		return
	}
	if format == blueprint.FormatAuto {
		format = blueprint.DetectFormat(body)
	}

	replace, _ := strconv.ParseBool(c.Query("replace"))
	entry := &registry.Entry{Name: bp.System.Name, Format: format, Blueprint: bp, Source: body}
	if err := h.catalog.Save(c.Request.Context(), entry, replace); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		badRequest(c, err)
		return
	}

	c.Header("Location", "/v1/blueprints/"+entry.Name)
	c.JSON(http.StatusCreated, entry.Metadata())
}

// GetBlueprint returns a registered blueprint. ?raw=true returns the source document.
func (h *Handlers) GetBlueprint(c *gin.Context) {
	entry, err := h.catalog.Load(c.Param("name"))
	if err != nil {
		notFound(c, err)
		return
	}
	if raw, _ := strconv.ParseBool(c.Query("raw")); raw && len(entry.Source) > 0 {
		c.Data(http.StatusOK, contentTypeFor(entry.Format), entry.Source)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metadata":  entry.Metadata(),
		"blueprint": entry.Blueprint,
	})
}

// DeleteBlueprint unregisters a blueprint
func (h *Handlers) DeleteBlueprint(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("name")); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			notFound(c, err)
			return
		}
		h.internalError(c, "Failed to delete blueprint", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunBlueprint runs a registered blueprint
func (h *Handlers) RunBlueprint(c *gin.Context) {
	entry, err := h.catalog.Load(c.Param("name"))
	if err != nil {
		notFound(c, err)
		return
	}
	opts, err := h.runOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, runs.Request{Blueprint: entry.Blueprint, Options: opts})
}

func contentTypeFor(f blueprint.Format) string {
	switch f {
	case blueprint.FormatJSON:
		return "application/json"
	case blueprint.FormatTOML:
		return "application/toml"
	case blueprint.FormatHCL:
		return "text/plain; charset=utf-8"
	default:
		return "application/yaml"
	}
}
