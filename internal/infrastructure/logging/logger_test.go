package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/bpforge/internal/infrastructure/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LogConfig{Level: "debug", Development: true})
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.Development)

	cfg = FromConfig(config.LogConfig{})
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestGinMiddlewareLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("request_id", "req-1"); c.Next() })
	router.Use(logger.GinMiddleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "http", entries[0].ContextMap()["component"])
}

func TestGinMiddlewareRunRoutesAndProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	router := gin.New()
	router.Use(logger.GinMiddleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/v1/runs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/v1/runs/run_01ARZ3NDEKTSV4RRFFQ69G5FAV"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/v1/runs/:id", fields["route"])
	assert.Equal(t, "run_01ARZ3NDEKTSV4RRFFQ69G5FAV", fields["run_id"])
}
