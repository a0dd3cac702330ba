package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/bpforge/internal/infrastructure/config"
)

// Logger is the root service logger. Subsystems receive plain *zap.Logger
// children from Component.
type Logger struct {
	*zap.Logger
}

// Config selects level, encoding and destinations
type Config struct {
	Level       string
	Development bool
	OutputPaths []string
}

// FromConfig maps the logging section of the service configuration
func FromConfig(cfg config.LogConfig) Config {
	out := Config{Level: "info", Development: cfg.Development, OutputPaths: []string{"stdout"}}
	if cfg.Level != "" {
		out.Level = cfg.Level
	}
	return out
}

// New builds a JSON logger, or a colored console logger in development
func New(cfg Config) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.MessageKey = "message"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// run reports carry the detail; sampling would drop per-component lines
	zc.Sampling = nil
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger.Named("bpforge")}, nil
}

// Component returns a child logger tagged with a subsystem name
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.With(zap.String("component", name))
}

// quietRoutes are polled by probes and scrapers and only logged at debug
var quietRoutes = map[string]bool{"/health": true, "/metrics": true}

// GinMiddleware logs each request once it has been served. Run routes carry
// the run id so request lines join up with pipeline logs.
func (l *Logger) GinMiddleware() gin.HandlerFunc {
	log := l.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if rid := c.GetString("request_id"); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}
		if strings.HasPrefix(route, "/v1/runs/:id") {
			fields = append(fields, zap.String("run_id", c.Param("id")))
		}

		switch {
		case len(c.Errors) > 0:
			log.Error("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		case status >= 500:
			log.Error("Request failed", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		case quietRoutes[route]:
			log.Debug("Request served", fields...)
		default:
			log.Info("Request served", fields...)
		}
	}
}
