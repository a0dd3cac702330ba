// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output with stack traces
//
// Every subsystem takes a *zap.Logger; Component hands out children tagged
// with the subsystem name so pipeline, healing and synthesizer lines can be
// filtered apart.
//
// Example Usage:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Logging))
//	router.Use(logger.GinMiddleware())
//	p, err := pipeline.New(exec, synth, opts, pipeline.WithLogger(logger.Component("pipeline")))
package logging
