/*
Package monitoring provides Prometheus metrics for the compilation server.

Every Metrics value owns a private registry, so tests and multiple servers
in one process never collide on metric names.

# Metrics

  - HTTP requests (count, latency, request and response size) by route
  - Pipeline runs, per-component outcomes and durations
  - Validation verdicts and their composite scores
  - Self-healing state transitions
  - Synthesizer calls by outcome
  - Sandbox executions
  - WebSocket connections and messages

Metrics satisfies pipeline.Metrics and synthesizer.Recorder, so one value is
handed to both.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	synth = synthesizer.Instrument(synth, metrics)
	exec = monitoring.InstrumentExecutor(pool, metrics)
	p, err := pipeline.New(exec, synth, opts, pipeline.WithMetrics(metrics))
*/
package monitoring
