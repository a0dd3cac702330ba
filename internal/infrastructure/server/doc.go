// Package server assembles the blueprint service: sandbox pool, synthesizer,
// pipeline, report store, blueprint catalog, run manager and the gin router
// with its middleware chain.
//
// Middleware order: recovery, request id, access log, tracing, metrics, CORS,
// optional rate limit, body limit.
package server
