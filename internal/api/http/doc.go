// Package http provides the REST handlers of the blueprint service.
//
// Endpoints:
//   - Health: / and /health
//   - Compile: POST /v1/compile
//   - Runs: /v1/runs, /v1/runs/:id, /v1/runs/:id/stats, /v1/runs/:id/cancel
//   - Recipes: /v1/recipes, /v1/recipes/:kind
//   - Blueprints: /v1/blueprints, /v1/blueprints/:name, /v1/blueprints/:name/runs
//   - Stats: /v1/stats
//
// Blueprint documents are posted as the raw request body. The format comes
// from ?format=, then the Content-Type header, then content sniffing.
// Parse, expansion and graph failures answer 422 with every collected error.
//
// Example Usage:
//
//	handlers := http.NewHandlers(runManager, store, catalog, metrics, breaker, logger)
//	router.POST("/v1/runs", handlers.CreateRun)
//	router.GET("/v1/runs/:id", handlers.GetRun)
package http
