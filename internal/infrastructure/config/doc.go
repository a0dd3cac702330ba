// Package config provides 12-factor configuration management for bpforge.
//
// Values come from three layers, later layers winning: built-in defaults, an
// optional TOML file, and environment variables.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Pipeline: validation threshold, samples, healing bounds, workers, schema versions
//   - Synthesizer: endpoint, timeout, retries, backoff, rate limit, circuit breaker
//   - Sandbox: execution timeout and pool size
//   - Storage: report and blueprint directories
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.LoadFile("bpforge.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("threshold %.2f\n", cfg.Pipeline.Threshold)
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS, MAX_BODY_SIZE
//   - VALIDATION_THRESHOLD, VALIDATION_SAMPLES, VALIDATION_SEED
//   - HEAL_MAX_PASSES, HEAL_SYNTHESIS_ATTEMPTS, PIPELINE_WORKERS, SCHEMA_VERSIONS
//   - SYNTH_ENDPOINT, SYNTH_TOKEN, SYNTH_TIMEOUT, SYNTH_RETRIES
//   - SANDBOX_TIMEOUT, SANDBOX_POOL
//   - REPORT_DIR, BLUEPRINT_DIR
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
