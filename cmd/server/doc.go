// Package main is the entry point for the bpforge server.
//
// The server compiles component blueprints, synthesizes an artifact per
// component, validates each artifact through the four-tier gate and heals
// failures before reporting.
//
// Configuration:
//   - Defaults for development
//   - Optional TOML file (-config)
//   - Environment variables (12-factor, override the file)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server -config bpforge.toml
//
//	# Development mode (console logs, debug level)
//	./server -dev -port 8080
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
