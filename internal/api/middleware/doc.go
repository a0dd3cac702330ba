// Package middleware provides the HTTP middleware stack for the compilation API.
//
// Middleware stack includes:
//   - CORS: cross-origin resource sharing with configurable origins
//   - RateLimit: per-IP token bucket rate limiting with idle eviction
//   - RequestID: UUID correlation IDs echoed in X-Request-ID
//   - BodyLimit: request body size cap for blueprint uploads
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
