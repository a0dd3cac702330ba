package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/bpforge/internal/infrastructure/tracing"
)

// CORSConfig returns the cross-origin policy for the API. Blueprint clients
// post documents and read run ids and trace headers back. An empty list or a
// lone "*" allows every origin, without credentials.
func CORSConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin",
			"Accept",
			"Authorization",
			"Content-Type",
			"Content-Length",
			"Cache-Control",
			"X-Requested-With",
			HeaderRequestID,
			tracing.HeaderTraceID,
			tracing.HeaderSpanID,
		},
		ExposeHeaders: []string{"Location", HeaderRequestID, tracing.HeaderTraceID, tracing.HeaderSpanID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// CORS applies CORSConfig(origins)
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(CORSConfig(origins))
}
