package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens one span per request, named after the matched route
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span, ctx := tracer.StartSpan(Extract(c.Request.Context(), c.Request.Header), c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		status := c.Writer.Status()
		span.SetTag("http.path", c.Request.URL.Path)
		span.SetTag("http.status", strconv.Itoa(status))
		if run := c.Param("id"); run != "" {
			span.SetTag("run_id", run)
		}
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
