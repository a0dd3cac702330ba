package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RejectionStageKey is the gin context key under which handlers record the
// stage that rejected a blueprint
const RejectionStageKey = "monitoring.rejection_stage"

// MarkRejected records that the request's blueprint was rejected at stage
func MarkRejected(c *gin.Context, stage string) {
	c.Set(RejectionStageKey, stage)
}

// Middleware records request metrics labelled by route template, and counts
// blueprints that handlers marked as rejected
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			max(c.Request.ContentLength, 0),
			int64(max(c.Writer.Size(), 0)),
		)
		if stage := c.GetString(RejectionStageKey); stage != "" {
			metrics.RecordRejection(stage)
		}
	}
}
