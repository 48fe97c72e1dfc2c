package ctxmanage

import (
	"github.com/gin-gonic/gin"
)

type Key string

const TraceIdKey Key = "X-Trace-ID"

// GetTraceIdOfRequest returns the trace id set by the logging middleware,
// or "unknown" if the middleware did not run for this request.
func GetTraceIdOfRequest(c *gin.Context) string {
	ctx := c.Request.Context()
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		traceId = "unknown"
	}
	return traceId
}
