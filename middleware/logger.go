package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Harry808275/evertrust23-sub000/pkg/ctxmanage"
	"github.com/Harry808275/evertrust23-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Logger stamps every request with a trace id and logs start/finish with latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := uuid.NewString()
		ctx := context.WithValue(c.Request.Context(), ctxmanage.TraceIdKey, traceId)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		slog.Info("request started", slog.String(logkey.TraceID, traceId),
			slog.String("method", c.Request.Method), slog.String("path", c.Request.URL.Path))

		c.Next()

		slog.Info("request finished", slog.String(logkey.TraceID, traceId),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()))
	}
}
