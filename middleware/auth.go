package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Harry808275/evertrust23-sub000/internal/auth"
	"github.com/Harry808275/evertrust23-sub000/pkg/ctxmanage"
	"github.com/Harry808275/evertrust23-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// Authentication verifies the bearer token and stores the claims on the
// request context for downstream handlers.
func (m *Mid) Authentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)

		authHeader := c.Request.Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			slog.Error("missing or malformed authorization header", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "expected authorization header format: Bearer <token>"})
			return
		}

		claims, err := m.keys.ValidateToken(parts[1])
		if err != nil {
			slog.Error("token validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), auth.ClaimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
