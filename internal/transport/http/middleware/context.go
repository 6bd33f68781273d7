package middleware

import (
	"github.com/gin-gonic/gin"
	uuid "github.com/google/uuid"
)

const (
	// TraceIDHeader is the HTTP header carrying the trace identifier.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key for the trace identifier.
	TraceIDKey = "trace_id"
	// UsernameKey is the gin context key for the authenticated subject.
	UsernameKey = "username"
	// RoleKey is the gin context key for the authenticated subject's role.
	RoleKey = "role"
)

// EnrichContext propagates an inbound trace identifier or generates one, and
// echoes it back on the response.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID returns the trace identifier bound to the request, if any.
func GetTraceID(c *gin.Context) string {
	if raw, ok := c.Get(TraceIDKey); ok {
		if id, ok := raw.(string); ok {
			return id
		}
	}
	return ""
}

// AuthenticatedUsername returns the subject set by RequireAuth.
func AuthenticatedUsername(c *gin.Context) (string, bool) {
	raw, ok := c.Get(UsernameKey)
	if !ok {
		return "", false
	}
	username, ok := raw.(string)
	return username, ok && username != ""
}
