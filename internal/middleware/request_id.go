package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key carrying the request id.
const RequestIDKey contextKey = "request_id"

// HeaderRequestID propagates the id to and from upstream proxies.
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware assigns every request a unique id, honoring one
// passed by an upstream, and echoes it in the response header.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(string(RequestIDKey), requestID)
		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// GetRequestID reads the request id from a context.Context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRequestIDFromGin reads the request id from the gin context.
func GetRequestIDFromGin(c *gin.Context) string {
	if id, exists := c.Get(string(RequestIDKey)); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
