package api

import (
	"strings"
	"time"

	"backend/internal/logger"
	middlewarepkg "backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs every HTTP request with latency, status and the
// request id assigned upstream.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", middlewarepkg.GetRequestIDFromGin(c)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		logger.Info("HTTP Request", fields...)
	}
}

// CORS handles cross-origin requests. The allow lists come from the
// CORS_ALLOW_ORIGINS / _HEADERS / _METHODS environment lists, read
// once at construction. An empty origins list allows any origin but
// then, per the fetch spec, without credentials.
func CORS() gin.HandlerFunc {
	allowedOrigins := getEnvList("CORS_ALLOW_ORIGINS")

	allowHeaders := strings.Join(defaultIfEmpty(
		getEnvList("CORS_ALLOW_HEADERS"),
		[]string{
			"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization",
			"Accept", "Origin", "Cache-Control", "X-Requested-With",
		},
	), ", ")
	allowMethods := strings.Join(defaultIfEmpty(
		getEnvList("CORS_ALLOW_METHODS"),
		[]string{"POST", "OPTIONS", "GET", "PUT", "DELETE", "PATCH"},
	), ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()

		switch {
		case len(allowedOrigins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && stringInSlice(origin, allowedOrigins):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Vary", "Origin")
		}

		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
