package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key holding the request-scoped logger
const ContextKey = "logger"

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		reqLogger := logger.WithRequestID(requestID)
		Attach(c, reqLogger)

		start := time.Now()
		c.Next()

		// Auth middleware may have replaced the logger with a user-scoped one
		reqLogger = FromGin(c)
		reqLogger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Attach stores l as the request logger in both the gin and the request context
func Attach(c *gin.Context, l *Logger) {
	c.Set(ContextKey, l)
	c.Request = c.Request.WithContext(IntoContext(c.Request.Context(), l))
}

// FromGin returns the request-scoped logger, falling back to the global one
func FromGin(c *gin.Context) *Logger {
	if v, ok := c.Get(ContextKey); ok {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return GetGlobal()
}
