package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "smartride.request_id"
)

// RequestIDMiddleware propagates the caller's X-Request-ID or assigns a new one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id assigned to the request, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
