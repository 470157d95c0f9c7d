package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 请求 ID 响应头
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey 请求 ID 在 gin.Context 中的键
	RequestIDKey = "requestID"
)

// RequestID 为每个请求分配 ID，沿用客户端传入的合法 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
