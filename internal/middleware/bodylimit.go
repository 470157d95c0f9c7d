package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MultipartOverhead multipart 边界和表单字段预留的额外字节
const MultipartOverhead = 1 * 1024 * 1024 // 1MB

// BodySizeLimit 限制请求体大小的中间件
//
// Content-Length 已超限的请求直接返回 413；其余请求的读取被 MaxBytesReader 截断。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "File too large",
				"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
				"limit":   maxBytes,
				"size":    c.Request.ContentLength,
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()
	}
}

// UploadBodyLimit 上传端点的请求体限制：单文件上限加 multipart 开销
func UploadBodyLimit(maxFileSize int64) gin.HandlerFunc {
	return BodySizeLimit(maxFileSize + MultipartOverhead)
}
