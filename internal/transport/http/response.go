package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"filerelay/backend/internal/domain"
)

// UploadResponse 上传成功响应
type UploadResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	File           string `json:"file"`
	RecipientEmail string `json:"recipientEmail"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Success 上传成功响应（200）
func Success(c *gin.Context, receipt *domain.UploadReceipt) {
	c.JSON(http.StatusOK, UploadResponse{
		Success:        true,
		Message:        MsgUploadSucceeded,
		File:           receipt.Filename,
		RecipientEmail: receipt.RecipientEmail,
	})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// TooLarge 文件超过大小上限（413）
func TooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: MsgFileTooLarge})
}

// NotFound 资源不存在（404）
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: MsgNotFound})
}

// InternalError 处理失败（500），details 为底层错误描述
func InternalError(c *gin.Context, details string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   MsgUploadFailed,
		Details: details,
	})
}

// writeOutcome 根据处理结果写出响应
func writeOutcome(c *gin.Context, receipt *domain.UploadReceipt, err error) {
	if err == nil {
		Success(c, receipt)
		return
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		if errors.Is(vErr, domain.ErrFileTooLarge) {
			TooLarge(c)
			return
		}
		BadRequest(c, GetErrorMessage(vErr))
		return
	}

	InternalError(c, err.Error())
}
