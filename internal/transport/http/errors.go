package httptransport

import (
	"errors"

	"filerelay/backend/internal/domain"
)

// 错误消息映射表（校验错误 -> 客户端提示）
var errorMessages = map[error]string{
	domain.ErrNoFile:            MsgNoFile,
	domain.ErrRecipientRequired: MsgRecipientRequired,
	domain.ErrFileTooLarge:      MsgFileTooLarge,
}

// GetErrorMessage 获取错误对应的客户端提示
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgNoFile            = "No file uploaded"
	MsgRecipientRequired = "Recipient email is required"
	MsgFileTooLarge      = "File too large"
	MsgUploadFailed      = "Failed to process upload"
	MsgUploadSucceeded   = "File uploaded and sent successfully"
	MsgNotFound          = "Not found"
	MsgServerRunning     = "Server is running"
)
