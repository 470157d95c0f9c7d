package domain

import "errors"

var (
	// ErrNoFile 请求中缺少 file 字段
	ErrNoFile = errors.New("no file uploaded")
	// ErrRecipientRequired recipientEmail 缺失或为空
	ErrRecipientRequired = errors.New("recipient email is required")
	// ErrFileTooLarge 文件超过大小上限
	ErrFileTooLarge = errors.New("file too large")
)

// ValidationError 请求字段校验失败，映射为 400。
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError 包装校验错误
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// ForwardingError 转发或转发前处理失败，映射为 500。
//
// StatusCode 仅在下游返回非 2xx 时设置。
type ForwardingError struct {
	StatusCode int
	Err        error
}

func (e *ForwardingError) Error() string { return e.Err.Error() }

func (e *ForwardingError) Unwrap() error { return e.Err }

// IsValidation 判断错误是否为校验错误
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
