package httptransport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filerelay/backend/internal/domain"
	"filerelay/backend/internal/service"
)

// UploadHandler 处理 POST /upload
type UploadHandler struct {
	uploads     *service.UploadService
	maxFileSize int64
	logger      *zap.Logger
}

// NewUploadHandler 创建上传处理器
func NewUploadHandler(uploads *service.UploadService, maxFileSize int64, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{
		uploads:     uploads,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Upload 接收 multipart 表单，存储文件并转发到 webhook
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.logger.Info("upload rejected: request body too large", zap.Int64("limit", h.maxFileSize))
			writeOutcome(c, nil, domain.NewValidationError(domain.ErrFileTooLarge))
			return
		}
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			h.logger.Debug("multipart parse failed", zap.Error(err))
		}
		writeOutcome(c, nil, domain.NewValidationError(domain.ErrNoFile))
		return
	}

	if fileHeader.Size > h.maxFileSize {
		h.logger.Info("upload rejected: file too large",
			zap.String("filename", fileHeader.Filename),
			zap.Int64("size", fileHeader.Size),
			zap.Int64("limit", h.maxFileSize),
		)
		writeOutcome(c, nil, domain.NewValidationError(domain.ErrFileTooLarge))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeOutcome(c, nil, &domain.ForwardingError{Err: fmt.Errorf("open uploaded file: %w", err)})
		return
	}
	defer file.Close()

	receipt, err := h.uploads.Process(c.Request.Context(), service.UploadInput{
		Filename:       fileHeader.Filename,
		MimeType:       fileHeader.Header.Get("Content-Type"),
		Content:        file,
		RecipientEmail: c.PostForm("recipientEmail"),
		SenderName:     c.PostForm("senderName"),
	})
	writeOutcome(c, receipt, err)
}

// isBodyTooLarge 判断错误是否由 MaxBytesReader 截断引起
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
