package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"filerelay/backend/internal/domain"
	"filerelay/backend/internal/monitoring"
)

// UploadStore 临时存储接口
type UploadStore interface {
	Save(originalName string, content io.Reader) (string, int64, error)
	Read(path string) ([]byte, error)
	Remove(path string) error
}

// PayloadForwarder 载荷转发接口
type PayloadForwarder interface {
	Forward(ctx context.Context, payload *domain.ForwardPayload) error
}

// UploadInput 一次上传请求的输入
type UploadInput struct {
	Filename       string
	MimeType       string    // 为空时根据内容检测
	Content        io.Reader // nil 表示请求中没有文件
	RecipientEmail string
	SenderName     string
}

// uploadState 在各阶段之间传递的单请求状态
type uploadState struct {
	input   UploadInput
	file    *domain.UploadedFile
	payload *domain.ForwardPayload
}

// uploadStage 处理流水线中的一个阶段
type uploadStage struct {
	name string
	run  func(ctx context.Context, st *uploadState) error
}

// UploadService 上传处理服务
//
// 阶段依次为 store → validate → encode → forward。
// 校验失败不清理已存储文件；其余失败会尽力删除临时文件。
type UploadService struct {
	store             UploadStore
	forwarder         PayloadForwarder
	metrics           *monitoring.Metrics
	logger            *zap.Logger
	defaultSenderName string
	now               func() time.Time
	stages            []uploadStage
}

// NewUploadService 创建上传服务
func NewUploadService(store UploadStore, forwarder PayloadForwarder, metrics *monitoring.Metrics, logger *zap.Logger, defaultSenderName string) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	s := &UploadService{
		store:             store,
		forwarder:         forwarder,
		metrics:           metrics,
		logger:            logger,
		defaultSenderName: defaultSenderName,
		now:               time.Now,
	}
	s.stages = []uploadStage{
		{name: "store", run: s.storeFile},
		{name: "validate", run: s.validate},
		{name: "encode", run: s.encode},
		{name: "forward", run: s.forward},
	}
	return s
}

// Process 执行完整的上传转发流程
//
// 返回的错误为 *domain.ValidationError 或 *domain.ForwardingError。
func (s *UploadService) Process(ctx context.Context, input UploadInput) (*domain.UploadReceipt, error) {
	st := &uploadState{input: input}

	for _, stage := range s.stages {
		if err := stage.run(ctx, st); err != nil {
			return nil, s.fail(stage.name, st, err)
		}
	}

	s.metrics.RecordUpload(monitoring.OutcomeSuccess)
	s.logger.Info("upload forwarded",
		zap.String("filename", st.file.OriginalName),
		zap.String("stored_path", st.file.StoredPath),
		zap.Int64("size", st.file.Size),
		zap.String("recipient_email", st.payload.RecipientEmail),
	)

	return &domain.UploadReceipt{
		Filename:       st.file.OriginalName,
		RecipientEmail: st.payload.RecipientEmail,
		StoredPath:     st.file.StoredPath,
	}, nil
}

// storeFile 将上传内容写入临时存储
func (s *UploadService) storeFile(_ context.Context, st *uploadState) error {
	if st.input.Content == nil {
		return domain.NewValidationError(domain.ErrNoFile)
	}

	path, size, err := s.store.Save(st.input.Filename, st.input.Content)
	if err != nil {
		return err
	}

	st.file = &domain.UploadedFile{
		OriginalName: st.input.Filename,
		StoredPath:   path,
		MimeType:     st.input.MimeType,
		Size:         size,
	}
	s.metrics.RecordStored(size)
	return nil
}

// validate 校验表单字段，只检查 recipientEmail 是否存在
func (s *UploadService) validate(_ context.Context, st *uploadState) error {
	if st.input.RecipientEmail == "" {
		return domain.NewValidationError(domain.ErrRecipientRequired)
	}
	return nil
}

// encode 读回文件并构造转发载荷
func (s *UploadService) encode(_ context.Context, st *uploadState) error {
	content, err := s.store.Read(st.file.StoredPath)
	if err != nil {
		return err
	}

	if st.file.MimeType == "" {
		st.file.MimeType = detectMimeType(content)
	}

	senderName := st.input.SenderName
	if senderName == "" {
		senderName = s.defaultSenderName
	}

	st.payload = &domain.ForwardPayload{
		RecipientEmail: st.input.RecipientEmail,
		SenderName:     senderName,
		File: domain.FileDescriptor{
			Filename: st.file.OriginalName,
			Data:     base64.StdEncoding.EncodeToString(content),
			MimeType: st.file.MimeType,
			Size:     int64(len(content)),
		},
		Timestamp: domain.FormatTimestamp(s.now()),
	}
	return nil
}

// forward 调用下游 webhook
//
// 客户端断开不会中止转发，只受转发器自身的超时限制。
func (s *UploadService) forward(ctx context.Context, st *uploadState) error {
	start := time.Now()
	err := s.forwarder.Forward(context.WithoutCancel(ctx), st.payload)
	s.metrics.RecordForward(time.Since(start), err)
	return err
}

// fail 统一处理阶段失败
func (s *UploadService) fail(stage string, st *uploadState, err error) error {
	if domain.IsValidation(err) {
		s.metrics.RecordUpload(monitoring.OutcomeValidation)
		s.logger.Info("upload rejected",
			zap.String("stage", stage),
			zap.Error(err),
		)
		return err
	}

	var fwdErr *domain.ForwardingError
	if !errors.As(err, &fwdErr) {
		fwdErr = &domain.ForwardingError{Err: fmt.Errorf("%s: %w", stage, err)}
	}

	s.metrics.RecordUpload(monitoring.OutcomeForwarding)
	s.logger.Error("error processing upload",
		zap.String("stage", stage),
		zap.Error(err),
	)

	if st.file != nil {
		s.cleanup(st.file.StoredPath)
	}

	return fwdErr
}

// cleanup 尽力删除临时文件，失败只记录日志
func (s *UploadService) cleanup(path string) {
	err := s.store.Remove(path)
	s.metrics.RecordCleanup(err)
	if err != nil {
		s.logger.Error("error deleting file",
			zap.String("stored_path", path),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("transient file removed", zap.String("stored_path", path))
}

// detectMimeType 根据内容检测 MIME 类型，去掉参数部分
func detectMimeType(content []byte) string {
	detected := mimetype.Detect(content).String()
	if idx := strings.IndexByte(detected, ';'); idx >= 0 {
		return detected[:idx]
	}
	return detected
}
