package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"filerelay/backend/internal/domain"
)

// maxErrorBodyBytes 记录下游错误响应时读取的最大字节数
const maxErrorBodyBytes = 4 * 1024

// maxDrainBytes 成功响应最多丢弃读取的字节数
const maxDrainBytes = 1 << 20

// Forwarder 将上传载荷投递到下游自动化 webhook
//
// 每次调用只发起一次请求，不重试。
type Forwarder struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewForwarder 创建转发器
func NewForwarder(webhookURL string, timeout time.Duration, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{
		webhookURL: webhookURL,
		timeout:    timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// WebhookURL 返回下游地址
func (f *Forwarder) WebhookURL() string {
	return f.webhookURL
}

// Forward 以 JSON 发送载荷，2xx 视为成功
//
// 超时、连接失败或非 2xx 响应均返回 *domain.ForwardingError。
func (f *Forwarder) Forward(ctx context.Context, payload *domain.ForwardPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.ForwardingError{Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &domain.ForwardingError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	f.logger.Debug("triggering webhook",
		zap.String("url", f.webhookURL),
		zap.String("recipient_email", payload.RecipientEmail),
		zap.String("sender_name", payload.SenderName),
		zap.String("filename", payload.File.Filename),
		zap.String("mimetype", payload.File.MimeType),
		zap.Int64("size", payload.File.Size),
		zap.String("timestamp", payload.Timestamp),
	)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &domain.ForwardingError{Err: fmt.Errorf("timeout of %dms exceeded", f.timeout.Milliseconds())}
		}
		return &domain.ForwardingError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		f.logger.Warn("webhook rejected payload",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(snippet)),
		)
		return &domain.ForwardingError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("Request failed with status code %d", resp.StatusCode),
		}
	}

	// 读完响应体以复用连接
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return nil
}

// isTimeout 判断错误是否由超时引起
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
