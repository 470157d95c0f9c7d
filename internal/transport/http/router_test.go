package httptransport

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filerelay/backend/internal/config"
	"filerelay/backend/internal/domain"
	"filerelay/backend/internal/health"
	"filerelay/backend/internal/monitoring"
	"filerelay/backend/internal/service"
	"filerelay/backend/internal/storage/filesystem"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// webhookRecorder 记录下游收到的载荷
type webhookRecorder struct {
	mu       sync.Mutex
	status   int
	payloads []domain.ForwardPayload
}

func (w *webhookRecorder) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var payload domain.ForwardPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	w.mu.Lock()
	w.payloads = append(w.payloads, payload)
	status := w.status
	w.mu.Unlock()

	rw.WriteHeader(status)
}

func (w *webhookRecorder) received() []domain.ForwardPayload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.ForwardPayload(nil), w.payloads...)
}

type testServer struct {
	router    *gin.Engine
	webhook   *webhookRecorder
	uploadDir string
	staticDir string
}

func newTestServer(t *testing.T, webhookStatus int, maxFileSize int64) *testServer {
	t.Helper()

	recorder := &webhookRecorder{status: webhookStatus}
	webhook := httptest.NewServer(recorder)
	t.Cleanup(webhook.Close)

	cfg := &config.Config{
		Upload: config.UploadConfig{
			Dir:         t.TempDir(),
			MaxFileSize: maxFileSize,
		},
		Forwarder: config.ForwarderConfig{
			WebhookURL:        webhook.URL,
			Timeout:           5 * time.Second,
			DefaultSenderName: config.DefaultSenderName,
		},
		Static: config.StaticConfig{Dir: t.TempDir()},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	store, err := filesystem.NewStore(cfg.Upload.Dir)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	forwarder := service.NewForwarder(cfg.Forwarder.WebhookURL, cfg.Forwarder.Timeout, nil)
	uploads := service.NewUploadService(store, forwarder, metrics, nil, cfg.Forwarder.DefaultSenderName)

	router := NewRouter(RouterDependencies{
		Config:        cfg,
		UploadService: uploads,
		HealthChecker: health.NewHealthChecker(store, nil),
		Metrics:       metrics,
	})

	return &testServer{
		router:    router,
		webhook:   recorder,
		uploadDir: cfg.Upload.Dir,
		staticDir: cfg.Static.Dir,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// uploadPart multipart 中的文件部分
type uploadPart struct {
	filename    string
	contentType string
	content     []byte
}

func newUploadRequest(t *testing.T, fields map[string]string, part *uploadPart) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}

	if part != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, part.filename))
		header.Set("Content-Type", part.contentType)
		w, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write(part.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"status": "Server is running"}, decodeBody(t, rec))

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "filerelay_http_requests_total")
}

func TestUpload(t *testing.T) {
	t.Run("成功上传并转发", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com"},
			&uploadPart{filename: "report.txt", contentType: "text/plain", content: []byte("hello world")},
		)
		before := time.Now().UTC().Add(-time.Second)
		rec := srv.do(req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, map[string]interface{}{
			"success":        true,
			"message":        "File uploaded and sent successfully",
			"file":           "report.txt",
			"recipientEmail": "alice@example.com",
		}, decodeBody(t, rec))

		payloads := srv.webhook.received()
		require.Len(t, payloads, 1)
		p := payloads[0]
		assert.Equal(t, "alice@example.com", p.RecipientEmail)
		assert.Equal(t, "File Upload System", p.SenderName)
		assert.Equal(t, "report.txt", p.File.Filename)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello world")), p.File.Data)
		assert.Equal(t, "text/plain", p.File.MimeType)
		assert.Equal(t, int64(11), p.File.Size)

		ts, err := time.Parse(domain.TimestampLayout, p.Timestamp)
		require.NoError(t, err)
		assert.True(t, ts.After(before))

		// 成功路径保留临时文件
		files := srv.storedFiles(t)
		require.Len(t, files, 1)
		assert.Regexp(t, `^\d+-\d+-report\.txt$`, files[0])
	})

	t.Run("使用提交的 senderName", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com", "senderName": "Bob"},
			&uploadPart{filename: "a.txt", contentType: "text/plain", content: []byte("hi")},
		)
		rec := srv.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		payloads := srv.webhook.received()
		require.Len(t, payloads, 1)
		assert.Equal(t, "Bob", payloads[0].SenderName)
	})

	t.Run("缺少文件返回 400", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		req := newUploadRequest(t, map[string]string{"recipientEmail": "alice@example.com"}, nil)
		rec := srv.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, map[string]interface{}{"error": "No file uploaded"}, decodeBody(t, rec))
		assert.Empty(t, srv.webhook.received())
		assert.Empty(t, srv.storedFiles(t))
	})

	t.Run("非 multipart 请求返回 400", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{"recipientEmail":"a@b.c"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := srv.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file uploaded", decodeBody(t, rec)["error"])
	})

	t.Run("缺少收件人返回 400 且文件保留", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		req := newUploadRequest(t, nil,
			&uploadPart{filename: "a.txt", contentType: "text/plain", content: []byte("hi")},
		)
		rec := srv.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, map[string]interface{}{"error": "Recipient email is required"}, decodeBody(t, rec))
		assert.Empty(t, srv.webhook.received())
		assert.Len(t, srv.storedFiles(t), 1)
	})

	t.Run("下游失败返回 500 并删除文件", func(t *testing.T) {
		srv := newTestServer(t, http.StatusInternalServerError, config.DefaultMaxFileSize)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com"},
			&uploadPart{filename: "a.txt", contentType: "text/plain", content: []byte("hi")},
		)
		rec := srv.do(req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]interface{}{
			"error":   "Failed to process upload",
			"details": "Request failed with status code 500",
		}, decodeBody(t, rec))
		assert.Len(t, srv.webhook.received(), 1)
		assert.Empty(t, srv.storedFiles(t))
	})

	t.Run("同名文件两次上传生成两个文件", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		for i := 0; i < 2; i++ {
			req := newUploadRequest(t,
				map[string]string{"recipientEmail": "alice@example.com"},
				&uploadPart{filename: "same.txt", contentType: "text/plain", content: []byte("same")},
			)
			rec := srv.do(req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		assert.Len(t, srv.storedFiles(t), 2)
		assert.Len(t, srv.webhook.received(), 2)
	})
}

func TestUploadSizeLimit(t *testing.T) {
	const limit = 1024

	t.Run("等于上限时接受", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, limit)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com"},
			&uploadPart{filename: "edge.bin", contentType: "application/octet-stream", content: bytes.Repeat([]byte{'a'}, limit)},
		)
		rec := srv.do(req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		payloads := srv.webhook.received()
		require.Len(t, payloads, 1)
		assert.Equal(t, int64(limit), payloads[0].File.Size)
	})

	t.Run("超过上限一个字节时拒绝", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, limit)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com"},
			&uploadPart{filename: "big.bin", contentType: "application/octet-stream", content: bytes.Repeat([]byte{'a'}, limit+1)},
		)
		rec := srv.do(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "File too large", decodeBody(t, rec)["error"])
		assert.Empty(t, srv.webhook.received())
		assert.Empty(t, srv.storedFiles(t))
	})

	t.Run("请求体超过限制时直接拒绝", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, limit)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com"},
			&uploadPart{filename: "huge.bin", contentType: "application/octet-stream", content: bytes.Repeat([]byte{'a'}, 2*1024*1024)},
		)
		rec := srv.do(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Empty(t, srv.storedFiles(t))
	})

	t.Run("默认上限 50MB 的文件被接受", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping large upload in short mode")
		}
		srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)

		req := newUploadRequest(t,
			map[string]string{"recipientEmail": "alice@example.com"},
			&uploadPart{filename: "max.bin", contentType: "application/octet-stream", content: make([]byte, config.DefaultMaxFileSize)},
		)
		rec := srv.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		payloads := srv.webhook.received()
		require.Len(t, payloads, 1)
		assert.Equal(t, config.DefaultMaxFileSize, payloads[0].File.Size)
	})
}

func TestStaticFiles(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, config.DefaultMaxFileSize)
	require.NoError(t, os.WriteFile(filepath.Join(srv.staticDir, "index.html"), []byte("<h1>Upload</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srv.staticDir, "style.css"), []byte("body{}"), 0644))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Upload</h1>")

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeBody(t, rec)["error"])
}
