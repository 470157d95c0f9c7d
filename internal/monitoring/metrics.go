package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上传结果标签
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation_error"
	OutcomeForwarding = "forwarding_error"
)

// Metrics 监控指标
//
// 每个实例使用独立的注册表，便于测试中重复创建。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 上传指标
	UploadsTotal   *prometheus.CounterVec
	UploadSize     prometheus.Histogram
	StoredFiles    prometheus.Gauge
	CleanupsTotal  *prometheus.CounterVec
	ExpiredRemoved prometheus.Counter

	// 转发指标
	ForwardDuration *prometheus.HistogramVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerelay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerelay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerelay_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerelay_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerelay_uploads_total",
				Help: "Total number of processed uploads by outcome",
			},
			[]string{"outcome"},
		),

		UploadSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filerelay_upload_size_bytes",
				Help:    "Size of stored uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		StoredFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "filerelay_stored_files",
				Help: "Number of files currently in the upload directory",
			},
		),

		CleanupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerelay_cleanups_total",
				Help: "Transient file removals after failed forwarding",
			},
			[]string{"result"},
		),

		ExpiredRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "filerelay_expired_uploads_removed_total",
				Help: "Uploads removed by the retention janitor",
			},
		),

		ForwardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerelay_forward_duration_seconds",
				Help:    "Duration of outbound webhook calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerelay_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "filerelay_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordUpload 记录一次上传的最终结果
func (m *Metrics) RecordUpload(outcome string) {
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordStored 记录写入临时存储的文件
func (m *Metrics) RecordStored(size int64) {
	m.UploadSize.Observe(float64(size))
	m.StoredFiles.Inc()
}

// RecordCleanup 记录失败后的清理结果
func (m *Metrics) RecordCleanup(err error) {
	if err != nil {
		m.CleanupsTotal.WithLabelValues("failed").Inc()
		m.RecordError("cleanup", "storage")
		return
	}
	m.CleanupsTotal.WithLabelValues("removed").Inc()
	m.StoredFiles.Dec()
}

// RecordExpiredRemoved 记录过期清理删除的文件数
func (m *Metrics) RecordExpiredRemoved(count int) {
	m.ExpiredRemoved.Add(float64(count))
	m.StoredFiles.Sub(float64(count))
}

// RecordForward 记录一次转发调用
func (m *Metrics) RecordForward(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.ForwardDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// SetStoredFiles 设置当前存储文件数
func (m *Metrics) SetStoredFiles(count int) {
	m.StoredFiles.Set(float64(count))
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
