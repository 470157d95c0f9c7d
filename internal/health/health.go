package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// maxGoroutines 存活检查的协程数量上限
const maxGoroutines = 10000

// WritableChecker 可检查写权限的存储
type WritableChecker interface {
	CheckWritable() error
}

// HealthChecker 健康检查器
//
// 与固定返回的 /health 不同，这里的探针反映上传目录的实际状态。
type HealthChecker struct {
	health healthcheck.Handler
	store  WritableChecker
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store WritableChecker, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}
	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))

	hc.health.AddReadinessCheck("upload-dir", func() error {
		if err := hc.store.CheckWritable(); err != nil {
			hc.logger.Warn("upload directory readiness check failed", zap.Error(err))
			return err
		}
		return nil
	})
}

// LiveHandler 存活探针
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪探针
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行健康检查并返回各项结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.CheckWritable(); err != nil {
		results["upload_dir"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["upload_dir"] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}
