package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"filerelay/backend/internal/monitoring"
)

// ExpiringStore 支持按时长清理过期文件的存储
type ExpiringStore interface {
	CleanupExpired(maxAge time.Duration) (int, error)
}

// Janitor 定期删除超过保留时长的临时文件
type Janitor struct {
	store     ExpiringStore
	retention time.Duration
	interval  time.Duration
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewJanitor 创建清理任务
func NewJanitor(store ExpiringStore, retention, interval time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Janitor{
		store:     store,
		retention: retention,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
	}
}

// RunOnce 执行一次清理，返回删除的文件数
func (j *Janitor) RunOnce() int {
	count, err := j.store.CleanupExpired(j.retention)
	if err != nil {
		j.logger.Error("failed to cleanup expired uploads", zap.Error(err))
		j.metrics.RecordError("cleanup_expired", "janitor")
	}
	if count > 0 {
		j.metrics.RecordExpiredRemoved(count)
		j.logger.Info("expired uploads cleaned up", zap.Int("count", count))
	}
	return count
}

// Run 按间隔循环清理，直到 ctx 结束
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("starting expired upload cleanup task",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup task stopped")
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}
