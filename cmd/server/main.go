package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"filerelay/backend/internal/config"
	"filerelay/backend/internal/health"
	"filerelay/backend/internal/logger"
	"filerelay/backend/internal/monitoring"
	"filerelay/backend/internal/service"
	"filerelay/backend/internal/storage/filesystem"
	httptransport "filerelay/backend/internal/transport/http"
)

// main 启动文件上传转发服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting file relay server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化临时存储
	store, err := filesystem.NewStore(cfg.Upload.Dir)
	if err != nil {
		log.Fatal("failed to initialize upload directory", zap.String("path", cfg.Upload.Dir), zap.Error(err))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	if stats, err := store.GetStorageStats(); err == nil {
		if count, ok := stats["file_count"].(int); ok {
			metrics.SetStoredFiles(count)
		}
		log.Info("upload directory ready",
			zap.String("path", store.BasePath()),
			zap.Any("file_count", stats["file_count"]),
		)
	}

	healthChecker := health.NewHealthChecker(store, log)

	// 初始化服务层
	forwarder := service.NewForwarder(cfg.Forwarder.WebhookURL, cfg.Forwarder.Timeout, log)
	uploadService := service.NewUploadService(store, forwarder, metrics, log, cfg.Forwarder.DefaultSenderName)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		UploadService: uploadService,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2*time.Minute + cfg.Forwarder.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("server listening",
			zap.String("address", cfg.Addr()),
			zap.String("webhook_url", forwarder.WebhookURL()),
			zap.Int64("max_file_size", cfg.Upload.MaxFileSize),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期上传文件 goroutine（retention 为 0 时不启用）
	if cfg.Upload.Retention > 0 {
		janitor := service.NewJanitor(store, cfg.Upload.Retention, cfg.Upload.CleanupInterval, metrics, log)
		group.Go(func() error {
			janitor.Run(groupCtx)
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
