package httptransport

import (
	"net/http"
	"path/filepath"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filerelay/backend/internal/config"
	"filerelay/backend/internal/health"
	"filerelay/backend/internal/middleware"
	"filerelay/backend/internal/monitoring"
	"filerelay/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	UploadService *service.UploadService
	HealthChecker *health.HealthChecker // 为空时不注册 /health/live 和 /health/ready
	Metrics       *monitoring.Metrics
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	router := gin.New()

	mm := middleware.NewMonitoringMiddleware(metrics, logger)
	router.Use(middleware.RequestID())
	router.Use(mm.PanicRecovery())
	router.Use(mm.HTTPMetrics())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	uploadHandler := NewUploadHandler(deps.UploadService, deps.Config.Upload.MaxFileSize, logger)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": MsgServerRunning})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyHandler()))
	}

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(metrics.HTTPHandler()))

	// 上传
	router.POST("/upload", middleware.UploadBodyLimit(deps.Config.Upload.MaxFileSize), uploadHandler.Upload)

	// 落地页
	staticDir := deps.Config.Static.Dir
	router.StaticFile("/", filepath.Join(staticDir, "index.html"))
	router.NoRoute(staticFallback(staticDir))

	return router
}
