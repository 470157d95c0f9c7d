package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 默认值
const (
	DefaultPort              = 3000
	DefaultWebhookURL        = "http://localhost:5678/webhook/file-upload"
	DefaultSenderName        = "File Upload System"
	DefaultMaxFileSize int64 = 50 * 1024 * 1024 // 50MB
	DefaultForwardTimeout    = 30 * time.Second
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 3000
}

// UploadConfig 定义上传文件的临时存储配置
type UploadConfig struct {
	Dir             string        // 临时存储目录，默认 "./uploads"
	MaxFileSize     int64         // 单个文件最大字节数，默认 50MB
	Retention       time.Duration // 过期文件保留时长，0 表示不自动清理
	CleanupInterval time.Duration // 过期文件清理间隔，默认 1 小时
}

// ForwarderConfig 定义下游 webhook 转发配置
type ForwarderConfig struct {
	WebhookURL        string        // 下游自动化 webhook 地址
	Timeout           time.Duration // 单次转发超时，默认 30 秒
	DefaultSenderName string        // senderName 缺省时使用的发送者名称
}

// StaticConfig 定义落地页静态资源配置
type StaticConfig struct {
	Dir string // 静态资源目录，默认 "./public"
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空则只输出到控制台
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Forwarder ForwarderConfig
	Static    StaticConfig
	CORS      CORSConfig
	Log       LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: FILERELAY_，例如 FILERELAY_SERVER_PORT。
// 兼容变量: PORT 对应 server.port，N8N_WEBHOOK_URL 对应 forwarder.webhook_url。
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("filerelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "FILERELAY_SERVER_PORT", "PORT")
	_ = v.BindEnv("forwarder.webhook_url", "FILERELAY_FORWARDER_WEBHOOK_URL", "N8N_WEBHOOK_URL")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.max_file_size", DefaultMaxFileSize)
	v.SetDefault("upload.retention", "0s")
	v.SetDefault("upload.cleanup_interval", "1h")
	v.SetDefault("forwarder.webhook_url", DefaultWebhookURL)
	v.SetDefault("forwarder.timeout", "30s")
	v.SetDefault("forwarder.default_sender_name", DefaultSenderName)
	v.SetDefault("static.dir", "./public")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")

	port := v.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid server.port: %d", port)
	}

	maxFileSize := v.GetInt64("upload.max_file_size")
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("upload.max_file_size must be positive, got %d", maxFileSize)
	}

	retention, err := time.ParseDuration(v.GetString("upload.retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid upload.retention: %w", err)
	}

	cleanupInterval, err := time.ParseDuration(v.GetString("upload.cleanup_interval"))
	if err != nil || cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}

	timeout, err := time.ParseDuration(v.GetString("forwarder.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid forwarder.timeout: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}

	// 保留时长必须长于一次转发，否则清理任务可能删除仍在转发中的文件
	if retention < 0 || (retention > 0 && retention <= timeout) {
		return nil, fmt.Errorf("upload.retention must be 0 or longer than forwarder.timeout (%s), got %s", timeout, retention)
	}

	webhookURL := strings.TrimSpace(v.GetString("forwarder.webhook_url"))
	if webhookURL == "" {
		webhookURL = DefaultWebhookURL
	}
	if err := validateWebhookURL(webhookURL); err != nil {
		return nil, err
	}

	senderName := v.GetString("forwarder.default_sender_name")
	if senderName == "" {
		senderName = DefaultSenderName
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: port,
		},
		Upload: UploadConfig{
			Dir:             v.GetString("upload.dir"),
			MaxFileSize:     maxFileSize,
			Retention:       retention,
			CleanupInterval: cleanupInterval,
		},
		Forwarder: ForwarderConfig{
			WebhookURL:        webhookURL,
			Timeout:           timeout,
			DefaultSenderName: senderName,
		},
		Static: StaticConfig{
			Dir: v.GetString("static.dir"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
	}

	return cfg, nil
}

// Addr 返回 HTTP 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateWebhookURL 校验 webhook 地址为绝对 http(s) URL
func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid forwarder.webhook_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid forwarder.webhook_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid forwarder.webhook_url: missing host")
	}
	return nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
