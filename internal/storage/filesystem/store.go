package filesystem

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// maxNameAttempts 生成唯一文件名的最大尝试次数
const maxNameAttempts = 5

// ErrOutsideStore 路径不在存储目录内
var ErrOutsideStore = errors.New("path is outside the upload directory")

// Store 上传文件的临时存储
//
// 文件平铺在 basePath 下，命名为 <毫秒时间戳>-<随机数>-<清理后的原始文件名>。
type Store struct {
	basePath      string
	platformUtils *PlatformUtils
	now           func() time.Time
}

// NewStore 创建文件系统存储实例，目录不存在时自动创建
func NewStore(basePath string) (*Store, error) {
	platformUtils := NewPlatformUtils()

	if err := platformUtils.ValidatePath(basePath); err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	normalizedPath := platformUtils.NormalizePath(basePath)

	if err := os.MkdirAll(normalizedPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Store{
		basePath:      normalizedPath,
		platformUtils: platformUtils,
		now:           time.Now,
	}, nil
}

// BasePath 返回存储根目录
func (s *Store) BasePath() string {
	return s.basePath
}

// Save 将内容写入新的唯一文件
//
// 返回落盘路径和写入的字节数。写入失败时删除不完整的文件。
func (s *Store) Save(originalName string, content io.Reader) (string, int64, error) {
	file, path, err := s.createUnique(originalName)
	if err != nil {
		return "", 0, err
	}

	written, err := io.Copy(file, content)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}

	return path, written, nil
}

// Read 读取已存储文件的全部内容
func (s *Store) Read(path string) ([]byte, error) {
	if !s.platformUtils.IsWithin(s.basePath, path) {
		return nil, ErrOutsideStore
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return content, nil
}

// Remove 删除已存储的文件
func (s *Store) Remove(path string) error {
	if !s.platformUtils.IsWithin(s.basePath, path) {
		return ErrOutsideStore
	}
	return os.Remove(path)
}

// CleanupExpired 删除修改时间早于 maxAge 的文件，返回删除数量
func (s *Store) CleanupExpired(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-maxAge)
	count := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err == nil {
				count++
			}
		}
	}

	return count, nil
}

// CheckWritable 检查存储目录可写
func (s *Store) CheckWritable() error {
	f, err := os.CreateTemp(s.basePath, ".probe-*")
	if err != nil {
		return fmt.Errorf("upload directory not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// GetStorageStats 获取存储统计信息
func (s *Store) GetStorageStats() (map[string]interface{}, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	var totalSize int64
	var fileCount int

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		totalSize += info.Size()
		fileCount++
	}

	return map[string]interface{}{
		"total_size_bytes": totalSize,
		"total_size_mb":    float64(totalSize) / 1024 / 1024,
		"file_count":       fileCount,
		"base_path":        s.basePath,
	}, nil
}

// createUnique 以独占方式创建文件，名称冲突时重新生成随机部分
func (s *Store) createUnique(originalName string) (*os.File, string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path := filepath.Join(s.basePath, s.generateFilename(originalName))

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create upload file: %w", err)
		}
	}

	return nil, "", fmt.Errorf("failed to create upload file: name collision after %d attempts", maxNameAttempts)
}

// generateFilename 生成 <毫秒时间戳>-<随机数>-<文件名>
func (s *Store) generateFilename(originalName string) string {
	millis := strconv.FormatInt(s.now().UnixMilli(), 10)
	suffix := strconv.Itoa(rand.IntN(1_000_000_000))
	return millis + "-" + suffix + "-" + s.platformUtils.SanitizeFilename(originalName)
}
