package filesystem

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameLength 落盘文件名中原始文件名部分的最大长度
const maxFilenameLength = 200

// PlatformUtils 平台兼容性工具
type PlatformUtils struct{}

// NewPlatformUtils 创建平台工具实例
func NewPlatformUtils() *PlatformUtils {
	return &PlatformUtils{}
}

// SanitizeFilename 清理文件名，确保跨平台兼容
func (p *PlatformUtils) SanitizeFilename(filename string) string {
	// 1. 移除路径部分（同时处理 Windows 客户端提交的反斜杠路径）
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)

	// 2. 替换不允许的字符
	for _, char := range p.getInvalidChars() {
		filename = strings.ReplaceAll(filename, char, "_")
	}

	// 3. 移除控制字符
	filename = p.removeControlChars(filename)

	// 4. 移除前后空格和点
	filename = strings.Trim(filename, " .")

	// 5. 限制长度
	filename = p.limitLength(filename, maxFilenameLength)

	if filename == "" {
		filename = "unnamed"
	}

	return filename
}

// getInvalidChars 获取当前平台不允许的字符
func (p *PlatformUtils) getInvalidChars() []string {
	switch runtime.GOOS {
	case "darwin", "linux":
		return []string{"/", "\x00"}
	default:
		return []string{"<", ">", ":", "\"", "|", "?", "*", "\\", "/", "\x00"}
	}
}

// removeControlChars 移除控制字符
func (p *PlatformUtils) removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// limitLength 限制字符串长度，保留扩展名
func (p *PlatformUtils) limitLength(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	ext := filepath.Ext(s)
	nameWithoutExt := strings.TrimSuffix(s, ext)

	availableLen := maxLen - len(ext)
	if availableLen <= 0 {
		return truncateUTF8(s, maxLen)
	}

	return truncateUTF8(nameWithoutExt, availableLen) + ext
}

// truncateUTF8 截断到不超过 n 字节，不拆分多字节字符
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ValidatePath 验证路径是否安全
func (p *PlatformUtils) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	if len(path) > 2000 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	return nil
}

// IsCaseSensitive 检查当前文件系统是否大小写敏感
func (p *PlatformUtils) IsCaseSensitive() bool {
	return runtime.GOOS != "windows"
}

// NormalizePath 标准化路径为绝对路径
func (p *PlatformUtils) NormalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	cleanPath := filepath.Clean(absPath)

	if !p.IsCaseSensitive() {
		cleanPath = strings.ToLower(cleanPath)
	}

	return cleanPath
}

// IsWithin 判断 path 是否位于 base 目录之内
func (p *PlatformUtils) IsWithin(base, path string) bool {
	rel, err := filepath.Rel(base, p.NormalizePath(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
