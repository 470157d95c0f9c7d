package domain

import "time"

// TimestampLayout 转发载荷中的时间格式（ISO-8601，UTC，毫秒精度）
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// UploadedFile 表示写入临时存储的上传文件，仅属于当前请求。
type UploadedFile struct {
	OriginalName string // 客户端提交的原始文件名
	StoredPath   string // 临时存储中的完整路径，每次上传唯一
	MimeType     string // MIME 类型
	Size         int64  // 字节数
}

// FileDescriptor 转发载荷中的文件描述
type FileDescriptor struct {
	Filename string `json:"filename"`
	Data     string `json:"data"` // base64 编码的文件内容
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// ForwardPayload 发送到下游 webhook 的载荷，构造后不再修改。
type ForwardPayload struct {
	RecipientEmail string         `json:"recipientEmail"`
	SenderName     string         `json:"senderName"`
	File           FileDescriptor `json:"file"`
	Timestamp      string         `json:"timestamp"`
}

// UploadReceipt 上传并转发成功后的结果
type UploadReceipt struct {
	Filename       string
	RecipientEmail string
	StoredPath     string
}

// FormatTimestamp 按载荷要求格式化时间
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
