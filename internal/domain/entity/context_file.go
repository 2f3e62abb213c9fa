package entity

import "strings"

// ContentEncoding 上下文文件内容编码
type ContentEncoding string

const (
	EncodingText   ContentEncoding = "text"
	EncodingBase64 ContentEncoding = "base64"
)

// ContextFile 用户上传的上下文文件
type ContextFile struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Size         int64           `json:"size"`
	Content      string          `json:"content"`
	Encoding     ContentEncoding `json:"encoding,omitempty"`
	LastModified int64           `json:"lastModified,omitempty"`
}

// IsImage 是否为图片文件
func (f *ContextFile) IsImage() bool {
	return strings.HasPrefix(f.Type, "image/")
}

// DataURL 以 data URL 形式返回 base64 内容
func (f *ContextFile) DataURL() string {
	return "data:" + f.Type + ";base64," + f.Content
}

// ContextFileNames 提取文件名列表
func ContextFileNames(files []ContextFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
