// Package contextfile 负责上下文文件的校验与规范化
package contextfile

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"openspec-api/internal/config"
	"openspec-api/internal/domain/entity"
	apperrors "openspec-api/pkg/errors"
)

// DefaultAllowedTypes 未配置白名单时允许的类型；"text/*" 匹配整个主类型
var DefaultAllowedTypes = []string{
	"text/*",
	"application/json",
	"application/xml",
	"application/yaml",
	"application/x-yaml",
	"application/toml",
	"application/javascript",
	"application/typescript",
	"application/x-sh",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
}

// extensionTypes 系统 mime 表缺失的常见源码/文档扩展名
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".toml":     "application/toml",
	".ts":       "application/typescript",
	".tsx":      "application/typescript",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".sql":      "text/x-sql",
	".mmd":      "text/plain",
	".txt":      "text/plain",
}

const genericType = "application/octet-stream"

// Validator 上下文文件校验器
type Validator struct {
	maxFiles     int
	maxFileSize  int64
	allowedTypes []string
}

// NewValidator 创建校验器
func NewValidator(cfg config.ContextFilesConfig) *Validator {
	v := &Validator{
		maxFiles:     cfg.MaxFiles,
		maxFileSize:  cfg.MaxFileSize,
		allowedTypes: cfg.AllowedTypes,
	}
	if v.maxFiles <= 0 {
		v.maxFiles = 10
	}
	if v.maxFileSize <= 0 {
		v.maxFileSize = 10 << 20
	}
	if len(v.allowedTypes) == 0 {
		v.allowedTypes = DefaultAllowedTypes
	}
	return v
}

// MaxFileSize 单文件大小上限
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// Validate 校验并返回规范化后的文件列表，错误信息包含文件名
func (v *Validator) Validate(files []entity.ContextFile) ([]entity.ContextFile, error) {
	if len(files) > v.maxFiles {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest,
			"too many context files: %d (max %d)", len(files), v.maxFiles)
	}

	out := make([]entity.ContextFile, 0, len(files))
	for i := range files {
		f, err := v.normalize(files[i])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (v *Validator) normalize(f entity.ContextFile) (entity.ContextFile, error) {
	name, err := SanitizeName(f.Name)
	if err != nil {
		return f, err
	}
	f.Name = name

	declared := baseType(f.Type)
	if f.Encoding == "" {
		if strings.HasPrefix(declared, "image/") {
			f.Encoding = entity.EncodingBase64
		} else {
			f.Encoding = entity.EncodingText
		}
	}

	var data []byte
	switch f.Encoding {
	case entity.EncodingText:
		data = []byte(f.Content)
	case entity.EncodingBase64:
		data, err = decodeBase64(f.Content)
		if err != nil {
			return f, apperrors.Newf(apperrors.CodeInvalidRequest, "file %q: content is not valid base64", name)
		}
	default:
		return f, apperrors.Newf(apperrors.CodeInvalidRequest, "file %q: unknown encoding %q", name, f.Encoding)
	}

	size := int64(len(data))
	if size > v.maxFileSize {
		return f, apperrors.Newf(apperrors.CodePayloadTooLarge,
			"file %q is %d bytes (max %d)", name, size, v.maxFileSize)
	}
	if f.Size > 0 && f.Size != size {
		return f, apperrors.Newf(apperrors.CodeInvalidRequest,
			"file %q: declared size %d does not match content size %d", name, f.Size, size)
	}
	f.Size = size

	f.Type = resolveType(declared, name, data)
	if !v.allowed(f.Type) {
		return f, apperrors.Newf(apperrors.CodeInvalidRequest, "file %q: type %s is not allowed", name, f.Type)
	}
	if f.IsImage() {
		if f.Encoding != entity.EncodingBase64 {
			return f, apperrors.Newf(apperrors.CodeInvalidRequest, "file %q: images must be base64 encoded", name)
		}
		if sniffed := mimetype.Detect(data); !strings.HasPrefix(sniffed.String(), "image/") {
			return f, apperrors.Newf(apperrors.CodeInvalidRequest,
				"file %q: content (%s) does not match declared type %s", name, sniffed.String(), f.Type)
		}
		f.Content = base64.StdEncoding.EncodeToString(data)
	} else if f.Encoding == entity.EncodingBase64 {
		// 文本文件统一以明文内联到提示词
		if !utf8.Valid(data) {
			return f, apperrors.Newf(apperrors.CodeInvalidRequest, "file %q: text content is not valid UTF-8", name)
		}
		f.Content = string(data)
		f.Encoding = entity.EncodingText
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return f, nil
}

// FromUpload 读取上传文件并生成规范化记录
func (v *Validator) FromUpload(name, declaredType string, lastModified int64, r io.Reader) (entity.ContextFile, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.maxFileSize+1))
	if err != nil {
		return entity.ContextFile{}, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "failed to read upload")
	}
	if int64(len(data)) > v.maxFileSize {
		return entity.ContextFile{}, apperrors.Newf(apperrors.CodePayloadTooLarge,
			"file %q exceeds %d bytes", name, v.maxFileSize)
	}

	f := entity.ContextFile{
		Name:         name,
		Type:         declaredType,
		LastModified: lastModified,
	}
	detected := resolveType(baseType(declaredType), name, data)
	if strings.HasPrefix(detected, "image/") || !utf8.Valid(data) {
		f.Type = detected
		f.Encoding = entity.EncodingBase64
		f.Content = base64.StdEncoding.EncodeToString(data)
	} else {
		f.Encoding = entity.EncodingText
		f.Content = string(data)
	}

	files, err := v.Validate([]entity.ContextFile{f})
	if err != nil {
		return entity.ContextFile{}, err
	}
	return files[0], nil
}

func (v *Validator) allowed(t string) bool {
	for _, pattern := range v.allowedTypes {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == t {
			return true
		}
		if strings.HasSuffix(pattern, "/*") && strings.HasPrefix(t, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}

// maxNameBytes 常见文件系统的文件名上限
const maxNameBytes = 255

// SanitizeName 去除路径成分与控制字符
func SanitizeName(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	n = path.Base(strings.TrimSpace(n))
	n = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, n)
	n = strings.TrimSpace(n)
	if n == "" || n == "." || n == ".." || n == "/" {
		return "", apperrors.Newf(apperrors.CodeInvalidRequest, "invalid file name %q", name)
	}
	if len(n) > maxNameBytes {
		// 按字节截断，但不切断多字节字符
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(n[cut]) {
			cut--
		}
		n = n[:cut]
	}
	return n, nil
}

// resolveType 依次采用声明类型、扩展名、内容嗅探
func resolveType(declared, name string, data []byte) string {
	if declared != "" && declared != genericType {
		return declared
	}
	ext := strings.ToLower(path.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := baseType(mime.TypeByExtension(ext)); t != "" {
		return t
	}
	return baseType(mimetype.Detect(data).String())
}

func baseType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// decodeBase64 兼容带 data URL 前缀与无填充的内容
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		s = s[i+1:]
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
