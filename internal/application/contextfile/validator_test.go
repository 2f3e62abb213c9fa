package contextfile

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openspec-api/internal/config"
	"openspec-api/internal/domain/entity"
	apperrors "openspec-api/pkg/errors"
)

// 1x1 PNG
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func newValidator() *Validator {
	return NewValidator(config.ContextFilesConfig{MaxFiles: 3, MaxFileSize: 1024})
}

func TestValidateNormalizesTextFile(t *testing.T) {
	files, err := newValidator().Validate([]entity.ContextFile{
		{Name: "../../etc/notes.md", Content: "# Notes"},
	})
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "notes.md", f.Name)
	assert.Equal(t, "text/markdown", f.Type)
	assert.Equal(t, int64(7), f.Size)
	assert.Equal(t, entity.EncodingText, f.Encoding)
	assert.NotEmpty(t, f.ID)
}

func TestValidateDecodesBase64Text(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte(`{"a":1}`))
	files, err := newValidator().Validate([]entity.ContextFile{
		{Name: "C:\\work\\data.json", Content: content, Encoding: entity.EncodingBase64, Size: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "data.json", files[0].Name)
	assert.Equal(t, "application/json", files[0].Type)
	assert.Equal(t, `{"a":1}`, files[0].Content)
	assert.Equal(t, entity.EncodingText, files[0].Encoding)
}

func TestValidateImage(t *testing.T) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
	files, err := newValidator().Validate([]entity.ContextFile{
		{Name: "shot.png", Type: "image/png", Content: dataURL},
	})
	require.NoError(t, err)
	assert.True(t, files[0].IsImage())
	assert.Equal(t, entity.EncodingBase64, files[0].Encoding)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngPixel), files[0].Content)
}

func TestValidateRejections(t *testing.T) {
	v := newValidator()
	cases := []struct {
		name  string
		files []entity.ContextFile
		code  apperrors.ErrorCode
		msg   string
	}{
		{
			name:  "too many",
			files: make([]entity.ContextFile, 4),
			code:  apperrors.CodeInvalidRequest,
			msg:   "too many",
		},
		{
			name:  "too large",
			files: []entity.ContextFile{{Name: "big.txt", Content: strings.Repeat("a", 1025)}},
			code:  apperrors.CodePayloadTooLarge,
			msg:   "big.txt",
		},
		{
			name:  "size mismatch",
			files: []entity.ContextFile{{Name: "a.txt", Content: "abc", Size: 10}},
			code:  apperrors.CodeInvalidRequest,
			msg:   "declared size",
		},
		{
			name:  "disallowed type",
			files: []entity.ContextFile{{Name: "a.exe", Type: "application/x-msdownload", Content: "MZ"}},
			code:  apperrors.CodeInvalidRequest,
			msg:   "not allowed",
		},
		{
			name:  "fake image",
			files: []entity.ContextFile{{Name: "x.png", Type: "image/png", Content: base64.StdEncoding.EncodeToString([]byte("hello"))}},
			code:  apperrors.CodeInvalidRequest,
			msg:   "does not match",
		},
		{
			name:  "bad base64",
			files: []entity.ContextFile{{Name: "x.png", Type: "image/png", Content: "!!!"}},
			code:  apperrors.CodeInvalidRequest,
			msg:   "base64",
		},
		{
			name:  "empty name",
			files: []entity.ContextFile{{Name: "  ", Content: "x"}},
			code:  apperrors.CodeInvalidRequest,
			msg:   "invalid file name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(tc.files)
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Contains(t, appErr.Message, tc.msg)
		})
	}
}

func TestAllowedWildcard(t *testing.T) {
	v := NewValidator(config.ContextFilesConfig{AllowedTypes: []string{"text/*"}})
	assert.True(t, v.allowed("text/x-go"))
	assert.False(t, v.allowed("application/json"))
	assert.False(t, v.allowed("textual/plain"))
}

func TestFromUpload(t *testing.T) {
	v := newValidator()

	f, err := v.FromUpload("main.go", "", 42, strings.NewReader("package main"))
	require.NoError(t, err)
	assert.Equal(t, "text/x-go", f.Type)
	assert.Equal(t, entity.EncodingText, f.Encoding)
	assert.Equal(t, int64(42), f.LastModified)

	img, err := v.FromUpload("pixel", "", 0, bytes.NewReader(pngPixel))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.Type)
	assert.Equal(t, entity.EncodingBase64, img.Encoding)

	_, err = v.FromUpload("big.txt", "text/plain", 0, strings.NewReader(strings.Repeat("x", 2048)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePayloadTooLarge))
}

func TestSanitizeNameTruncatesOnRuneBoundary(t *testing.T) {
	// "设" 占 3 字节，255 字节处恰好落在字符中间
	name := "a" + strings.Repeat("设", 100) + ".md"
	got, err := SanitizeName(name)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 255)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "a"+strings.Repeat("设", 84), got)

	got, err = SanitizeName(strings.Repeat("b", 300))
	require.NoError(t, err)
	assert.Len(t, got, 255)
}
