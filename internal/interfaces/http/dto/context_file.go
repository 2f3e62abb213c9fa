package dto

import "openspec-api/internal/domain/entity"

// ContextFile 上下文文件
type ContextFile struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size,omitempty"`
	Content      string `json:"content"`
	Encoding     string `json:"encoding,omitempty"`
	LastModified int64  `json:"lastModified,omitempty"`
}

// ToContextFileEntities 转换为领域对象
func ToContextFileEntities(in []ContextFile) []entity.ContextFile {
	if len(in) == 0 {
		return nil
	}
	out := make([]entity.ContextFile, 0, len(in))
	for _, f := range in {
		out = append(out, entity.ContextFile{
			ID:           f.ID,
			Name:         f.Name,
			Type:         f.Type,
			Size:         f.Size,
			Content:      f.Content,
			Encoding:     entity.ContentEncoding(f.Encoding),
			LastModified: f.LastModified,
		})
	}
	return out
}

// ToContextFiles 转换为响应对象
func ToContextFiles(in []entity.ContextFile) []ContextFile {
	out := make([]ContextFile, 0, len(in))
	for _, f := range in {
		out = append(out, ContextFile{
			ID:           f.ID,
			Name:         f.Name,
			Type:         f.Type,
			Size:         f.Size,
			Content:      f.Content,
			Encoding:     string(f.Encoding),
			LastModified: f.LastModified,
		})
	}
	return out
}

// ValidateContextFilesRequest 批量校验请求
type ValidateContextFilesRequest struct {
	Files []ContextFile `json:"files" binding:"required"`
}

// ContextFileSummary 不含内容的文件摘要
type ContextFileSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
}

// ContextFileListResponse 文件列表响应
type ContextFileListResponse struct {
	Files []ContextFile `json:"files"`
}

// ContextFileSummaryResponse 校验结果
type ContextFileSummaryResponse struct {
	Files []ContextFileSummary `json:"files"`
}

// ToContextFileSummaries 生成摘要
func ToContextFileSummaries(in []entity.ContextFile) []ContextFileSummary {
	out := make([]ContextFileSummary, 0, len(in))
	for _, f := range in {
		out = append(out, ContextFileSummary{
			ID:       f.ID,
			Name:     f.Name,
			Type:     f.Type,
			Size:     f.Size,
			Encoding: string(f.Encoding),
		})
	}
	return out
}
