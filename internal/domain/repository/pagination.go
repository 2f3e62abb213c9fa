// Package repository 定义数据访问层接口
package repository

import "strings"

// 分页边界，HTTP 查询参数与存储查询共用
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination 从 1 开始计页
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 越界值被收敛到合法范围
func NewPagination(page, pageSize int) Pagination {
	p := Pagination{Page: max(page, 1), PageSize: pageSize}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

// PagedResult 一页数据与总数
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ResultOf 以当前分页包装查询结果
func ResultOf[T any](p Pagination, items []T, total int64) *PagedResult[T] {
	pages := 0
	if p.PageSize > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return &PagedResult[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: pages,
	}
}

// Paginate 对已排序的内存切片取一页，返回副本
func Paginate[T any](items []T, p Pagination) *PagedResult[T] {
	start := min(p.Offset(), len(items))
	end := min(start+p.Limit(), len(items))
	return ResultOf(p, append([]T(nil), items[start:end]...), int64(len(items)))
}

// SortOrder 排序方向
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ParseSortOrder 不区分大小写，默认升序
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return SortOrderDesc
	}
	return SortOrderAsc
}
