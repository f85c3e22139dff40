package store

import (
	"audit-server/internal/pkg/apperror"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Pagination 分页参数，Page 从 1 开始
type Pagination struct {
	Page     int
	PageSize int
}

// Validate 校验分页参数
func (p Pagination) Validate() error {
	if p.Page < 1 {
		return apperror.WithMessage(apperror.ErrBadRequest, "page 必须大于等于 1")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return apperror.WithMessage(apperror.ErrBadRequest, "page_size 必须在 1 到 1000 之间")
	}
	return nil
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
