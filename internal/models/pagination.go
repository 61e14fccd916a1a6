package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page inputs, defaulting to the first page of 20.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}

// Bounds returns the slice window [start, end) for a collection of TotalCount items.
func (p *Pagination) Bounds() (int, int) {
	start := (p.Page - 1) * p.PageSize
	if start > p.TotalCount {
		start = p.TotalCount
	}
	end := start + p.PageSize
	if end > p.TotalCount {
		end = p.TotalCount
	}
	return start, end
}
