package sharedkernel

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// Normalize clamps page and size into their valid ranges.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Limit returns the normalized page size.
func (p Pagination) Limit() int {
	return p.Normalize().PageSize
}

// Page is a slice of results plus the total row count.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// NewPage builds a Page from a normalized request.
func NewPage[T any](items []T, total int64, req Pagination) Page[T] {
	n := req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: n.Page, PageSize: n.PageSize}
}

// TotalPages reports how many pages the result spans.
func (p Page[T]) TotalPages() int {
	if p.PageSize == 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}
