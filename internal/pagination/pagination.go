// Package pagination computes page windows over an append-only sequence.
package pagination

// Pagination describes one page window over a sequence of Total records.
// Page is zero-based. A page past the end is valid and simply yields an
// empty window; a negative page is treated as page 0.
type Pagination struct {
	Page     int
	PageSize int
	Total    int64
}

// New builds a Pagination, clamping a negative page to 0 and a non-positive
// page size to 1.
func New(page, pageSize int, total int64) Pagination {
	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if total < 0 {
		total = 0
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total}
}

// Offset is the zero-based index of the first record on the page.
func (p Pagination) Offset() int64 {
	return int64(p.Page) * int64(p.PageSize)
}

// TotalPages is the number of pages needed to cover Total records.
func (p Pagination) TotalPages() int {
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// HasMore reports whether records exist past this page.
func (p Pagination) HasMore() bool {
	return p.Offset()+int64(p.PageSize) < p.Total
}
