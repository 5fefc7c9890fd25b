package models

// UnpagedSentinel is the page/size value meaning "return the full
// collection in a single page".
const UnpagedSentinel = 0

// Page is a paged collection response. Page numbers are 1-based; a request
// of page=0,size=0 returns every element with Page and PageCount set to 1.
type Page[T any] struct {
	Page       int `json:"page"`
	PageCount  int `json:"pageCount"`
	TotalCount int `json:"totalCount"`
	Collection []T `json:"collection"`
}

// NewPage builds a Page for the given window. It computes PageCount from the
// total and normalizes the unpaged sentinel to a single page.
func NewPage[T any](page, size, total int, collection []T) *Page[T] {
	if collection == nil {
		collection = []T{}
	}
	if page == UnpagedSentinel || size == UnpagedSentinel {
		return &Page[T]{Page: 1, PageCount: 1, TotalCount: total, Collection: collection}
	}
	pageCount := total / size
	if total%size != 0 {
		pageCount++
	}
	if pageCount == 0 {
		pageCount = 1
	}
	return &Page[T]{Page: page, PageCount: pageCount, TotalCount: total, Collection: collection}
}
