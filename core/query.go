package core

import (
	"os"
	"strconv"
	"strings"
)

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortOrder represents the sort order as the backend spells it
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Sort represents the field to sort by and its order
type Sort struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order" validate:"omitempty,oneof=ASC DESC"`
}

// IsZero reports whether no sort field was requested
func (s Sort) IsZero() bool {
	return s.Field == ""
}

// Pagination represents 1-indexed page based pagination
type Pagination struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"perPage" validate:"gt=0"`
}

// Filter is an arbitrary field -> value mapping forwarded to the backend
type Filter map[string]any

// NewPagination returns the first page with the default page size
func NewPagination() Pagination {
	return Pagination{
		Page:    1,
		PerPage: getPageSizeFromEnv(),
	}
}

// Range returns the inclusive index pair [start, end] covered by the page
func (p Pagination) Range() (start, end int) {
	return (p.Page - 1) * p.PerPage, p.Page*p.PerPage - 1
}

// With returns a copy of the filter with key set to value. The receiver is not modified.
func (f Filter) With(key string, value any) Filter {
	merged := make(Filter, len(f)+1)
	for k, v := range f {
		merged[k] = v
	}
	merged[key] = value
	return merged
}

// OrEmpty returns a non-nil filter so it always encodes as a JSON object
func (f Filter) OrEmpty() Filter {
	if f == nil {
		return Filter{}
	}
	return f
}

// getPageSizeFromEnv gets page size from environment variable or default
func getPageSizeFromEnv() int {
	if envSize := os.Getenv("RESTOFFICE_PAGE_SIZE"); envSize != "" {
		if size, err := strconv.Atoi(envSize); err == nil && size > 0 && size <= MaxPageSize {
			return size
		}
	}
	return DefaultPageSize
}

// ParseSortOrder accepts ASC/DESC in any case
func ParseSortOrder(s string) (SortOrder, bool) {
	order := SortOrder(strings.ToUpper(strings.TrimSpace(s)))
	return order, order.IsValid()
}

// String returns a string representation of the sort order
func (so SortOrder) String() string {
	return string(so)
}

// IsValid checks if the sort order is valid
func (so SortOrder) IsValid() bool {
	return so == SortAsc || so == SortDesc
}

// Opposite returns the opposite sort order
func (so SortOrder) Opposite() SortOrder {
	if so == SortAsc {
		return SortDesc
	}
	return SortAsc
}
