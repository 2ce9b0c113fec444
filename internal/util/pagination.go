package util

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Paginate turns a 1-based page and a page size into offset/limit
func Paginate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}
