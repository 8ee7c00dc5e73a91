package history

// Paginator pages a fixed sequence. The current page starts at 1.
type Paginator[T any] struct {
	items    []T
	pageSize int
	page     int
}

// NewPaginator pages items; non-positive pageSize uses DefaultPageSize
func NewPaginator[T any](items []T, pageSize int) *Paginator[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator[T]{items: items, pageSize: pageSize, page: 1}
}

func totalPages(n, pageSize int) int {
	if n == 0 || pageSize <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Page returns the current page number
func (p *Paginator[T]) Page() int {
	return p.page
}

// PageSize returns the configured page size
func (p *Paginator[T]) PageSize() int {
	return p.pageSize
}

// Total returns the number of paged records
func (p *Paginator[T]) Total() int {
	return len(p.items)
}

// TotalPages returns ceil(Total/PageSize)
func (p *Paginator[T]) TotalPages() int {
	return totalPages(len(p.items), p.pageSize)
}

// GoToPage moves to page n. Out-of-range pages leave the current page unchanged.
func (p *Paginator[T]) GoToPage(n int) bool {
	if n < 1 || n > p.TotalPages() {
		return false
	}
	p.page = n
	return true
}

// Next advances one page if possible
func (p *Paginator[T]) Next() bool {
	return p.GoToPage(p.page + 1)
}

// Prev goes back one page if possible
func (p *Paginator[T]) Prev() bool {
	return p.GoToPage(p.page - 1)
}

// Items returns the records of the current page
func (p *Paginator[T]) Items() []T {
	return p.PageItems(p.page)
}

// PageItems returns records [(n-1)*size, min(n*size, N)); nil when n is out of range
func (p *Paginator[T]) PageItems(n int) []T {
	if n < 1 || n > p.TotalPages() {
		return nil
	}
	start := (n - 1) * p.pageSize
	end := start + p.pageSize
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[start:end]
}

// Range returns the 1-indexed first and last record numbers on the current page
func (p *Paginator[T]) Range() (int, int) {
	if len(p.items) == 0 {
		return 0, 0
	}
	start := (p.page-1)*p.pageSize + 1
	end := start + len(p.Items()) - 1
	return start, end
}
