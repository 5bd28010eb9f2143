package model

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// MaxPageNumber keeps Offset well inside int range for any limit.
	MaxPageNumber = 1_000_000
)

// Page holds normalised pagination parameters.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps raw query values into a usable page: page defaults to 1 and
// is capped at MaxPageNumber, limit defaults to DefaultPageLimit and is capped at MaxPageLimit.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Pagination is the pagination block of list responses.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

// NewPagination computes the page count for total rows.
func NewPagination(total int, p Page) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Total: total, Page: p.Number, Pages: pages, Limit: p.Limit}
}

// ListResult is a page of items plus pagination metadata.
type ListResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}
