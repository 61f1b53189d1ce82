package services

import "gorm.io/gorm"

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Page is a normalised 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page to >= 1 and limit to [1, max]; a non-positive limit
// becomes def.
func NewPage(page, limit, def, max int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if limit < 1 {
		limit = 1
	}
	return Page{Page: page, Limit: limit}
}

// Skip is the number of rows before this page.
func (p Page) Skip() int {
	return (p.Page - 1) * p.Limit
}

func (p Page) scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Skip()).Limit(p.Limit)
}

// List is the shape every paginated endpoint returns.
type List[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
}

func NewList[T any](items []T, total int64, p Page) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{
		Items:   items,
		Total:   total,
		HasMore: total > int64(p.Skip()+len(items)),
		Page:    p.Page,
		Limit:   p.Limit,
	}
}

// publicUser limits a preloaded user to what other visitors may see.
func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "image", "role", "created_at")
}
