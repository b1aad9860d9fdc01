package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultPerPage is used when a list request does not name a page size.
	DefaultPerPage = 10
	// MaxPerPage caps a single page.
	MaxPerPage = 100
	// DefaultOrderBy sorts by last modification.
	DefaultOrderBy = "updated_at"
)

// ListQuery holds page and sort parameters for FindMany.
// Page is 1-based. Desc defaults to true through NewListQuery.
type ListQuery struct {
	Page    int
	PerPage int
	OrderBy string
	Desc    bool
}

// NewListQuery returns the default query: page 1, 10 per page, newest first.
func NewListQuery() ListQuery {
	return ListQuery{Page: 1, PerPage: DefaultPerPage, OrderBy: DefaultOrderBy, Desc: true}
}

// Offset returns the number of rows skipped before the page.
func (q ListQuery) Offset() int {
	n := q.normalized()
	return (n.Page - 1) * n.PerPage
}

func (q ListQuery) normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// apply adds ORDER BY, LIMIT and OFFSET to db. OrderBy is looked up in columns;
// unknown fields fall back to updated_at so user input never reaches the SQL text.
func (q ListQuery) apply(db *gorm.DB, columns map[string]string) *gorm.DB {
	q = q.normalized()
	col, ok := columns[q.OrderBy]
	if !ok {
		col = DefaultOrderBy
	}
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: q.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Desc}).
		Limit(q.PerPage).
		Offset(q.Offset())
}

// CategoryFilter narrows category queries. The zero value matches every row.
type CategoryFilter struct {
	IDs  []uuid.UUID
	Name string
}

func (f CategoryFilter) empty() bool {
	return len(f.IDs) == 0 && f.Name == ""
}

func (f CategoryFilter) apply(db *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.Name != "" {
		db = db.Where("name = ?", f.Name)
	}
	return db
}

// VehicleFilter narrows vehicle queries. The zero value matches every row.
type VehicleFilter struct {
	CategoryID *uuid.UUID
	Color      string
}

func (f VehicleFilter) empty() bool {
	return f.CategoryID == nil && f.Color == ""
}

func (f VehicleFilter) apply(db *gorm.DB) *gorm.DB {
	if f.CategoryID != nil {
		db = db.Where("category_id = ?", *f.CategoryID)
	}
	if f.Color != "" {
		db = db.Where("color = ?", f.Color)
	}
	return db
}
