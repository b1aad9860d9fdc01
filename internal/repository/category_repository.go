package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "carhub/internal/errors"
	"carhub/internal/model"
)

var categorySortColumns = map[string]string{
	"name":       "name",
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
}

// CategoryUpdate lists the fields to change. Nil fields are left untouched.
type CategoryUpdate struct {
	Name *string
}

func (u CategoryUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	return cols
}

// CategoryRepository defines category persistence operations.
type CategoryRepository interface {
	Insert(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	// LockByID reads the category with a row lock held until the surrounding
	// transaction ends. Outside a transaction the lock is released immediately.
	LockByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	FindMany(ctx context.Context, filter CategoryFilter, q ListQuery) ([]model.Category, error)
	CountAll(ctx context.Context, filter CategoryFilter) (int64, error)
	UpdateByID(ctx context.Context, id uuid.UUID, update CategoryUpdate) (*model.Category, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, filter CategoryFilter) (int64, error)
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Insert(ctx context.Context, category *model.Category) error {
	return translate("insert category", r.db.WithContext(ctx).Create(category).Error)
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, translate("find category", err)
	}
	return &category, nil
}

func (r *categoryRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&category).Error; err != nil {
		return nil, translate("lock category", err)
	}
	return &category, nil
}

func (r *categoryRepository) FindMany(ctx context.Context, filter CategoryFilter, q ListQuery) ([]model.Category, error) {
	categories := make([]model.Category, 0)
	db := filter.apply(r.db.WithContext(ctx).Model(&model.Category{}))
	if err := q.apply(db, categorySortColumns).Find(&categories).Error; err != nil {
		return nil, translate("list categories", err)
	}
	return categories, nil
}

func (r *categoryRepository) CountAll(ctx context.Context, filter CategoryFilter) (int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&model.Category{})).Count(&total).Error; err != nil {
		return 0, translate("count categories", err)
	}
	return total, nil
}

func (r *categoryRepository) UpdateByID(ctx context.Context, id uuid.UUID, update CategoryUpdate) (*model.Category, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cols := update.columns()
	if len(cols) == 0 {
		return existing, nil
	}
	if err := r.db.WithContext(ctx).Model(existing).Updates(cols).Error; err != nil {
		return nil, translate("update category", err)
	}
	return r.FindByID(ctx, id)
}

func (r *categoryRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Category{})
	if res.Error != nil {
		return translate("delete category", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("delete category", apperrors.ErrNotFound)
	}
	return nil
}

// DeleteMany refuses an empty filter rather than truncating the table.
func (r *categoryRepository) DeleteMany(ctx context.Context, filter CategoryFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("delete categories: %w: empty filter", apperrors.ErrValidation)
	}
	res := filter.apply(r.db.WithContext(ctx)).Delete(&model.Category{})
	if res.Error != nil {
		return 0, translate("delete categories", res.Error)
	}
	return res.RowsAffected, nil
}
