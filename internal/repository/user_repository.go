package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "carhub/internal/errors"
	"carhub/internal/model"
)

// UserRepository is the credential store. Email uniqueness is enforced by a
// unique index; a duplicate insert fails with apperrors.ErrConflict.
type UserRepository interface {
	Insert(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindMany(ctx context.Context, filter UserFilter, q ListQuery) ([]model.User, error)
	CountAll(ctx context.Context, filter UserFilter) (int64, error)
	UpdateByID(ctx context.Context, id uuid.UUID, update UserUpdate) (*model.User, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, filter UserFilter) (int64, error)
}

var userSortColumns = map[string]string{
	"email":      "email",
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
}

// UserFilter narrows user queries. The zero value matches every row.
type UserFilter struct {
	Emails []string
}

func (f UserFilter) empty() bool {
	return len(f.Emails) == 0
}

func (f UserFilter) apply(db *gorm.DB) *gorm.DB {
	if len(f.Emails) > 0 {
		emails := make([]string, len(f.Emails))
		for i, e := range f.Emails {
			emails[i] = model.NormalizeEmail(e)
		}
		db = db.Where("email IN ?", emails)
	}
	return db
}

// UserUpdate lists the fields to change. Nil fields are left untouched.
type UserUpdate struct {
	PasswordHash *string
}

func (u UserUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.PasswordHash != nil {
		cols["password_hash"] = *u.PasswordHash
	}
	return cols
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Insert(ctx context.Context, user *model.User) error {
	return translate("insert user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate("find user", err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, translate("find user by email", err)
	}
	return &user, nil
}

func (r *userRepository) FindMany(ctx context.Context, filter UserFilter, q ListQuery) ([]model.User, error) {
	users := make([]model.User, 0)
	db := filter.apply(r.db.WithContext(ctx).Model(&model.User{}))
	if err := q.apply(db, userSortColumns).Find(&users).Error; err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}

func (r *userRepository) CountAll(ctx context.Context, filter UserFilter) (int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&model.User{})).Count(&total).Error; err != nil {
		return 0, translate("count users", err)
	}
	return total, nil
}

func (r *userRepository) UpdateByID(ctx context.Context, id uuid.UUID, update UserUpdate) (*model.User, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cols := update.columns()
	if len(cols) == 0 {
		return existing, nil
	}
	if err := r.db.WithContext(ctx).Model(existing).Updates(cols).Error; err != nil {
		return nil, translate("update user", err)
	}
	return r.FindByID(ctx, id)
}

func (r *userRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return translate("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("delete user", apperrors.ErrNotFound)
	}
	return nil
}

func (r *userRepository) DeleteMany(ctx context.Context, filter UserFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("delete users: %w: empty filter", apperrors.ErrValidation)
	}
	res := filter.apply(r.db.WithContext(ctx)).Delete(&model.User{})
	if res.Error != nil {
		return 0, translate("delete users", res.Error)
	}
	return res.RowsAffected, nil
}
