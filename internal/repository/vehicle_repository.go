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

var vehicleSortColumns = map[string]string{
	"model":           "model",
	"color":           "color",
	"registration_no": "registration_no",
	"category_id":     "category_id",
	"createdAt":       "created_at",
	"created_at":      "created_at",
	"updatedAt":       "updated_at",
	"updated_at":      "updated_at",
}

// VehicleUpdate lists the fields to change. Nil fields are left untouched.
type VehicleUpdate struct {
	Model          *string
	Color          *string
	RegistrationNo *string
	CategoryID     *uuid.UUID
}

func (u VehicleUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.Model != nil {
		cols["model"] = *u.Model
	}
	if u.Color != nil {
		cols["color"] = *u.Color
	}
	if u.RegistrationNo != nil {
		cols["registration_no"] = *u.RegistrationNo
	}
	if u.CategoryID != nil {
		cols["category_id"] = *u.CategoryID
	}
	return cols
}

// VehicleRepository defines vehicle persistence operations. Reads preload the
// vehicle's category.
type VehicleRepository interface {
	Insert(ctx context.Context, vehicle *model.Vehicle) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	FindMany(ctx context.Context, filter VehicleFilter, q ListQuery) ([]model.Vehicle, error)
	CountAll(ctx context.Context, filter VehicleFilter) (int64, error)
	UpdateByID(ctx context.Context, id uuid.UUID, update VehicleUpdate) (*model.Vehicle, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, filter VehicleFilter) (int64, error)
	// DeleteOrphans removes vehicles whose category no longer exists.
	DeleteOrphans(ctx context.Context) (int64, error)
}

type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository.
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) Insert(ctx context.Context, vehicle *model.Vehicle) error {
	return translate("insert vehicle", r.db.WithContext(ctx).Omit(clause.Associations).Create(vehicle).Error)
}

func (r *vehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := r.db.WithContext(ctx).Preload("Category").Where("id = ?", id).First(&vehicle).Error; err != nil {
		return nil, translate("find vehicle", err)
	}
	return &vehicle, nil
}

func (r *vehicleRepository) FindMany(ctx context.Context, filter VehicleFilter, q ListQuery) ([]model.Vehicle, error) {
	vehicles := make([]model.Vehicle, 0)
	db := filter.apply(r.db.WithContext(ctx).Model(&model.Vehicle{}).Preload("Category"))
	if err := q.apply(db, vehicleSortColumns).Find(&vehicles).Error; err != nil {
		return nil, translate("list vehicles", err)
	}
	return vehicles, nil
}

func (r *vehicleRepository) CountAll(ctx context.Context, filter VehicleFilter) (int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&model.Vehicle{})).Count(&total).Error; err != nil {
		return 0, translate("count vehicles", err)
	}
	return total, nil
}

func (r *vehicleRepository) UpdateByID(ctx context.Context, id uuid.UUID, update VehicleUpdate) (*model.Vehicle, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cols := update.columns()
	if len(cols) == 0 {
		return existing, nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Vehicle{}).Where("id = ?", id).Updates(cols).Error; err != nil {
		return nil, translate("update vehicle", err)
	}
	return r.FindByID(ctx, id)
}

func (r *vehicleRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Vehicle{})
	if res.Error != nil {
		return translate("delete vehicle", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("delete vehicle", apperrors.ErrNotFound)
	}
	return nil
}

// DeleteMany refuses an empty filter rather than truncating the table.
func (r *vehicleRepository) DeleteMany(ctx context.Context, filter VehicleFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("delete vehicles: %w: empty filter", apperrors.ErrValidation)
	}
	res := filter.apply(r.db.WithContext(ctx)).Delete(&model.Vehicle{})
	if res.Error != nil {
		return 0, translate("delete vehicles", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *vehicleRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("category_id NOT IN (?)", db.Model(&model.Category{}).Select("id")).Delete(&model.Vehicle{})
	if res.Error != nil {
		return 0, translate("delete orphan vehicles", res.Error)
	}
	return res.RowsAffected, nil
}
