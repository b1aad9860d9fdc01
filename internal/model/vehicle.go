package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vehicle is a car listed under exactly one category.
type Vehicle struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey"`
	Model          string    `gorm:"size:255;not null"`
	Color          string    `gorm:"size:64;not null"`
	RegistrationNo string    `gorm:"uniqueIndex;size:64;not null"`
	CategoryID     uuid.UUID `gorm:"type:char(36);not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time `gorm:"index"`

	// Relations. Only read through Preload; inserts never write through it.
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// BeforeCreate sets UUID before creating the record.
func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
