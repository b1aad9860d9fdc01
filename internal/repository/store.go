package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles the repositories that share one connection or transaction.
type Repositories struct {
	Users      UserRepository
	Categories CategoryRepository
	Vehicles   VehicleRepository
}

// Store hands out repositories and runs multi-entity transactions.
type Store interface {
	Repositories() Repositories
	// WithTransaction runs fn inside one database transaction. Repositories passed to
	// fn operate on that transaction; returning an error rolls it back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type gormStore struct {
	db    *gorm.DB
	repos Repositories
}

// NewStore creates a Store on top of db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, repos: newRepositories(db)}
}

func newRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:      NewUserRepository(db),
		Categories: NewCategoryRepository(db),
		Vehicles:   NewVehicleRepository(db),
	}
}

func (s *gormStore) Repositories() Repositories {
	return s.repos
}

func (s *gormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newRepositories(tx))
	})
	return translate("transaction", err)
}
