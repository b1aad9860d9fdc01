package service

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "carhub/internal/errors"
	"carhub/internal/model"
	"carhub/internal/repository"
)

// memStore is a fully serializable in-memory Store: one transaction at a time,
// rolled back on error. It enforces unique columns but, unlike MySQL, has no
// foreign key, so only the service's own locking keeps vehicles from dangling.
type memStore struct {
	mu sync.Mutex

	users      map[uuid.UUID]model.User
	categories map[uuid.UUID]model.Category
	vehicles   map[uuid.UUID]model.Vehicle

	// txErrs are returned, in order, by the next WithTransaction calls before fn runs.
	txErrs []error
	// vehicleDeleteErr fails DeleteMany on vehicles.
	vehicleDeleteErr error
	txCount          int
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[uuid.UUID]model.User{},
		categories: map[uuid.UUID]model.Category{},
		vehicles:   map[uuid.UUID]model.Vehicle{},
	}
}

func (s *memStore) Repositories() repository.Repositories {
	return s.repos(false)
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	if len(s.txErrs) > 0 {
		err := s.txErrs[0]
		s.txErrs = s.txErrs[1:]
		return err
	}

	users, categories, vehicles := maps.Clone(s.users), maps.Clone(s.categories), maps.Clone(s.vehicles)
	if err := fn(ctx, s.repos(true)); err != nil {
		s.users, s.categories, s.vehicles = users, categories, vehicles
		return err
	}
	return nil
}

func (s *memStore) repos(inTx bool) repository.Repositories {
	base := memRepo{store: s, inTx: inTx}
	return repository.Repositories{
		Users:      memUsers{base},
		Categories: memCategories{base},
		Vehicles:   memVehicles{base},
	}
}

func (s *memStore) vehicleCount(categoryID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.vehicles {
		if v.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (s *memStore) orphanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.vehicles {
		if _, ok := s.categories[v.CategoryID]; !ok {
			n++
		}
	}
	return n
}

type memRepo struct {
	store *memStore
	inTx  bool
}

func (r memRepo) do(fn func() error) error {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	return fn()
}

func page[T any](items []T, q repository.ListQuery) []T {
	per := q.PerPage
	if per < 1 {
		per = repository.DefaultPerPage
	}
	if per > repository.MaxPerPage {
		per = repository.MaxPerPage
	}
	start := q.Offset()
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+per, len(items))]
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
}

func conflict(op string) error {
	return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
}

// users

type memUsers struct{ memRepo }

func (r memUsers) Insert(_ context.Context, user *model.User) error {
	return r.do(func() error {
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		user.Email = model.NormalizeEmail(user.Email)
		for _, u := range r.store.users {
			if u.Email == user.Email {
				return conflict("insert user")
			}
		}
		user.CreatedAt, user.UpdatedAt = time.Now(), time.Now()
		r.store.users[user.ID] = *user
		return nil
	})
}

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	var out *model.User
	err := r.do(func() error {
		u, ok := r.store.users[id]
		if !ok {
			return notFound("find user")
		}
		out = &u
		return nil
	})
	return out, err
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.do(func() error {
		email = model.NormalizeEmail(email)
		for _, u := range r.store.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return notFound("find user by email")
	})
	return out, err
}

func (r memUsers) FindMany(_ context.Context, filter repository.UserFilter, q repository.ListQuery) ([]model.User, error) {
	var out []model.User
	err := r.do(func() error {
		for _, u := range r.store.users {
			if len(filter.Emails) == 0 || containsString(filter.Emails, u.Email) {
				out = append(out, u)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		out = page(out, q)
		return nil
	})
	return out, err
}

func (r memUsers) CountAll(ctx context.Context, filter repository.UserFilter) (int64, error) {
	all, err := r.FindMany(ctx, filter, repository.ListQuery{Page: 1, PerPage: repository.MaxPerPage})
	return int64(len(all)), err
}

func (r memUsers) UpdateByID(_ context.Context, id uuid.UUID, update repository.UserUpdate) (*model.User, error) {
	var out *model.User
	err := r.do(func() error {
		u, ok := r.store.users[id]
		if !ok {
			return notFound("update user")
		}
		if update.PasswordHash != nil {
			u.PasswordHash = *update.PasswordHash
		}
		r.store.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

func (r memUsers) DeleteByID(_ context.Context, id uuid.UUID) error {
	return r.do(func() error {
		if _, ok := r.store.users[id]; !ok {
			return notFound("delete user")
		}
		delete(r.store.users, id)
		return nil
	})
}

func (r memUsers) DeleteMany(_ context.Context, filter repository.UserFilter) (int64, error) {
	var n int64
	err := r.do(func() error {
		for id, u := range r.store.users {
			if containsString(filter.Emails, u.Email) {
				delete(r.store.users, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// categories

type memCategories struct{ memRepo }

func (r memCategories) Insert(_ context.Context, category *model.Category) error {
	return r.do(func() error {
		if category.ID == uuid.Nil {
			category.ID = uuid.New()
		}
		for _, c := range r.store.categories {
			if c.Name == category.Name {
				return conflict("insert category")
			}
		}
		category.CreatedAt, category.UpdatedAt = time.Now(), time.Now()
		r.store.categories[category.ID] = *category
		return nil
	})
}

func (r memCategories) FindByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	var out *model.Category
	err := r.do(func() error {
		c, ok := r.store.categories[id]
		if !ok {
			return notFound("find category")
		}
		out = &c
		return nil
	})
	return out, err
}

// LockByID is a plain read: a memStore transaction already excludes every other one.
func (r memCategories) LockByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	return r.FindByID(ctx, id)
}

func (r memCategories) FindMany(_ context.Context, filter repository.CategoryFilter, q repository.ListQuery) ([]model.Category, error) {
	var out []model.Category
	err := r.do(func() error {
		for _, c := range r.store.categories {
			if filter.Name != "" && c.Name != filter.Name {
				continue
			}
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		out = page(out, q)
		return nil
	})
	return out, err
}

func (r memCategories) CountAll(_ context.Context, _ repository.CategoryFilter) (int64, error) {
	var n int64
	err := r.do(func() error {
		n = int64(len(r.store.categories))
		return nil
	})
	return n, err
}

func (r memCategories) UpdateByID(_ context.Context, id uuid.UUID, update repository.CategoryUpdate) (*model.Category, error) {
	var out *model.Category
	err := r.do(func() error {
		c, ok := r.store.categories[id]
		if !ok {
			return notFound("update category")
		}
		if update.Name != nil {
			for otherID, other := range r.store.categories {
				if otherID != id && other.Name == *update.Name {
					return conflict("update category")
				}
			}
			c.Name = *update.Name
		}
		c.UpdatedAt = time.Now()
		r.store.categories[id] = c
		out = &c
		return nil
	})
	return out, err
}

func (r memCategories) DeleteByID(_ context.Context, id uuid.UUID) error {
	return r.do(func() error {
		if _, ok := r.store.categories[id]; !ok {
			return notFound("delete category")
		}
		delete(r.store.categories, id)
		return nil
	})
}

func (r memCategories) DeleteMany(_ context.Context, filter repository.CategoryFilter) (int64, error) {
	var n int64
	err := r.do(func() error {
		for _, id := range filter.IDs {
			if _, ok := r.store.categories[id]; ok {
				delete(r.store.categories, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// vehicles

type memVehicles struct{ memRepo }

func (r memVehicles) Insert(_ context.Context, vehicle *model.Vehicle) error {
	return r.do(func() error {
		if vehicle.ID == uuid.Nil {
			vehicle.ID = uuid.New()
		}
		for _, v := range r.store.vehicles {
			if v.RegistrationNo == vehicle.RegistrationNo {
				return conflict("insert vehicle")
			}
		}
		vehicle.CreatedAt, vehicle.UpdatedAt = time.Now(), time.Now()
		stored := *vehicle
		stored.Category = nil
		r.store.vehicles[vehicle.ID] = stored
		return nil
	})
}

func (r memVehicles) withCategory(v model.Vehicle) model.Vehicle {
	if c, ok := r.store.categories[v.CategoryID]; ok {
		v.Category = &c
	}
	return v
}

func (r memVehicles) FindByID(_ context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var out *model.Vehicle
	err := r.do(func() error {
		v, ok := r.store.vehicles[id]
		if !ok {
			return notFound("find vehicle")
		}
		v = r.withCategory(v)
		out = &v
		return nil
	})
	return out, err
}

func (r memVehicles) FindMany(_ context.Context, filter repository.VehicleFilter, q repository.ListQuery) ([]model.Vehicle, error) {
	var out []model.Vehicle
	err := r.do(func() error {
		for _, v := range r.store.vehicles {
			if filter.CategoryID != nil && v.CategoryID != *filter.CategoryID {
				continue
			}
			if filter.Color != "" && v.Color != filter.Color {
				continue
			}
			out = append(out, r.withCategory(v))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		out = page(out, q)
		return nil
	})
	return out, err
}

func (r memVehicles) CountAll(_ context.Context, filter repository.VehicleFilter) (int64, error) {
	var n int64
	err := r.do(func() error {
		for _, v := range r.store.vehicles {
			if filter.CategoryID == nil || v.CategoryID == *filter.CategoryID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memVehicles) UpdateByID(_ context.Context, id uuid.UUID, update repository.VehicleUpdate) (*model.Vehicle, error) {
	var out *model.Vehicle
	err := r.do(func() error {
		v, ok := r.store.vehicles[id]
		if !ok {
			return notFound("update vehicle")
		}
		if update.RegistrationNo != nil {
			for otherID, other := range r.store.vehicles {
				if otherID != id && other.RegistrationNo == *update.RegistrationNo {
					return conflict("update vehicle")
				}
			}
			v.RegistrationNo = *update.RegistrationNo
		}
		if update.Model != nil {
			v.Model = *update.Model
		}
		if update.Color != nil {
			v.Color = *update.Color
		}
		if update.CategoryID != nil {
			v.CategoryID = *update.CategoryID
		}
		v.UpdatedAt = time.Now()
		r.store.vehicles[id] = v
		v = r.withCategory(v)
		out = &v
		return nil
	})
	return out, err
}

func (r memVehicles) DeleteByID(_ context.Context, id uuid.UUID) error {
	return r.do(func() error {
		if _, ok := r.store.vehicles[id]; !ok {
			return notFound("delete vehicle")
		}
		delete(r.store.vehicles, id)
		return nil
	})
}

func (r memVehicles) DeleteMany(_ context.Context, filter repository.VehicleFilter) (int64, error) {
	var n int64
	err := r.do(func() error {
		if r.store.vehicleDeleteErr != nil {
			return r.store.vehicleDeleteErr
		}
		for id, v := range r.store.vehicles {
			if filter.CategoryID != nil && v.CategoryID == *filter.CategoryID {
				delete(r.store.vehicles, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memVehicles) DeleteOrphans(_ context.Context) (int64, error) {
	var n int64
	err := r.do(func() error {
		for id, v := range r.store.vehicles {
			if _, ok := r.store.categories[v.CategoryID]; !ok {
				delete(r.store.vehicles, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if model.NormalizeEmail(v) == s {
			return true
		}
	}
	return false
}
