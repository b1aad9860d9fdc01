package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	apperrors "carhub/internal/errors"
	"carhub/internal/model"
	"carhub/internal/repository"
)

// Transaction conflicts (deadlock, lock wait timeout) are retried this many times.
const (
	txMaxRetries = 3
	txRetryBase  = 50 * time.Millisecond
)

// CategoryDetail is a category with the vehicles that reference it.
type CategoryDetail struct {
	Category model.Category
	Vehicles []model.Vehicle
}

// CategoryPage is one page of categories and the total count.
type CategoryPage struct {
	Categories []model.Category
	Total      int64
}

// VehiclePage is one page of vehicles and the total count.
type VehiclePage struct {
	Vehicles []model.Vehicle
	Total    int64
}

// VehicleInput holds the fields of a new vehicle.
type VehicleInput struct {
	Model          string
	Color          string
	RegistrationNo string
	CategoryID     uuid.UUID
}

// VehicleChanges holds a partial vehicle update. Nil fields are left untouched.
type VehicleChanges struct {
	Model          *string
	Color          *string
	RegistrationNo *string
	CategoryID     *uuid.UUID
}

// OrphanRecorder counts vehicles removed by RepairOrphans. *metrics.Metrics implements it.
type OrphanRecorder interface {
	OrphansRepaired(n int64)
}

// CatalogService manages categories and vehicles. Every vehicle it lets another
// transaction observe references an existing category.
type CatalogService interface {
	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDetail, error)
	ListCategories(ctx context.Context, q repository.ListQuery) (*CategoryPage, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name string) (*model.Category, error)
	// DeleteCategory removes a category and every vehicle referencing it in one
	// transaction. Deleting a missing category succeeds.
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateVehicle(ctx context.Context, in VehicleInput) (*model.Vehicle, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	ListVehicles(ctx context.Context, q repository.ListQuery) (*VehiclePage, error)
	UpdateVehicle(ctx context.Context, id uuid.UUID, changes VehicleChanges) (*model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	CountVehicles(ctx context.Context) (int64, error)

	// RepairOrphans deletes vehicles whose category no longer exists and
	// returns how many it removed.
	RepairOrphans(ctx context.Context) (int64, error)
}

type catalogService struct {
	store   repository.Store
	orphans OrphanRecorder
	log     *zap.Logger
	timeout time.Duration
	backoff func() retry.Backoff
}

// CatalogOption configures CatalogService.
type CatalogOption func(*catalogService)

// WithCatalogLogger sets the logger.
func WithCatalogLogger(l *zap.Logger) CatalogOption {
	return func(s *catalogService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOrphanRecorder reports repaired vehicles.
func WithOrphanRecorder(r OrphanRecorder) CatalogOption {
	return func(s *catalogService) {
		if r != nil {
			s.orphans = r
		}
	}
}

// WithCatalogStorageTimeout bounds each storage call or transaction.
func WithCatalogStorageTimeout(d time.Duration) CatalogOption {
	return func(s *catalogService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewCatalogService creates a catalog service on store.
func NewCatalogService(store repository.Store, opts ...CatalogOption) CatalogService {
	s := &catalogService{
		store:   store,
		orphans: nopOrphans{},
		log:     zap.NewNop(),
		timeout: DefaultStorageTimeout,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(txMaxRetries, retry.NewExponential(txRetryBase))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *catalogService) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()
	category := &model.Category{Name: name}
	if err := s.store.Repositories().Categories.Insert(wctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDetail, error) {
	rctx, cancel := readContext(ctx, s.timeout)
	defer cancel()
	repos := s.store.Repositories()

	category, err := repos.Categories.FindByID(rctx, id)
	if err != nil {
		return nil, err
	}

	// The vehicle list is derived from vehicle.category_id, page by page.
	vehicles := make([]model.Vehicle, 0)
	filter := repository.VehicleFilter{CategoryID: &id}
	q := repository.ListQuery{Page: 1, PerPage: repository.MaxPerPage, OrderBy: repository.DefaultOrderBy, Desc: true}
	for {
		page, err := repos.Vehicles.FindMany(rctx, filter, q)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, page...)
		if len(page) < q.PerPage {
			break
		}
		q.Page++
	}
	return &CategoryDetail{Category: *category, Vehicles: vehicles}, nil
}

func (s *catalogService) ListCategories(ctx context.Context, q repository.ListQuery) (*CategoryPage, error) {
	rctx, cancel := readContext(ctx, s.timeout)
	defer cancel()
	repos := s.store.Repositories()

	categories, err := repos.Categories.FindMany(rctx, repository.CategoryFilter{}, q)
	if err != nil {
		return nil, err
	}
	total, err := repos.Categories.CountAll(rctx, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Categories: categories, Total: total}, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()
	return s.store.Repositories().Categories.UpdateByID(wctx, id, repository.CategoryUpdate{Name: &name})
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()

	var removed int64
	err := s.inTransaction(wctx, func(ctx context.Context, repos repository.Repositories) error {
		// Holding the category row lock makes concurrent vehicle creation for
		// this category wait, then fail, instead of inserting an orphan.
		if _, err := repos.Categories.LockByID(ctx, id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return errCategoryGone
			}
			return err
		}

		n, err := repos.Vehicles.DeleteMany(ctx, repository.VehicleFilter{CategoryID: &id})
		if err != nil {
			return err
		}
		removed = n
		return repos.Categories.DeleteByID(ctx, id)
	})
	if errors.Is(err, errCategoryGone) {
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("category deleted", zap.String("category_id", id.String()), zap.Int64("vehicles_removed", removed))
	return nil
}

// errCategoryGone aborts a delete transaction whose category is already absent.
var errCategoryGone = fmt.Errorf("%w: category already deleted", apperrors.ErrNotFound)

func (s *catalogService) CreateVehicle(ctx context.Context, in VehicleInput) (*model.Vehicle, error) {
	vehicle := &model.Vehicle{
		Model:          strings.TrimSpace(in.Model),
		Color:          strings.TrimSpace(in.Color),
		RegistrationNo: strings.TrimSpace(in.RegistrationNo),
		CategoryID:     in.CategoryID,
	}
	if err := validateVehicle(vehicle); err != nil {
		return nil, err
	}

	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()

	err := s.inTransaction(wctx, func(ctx context.Context, repos repository.Repositories) error {
		category, err := lockCategory(ctx, repos, vehicle.CategoryID)
		if err != nil {
			return err
		}
		if err := repos.Vehicles.Insert(ctx, vehicle); err != nil {
			return err
		}
		vehicle.Category = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *catalogService) GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	rctx, cancel := readContext(ctx, s.timeout)
	defer cancel()
	return s.store.Repositories().Vehicles.FindByID(rctx, id)
}

func (s *catalogService) ListVehicles(ctx context.Context, q repository.ListQuery) (*VehiclePage, error) {
	rctx, cancel := readContext(ctx, s.timeout)
	defer cancel()
	repos := s.store.Repositories()

	vehicles, err := repos.Vehicles.FindMany(rctx, repository.VehicleFilter{}, q)
	if err != nil {
		return nil, err
	}
	total, err := repos.Vehicles.CountAll(rctx, repository.VehicleFilter{})
	if err != nil {
		return nil, err
	}
	return &VehiclePage{Vehicles: vehicles, Total: total}, nil
}

func (s *catalogService) UpdateVehicle(ctx context.Context, id uuid.UUID, changes VehicleChanges) (*model.Vehicle, error) {
	update, err := normalizeChanges(changes)
	if err != nil {
		return nil, err
	}

	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()

	if update.CategoryID == nil {
		return s.store.Repositories().Vehicles.UpdateByID(wctx, id, update)
	}

	var updated *model.Vehicle
	err = s.inTransaction(wctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := lockCategory(ctx, repos, *update.CategoryID); err != nil {
			return err
		}
		v, err := repos.Vehicles.UpdateByID(ctx, id, update)
		if err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *catalogService) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()
	return s.store.Repositories().Vehicles.DeleteByID(wctx, id)
}

func (s *catalogService) CountVehicles(ctx context.Context) (int64, error) {
	rctx, cancel := readContext(ctx, s.timeout)
	defer cancel()
	return s.store.Repositories().Vehicles.CountAll(rctx, repository.VehicleFilter{})
}

func (s *catalogService) RepairOrphans(ctx context.Context) (int64, error) {
	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()

	n, err := s.store.Repositories().Vehicles.DeleteOrphans(wctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn("removed vehicles referencing missing categories", zap.Int64("count", n))
		s.orphans.OrphansRepaired(n)
	}
	return n, nil
}

// inTransaction runs fn in a store transaction, retrying deadlocks and lock wait timeouts.
// Running out of time or retries is reported as ErrStorageTimeout so callers may retry later.
func (s *catalogService) inTransaction(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := s.store.WithTransaction(ctx, fn)
		if err != nil && repository.IsRetryable(err) {
			s.log.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil, errors.Is(err, apperrors.ErrStorageTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded), repository.IsRetryable(err):
		return fmt.Errorf("transaction after %d attempts: %w: %w", attempt, apperrors.ErrStorageTimeout, err)
	default:
		return err
	}
}

// lockCategory takes the row lock on a vehicle's category. A missing category is
// a validation failure of the vehicle, not a 404.
func lockCategory(ctx context.Context, repos repository.Repositories, id uuid.UUID) (*model.Category, error) {
	category, err := repos.Categories.LockByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrCategoryNotFound
	}
	return category, err
}

func validateVehicle(v *model.Vehicle) error {
	var missing []string
	if v.Model == "" {
		missing = append(missing, "model")
	}
	if v.Color == "" {
		missing = append(missing, "color")
	}
	if v.RegistrationNo == "" {
		missing = append(missing, "registration_no")
	}
	if v.CategoryID == uuid.Nil {
		missing = append(missing, "category_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", apperrors.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func normalizeChanges(c VehicleChanges) (repository.VehicleUpdate, error) {
	update := repository.VehicleUpdate{CategoryID: c.CategoryID}
	for _, f := range []struct {
		name string
		in   *string
		out  **string
	}{
		{"model", c.Model, &update.Model},
		{"color", c.Color, &update.Color},
		{"registration_no", c.RegistrationNo, &update.RegistrationNo},
	} {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == "" {
			return repository.VehicleUpdate{}, fmt.Errorf("%w: %s must not be empty", apperrors.ErrValidation, f.name)
		}
		*f.out = &v
	}
	if c.CategoryID != nil && *c.CategoryID == uuid.Nil {
		return repository.VehicleUpdate{}, fmt.Errorf("%w: category_id must not be empty", apperrors.ErrValidation)
	}
	return update, nil
}

type nopOrphans struct{}

func (nopOrphans) OrphansRepaired(int64) {}
