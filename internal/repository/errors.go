package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	apperrors "carhub/internal/errors"
)

// MySQL server error numbers the repositories react to.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrNoReferencedRow = 1452
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// translate maps driver and gorm errors onto the application error kinds.
// Errors that already carry a kind are returned unchanged.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if isAppError(err) {
		return err
	}

	var myErr *mysql.MySQLError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", op, apperrors.ErrCategoryNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, apperrors.ErrStorageTimeout)
	case errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry:
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	case errors.As(err, &myErr) && myErr.Number == mysqlErrNoReferencedRow:
		return fmt.Errorf("%s: %w", op, apperrors.ErrCategoryNotFound)
	default:
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStorage, err)
	}
}

func isAppError(err error) bool {
	for _, kind := range []error{
		apperrors.ErrValidation,
		apperrors.ErrNotFound,
		apperrors.ErrConflict,
		apperrors.ErrStorage,
		apperrors.ErrStorageTimeout,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is a transaction conflict worth retrying:
// an InnoDB deadlock or lock wait timeout.
func IsRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}
