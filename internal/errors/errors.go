package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by repositories and services wraps one of these,
// so handlers can dispatch with errors.Is.
var (
	// ErrValidation is returned when input is malformed or violates a precondition.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique field already holds the value.
	ErrConflict = errors.New("record already exists")
	// ErrStorage is returned for unexpected storage failures.
	ErrStorage = errors.New("storage error")
	// ErrStorageTimeout is returned when a storage call exceeds the request deadline.
	// Callers may retry.
	ErrStorageTimeout = errors.New("storage timeout")
)

// Domain errors.
var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong password alike.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrInvalidToken is returned when a session token is missing, malformed, forged or expired.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrTooManyAttempts is returned when login attempts for an email exceed the window budget.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrCategoryNotFound is returned when a vehicle references a category that does not exist.
	ErrCategoryNotFound = fmt.Errorf("%w: category does not exist", ErrValidation)
	// ErrMailDelivery is returned when a generated password could not be mailed.
	// It is reported as an internal error.
	ErrMailDelivery = errors.New("password delivery failed")
	// ErrInvalidID is returned when a path identifier is not a valid UUID.
	ErrInvalidID = fmt.Errorf("%w: invalid id", ErrValidation)
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Code    string       `json:"code"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     []FieldError
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: e.Message,
		Code:    e.Code,
		Errors:  e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
// Anything it does not recognize becomes an opaque 500.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, "Incorrect email or password", "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidToken):
		return NewHTTPError(http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
	case errors.Is(err, ErrTooManyAttempts):
		return NewHTTPError(http.StatusTooManyRequests, "Too many attempts, try again later", "TOO_MANY_ATTEMPTS")
	case errors.Is(err, ErrCategoryNotFound):
		return NewHTTPError(http.StatusBadRequest, "Category does not exist", "CATEGORY_NOT_FOUND")
	case errors.Is(err, ErrInvalidID):
		return NewHTTPError(http.StatusBadRequest, "Invalid id format", "INVALID_ID")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, "Not found", "NOT_FOUND")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, "Already exists", "CONFLICT")
	case errors.Is(err, ErrStorageTimeout):
		return NewHTTPError(http.StatusServiceUnavailable, "Service temporarily unavailable, retry later", "STORAGE_TIMEOUT")
	default:
		return NewHTTPError(http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
	}
}
