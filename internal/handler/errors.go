package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "carhub/internal/errors"
)

// respondError converts a service error into the echo error carrying the response
// body. The original error is kept as Internal for logging.
func respondError(err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func invalidBody(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
		Message: "Invalid request body",
		Code:    "VALIDATION_ERROR",
	}).SetInternal(err)
}

// validationFailed lists every failed field of a validator error.
func validationFailed(err error) error {
	httpErr := apperrors.NewHTTPError(http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR")
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			httpErr.Fields = append(httpErr.Fields, apperrors.FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid id"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return invalidBody(err)
	}
	if err := c.Validate(req); err != nil {
		return validationFailed(err)
	}
	return nil
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            "VALIDATION_ERROR",
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusConflict:              "CONFLICT",
	http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	http.StatusTooManyRequests:       "TOO_MANY_ATTEMPTS",
	http.StatusServiceUnavailable:    "SERVICE_UNAVAILABLE",
}

func codeForStatus(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// resolveError returns the status and body to send for err, and the error to log.
func resolveError(err error) (int, apperrors.ErrorResponse, error) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		httpErr := apperrors.MapErrorToHTTP(err)
		return httpErr.StatusCode, httpErr.ToErrorResponse(), err
	}

	cause := err
	if he.Internal != nil {
		cause = he.Internal
	}
	if he.Code >= http.StatusInternalServerError {
		// Plain string messages of server errors may carry internals.
		if body, ok := he.Message.(apperrors.ErrorResponse); ok {
			return he.Code, body, cause
		}
		return he.Code, apperrors.ErrorResponse{Message: "Internal server error", Code: "INTERNAL_ERROR"}, cause
	}

	switch msg := he.Message.(type) {
	case apperrors.ErrorResponse:
		return he.Code, msg, cause
	case string:
		return he.Code, apperrors.ErrorResponse{Message: msg, Code: codeForStatus(he.Code)}, cause
	default:
		return he.Code, apperrors.ErrorResponse{Message: http.StatusText(he.Code), Code: codeForStatus(he.Code)}, cause
	}
}

// NewHTTPErrorHandler renders every error as an ErrorResponse. Server errors are
// logged with their cause; the client only sees the opaque message.
func NewHTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body, cause := resolveError(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(cause),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

// Unauthorized is the single response for a missing, malformed, forged or expired token.
func Unauthorized(err error) error {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Message: "Unauthorized",
		Code:    "UNAUTHORIZED",
	}).SetInternal(err)
}
