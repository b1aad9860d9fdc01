package handler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "carhub/internal/errors"
	"carhub/internal/repository"
)

// parseListQuery reads pageNo, perPage, orderBy and order ("asc" or "desc").
func parseListQuery(c echo.Context) (repository.ListQuery, error) {
	q := repository.NewListQuery()
	var order string
	err := echo.QueryParamsBinder(c).
		Int("pageNo", &q.Page).
		Int("perPage", &q.PerPage).
		String("orderBy", &q.OrderBy).
		String("order", &order).
		BindError()
	if err != nil {
		return q, respondError(fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
	}
	if q.Page < 1 || q.PerPage < 1 {
		return q, respondError(fmt.Errorf("%w: pageNo and perPage must be positive", apperrors.ErrValidation))
	}

	switch strings.ToLower(order) {
	case "", "desc":
		q.Desc = true
	case "asc":
		q.Desc = false
	default:
		return q, respondError(fmt.Errorf("%w: order must be asc or desc", apperrors.ErrValidation))
	}
	return q, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	return parseUUID(c.Param("id"))
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperrors.ErrInvalidID
	}
	return id, nil
}
