package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "carhub/internal/errors"
	"carhub/internal/service"
)

// CategoryHandler handles category endpoints.
// A malformed id names no category: reads and updates answer 404, deletes succeed.
type CategoryHandler struct {
	catalog service.CatalogService
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(catalog service.CatalogService) *CategoryHandler {
	return &CategoryHandler{catalog: catalog}
}

// CategoryRequest represents a category create or update request.
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// CreateCategory godoc
// @Summary Create a category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryRequest true "Category"
// @Success 201 {object} CategoryResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /category [post]
func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req CategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.CreateCategory(c.Request().Context(), req.Name)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, toCategoryResponse(*category))
}

// ListCategories godoc
// @Summary List categories
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param pageNo query int false "Page number" default(1)
// @Param perPage query int false "Page size" default(10)
// @Param orderBy query string false "Sort field: name, createdAt, updatedAt"
// @Param order query string false "asc or desc" default(desc)
// @Success 200 {object} CategoryListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /category [get]
func (h *CategoryHandler) ListCategories(c echo.Context) error {
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}

	page, err := h.catalog.ListCategories(c.Request().Context(), q)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, CategoryListResponse{
		Total:      page.Total,
		Categories: toCategoryResponses(page.Categories),
	})
}

// GetCategory godoc
// @Summary Get a category with its cars
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Success 200 {object} CategoryDetailResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /category/{id} [get]
func (h *CategoryHandler) GetCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(apperrors.ErrNotFound)
	}

	detail, err := h.catalog.GetCategory(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, toCategoryDetailResponse(detail.Category, detail.Vehicles))
}

// UpdateCategory godoc
// @Summary Rename a category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Param request body CategoryRequest true "Category"
// @Success 200 {object} CategoryResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /category/{id} [put]
func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(apperrors.ErrNotFound)
	}
	var req CategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.Request().Context(), id, req.Name)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, toCategoryResponse(*category))
}

// DeleteCategory godoc
// @Summary Delete a category and its cars
// @Description Idempotent: deleting a missing category succeeds.
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /category/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c)
	if err == nil {
		if err := h.catalog.DeleteCategory(c.Request().Context(), id); err != nil {
			return respondError(err)
		}
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: "Category deleted successfully",
	})
}
