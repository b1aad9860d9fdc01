package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"carhub/internal/service"
)

// CarHandler handles vehicle endpoints.
type CarHandler struct {
	catalog service.CatalogService
}

// NewCarHandler creates a new car handler.
func NewCarHandler(catalog service.CatalogService) *CarHandler {
	return &CarHandler{catalog: catalog}
}

// CreateCarRequest represents a vehicle creation request.
type CreateCarRequest struct {
	Model          string `json:"model" validate:"required,max=255"`
	Color          string `json:"color" validate:"required,max=64"`
	RegistrationNo string `json:"registration_no" validate:"required,max=64"`
	CategoryID     string `json:"category_id" validate:"required,uuid"`
}

// UpdateCarRequest represents a partial vehicle update. Omitted fields are unchanged.
type UpdateCarRequest struct {
	Model          *string `json:"model" validate:"omitempty,max=255"`
	Color          *string `json:"color" validate:"omitempty,max=64"`
	RegistrationNo *string `json:"registration_no" validate:"omitempty,max=64"`
	CategoryID     *string `json:"category_id" validate:"omitempty,uuid"`
}

// CreateCar godoc
// @Summary Create a car
// @Tags cars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCarRequest true "Car"
// @Success 201 {object} VehicleResponse
// @Failure 400 {object} errors.ErrorResponse "Invalid input or unknown category"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /car [post]
func (h *CarHandler) CreateCar(c echo.Context) error {
	var req CreateCarRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	categoryID, err := parseUUID(req.CategoryID)
	if err != nil {
		return respondError(err)
	}

	vehicle, err := h.catalog.CreateVehicle(c.Request().Context(), service.VehicleInput{
		Model:          req.Model,
		Color:          req.Color,
		RegistrationNo: req.RegistrationNo,
		CategoryID:     categoryID,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, toVehicleResponse(*vehicle))
}

// ListCars godoc
// @Summary List cars
// @Tags cars
// @Produce json
// @Security BearerAuth
// @Param pageNo query int false "Page number" default(1)
// @Param perPage query int false "Page size" default(10)
// @Param orderBy query string false "Sort field: model, color, registration_no, category_id, createdAt, updatedAt"
// @Param order query string false "asc or desc" default(desc)
// @Success 200 {object} VehicleListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /car [get]
func (h *CarHandler) ListCars(c echo.Context) error {
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}

	page, err := h.catalog.ListVehicles(c.Request().Context(), q)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, VehicleListResponse{
		Cars:  toVehicleResponses(page.Vehicles),
		Total: page.Total,
	})
}

// CountCars godoc
// @Summary Count cars
// @Tags cars
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CountResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /car/count [get]
func (h *CarHandler) CountCars(c echo.Context) error {
	total, err := h.catalog.CountVehicles(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, CountResponse{Total: total})
}

// GetCar godoc
// @Summary Get a car
// @Tags cars
// @Produce json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Success 200 {object} VehicleResponse
// @Failure 400 {object} errors.ErrorResponse "Invalid car ID format"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /car/{id} [get]
func (h *CarHandler) GetCar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(err)
	}

	vehicle, err := h.catalog.GetVehicle(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, toVehicleResponse(*vehicle))
}

// UpdateCar godoc
// @Summary Update a car
// @Tags cars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Param request body UpdateCarRequest true "Fields to change"
// @Success 200 {object} VehicleResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /car/{id} [put]
func (h *CarHandler) UpdateCar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(err)
	}
	var req UpdateCarRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	changes := service.VehicleChanges{
		Model:          req.Model,
		Color:          req.Color,
		RegistrationNo: req.RegistrationNo,
	}
	if req.CategoryID != nil {
		categoryID, err := parseUUID(*req.CategoryID)
		if err != nil {
			return respondError(err)
		}
		changes.CategoryID = &categoryID
	}

	vehicle, err := h.catalog.UpdateVehicle(c.Request().Context(), id, changes)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, toVehicleResponse(*vehicle))
}

// DeleteCar godoc
// @Summary Delete a car
// @Tags cars
// @Produce json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /car/{id} [delete]
func (h *CarHandler) DeleteCar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(err)
	}

	if err := h.catalog.DeleteVehicle(c.Request().Context(), id); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: "Car deleted successfully",
	})
}
