package handler

import (
	"time"

	"github.com/google/uuid"

	"carhub/internal/model"
)

// MessageResponse is returned by operations without a resource body.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CategoryResponse represents a category.
type CategoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryDetailResponse is a category with its vehicles.
type CategoryDetailResponse struct {
	CategoryResponse
	Cars []VehicleResponse `json:"cars"`
}

// CategoryListResponse is one page of categories.
type CategoryListResponse struct {
	Total      int64              `json:"total"`
	Categories []CategoryResponse `json:"categories"`
}

// VehicleResponse represents a vehicle.
type VehicleResponse struct {
	ID             uuid.UUID         `json:"id"`
	Model          string            `json:"model"`
	Color          string            `json:"color"`
	RegistrationNo string            `json:"registration_no"`
	CategoryID     uuid.UUID         `json:"category_id"`
	Category       *CategoryResponse `json:"category,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// VehicleListResponse is one page of vehicles.
type VehicleListResponse struct {
	Cars  []VehicleResponse `json:"cars"`
	Total int64             `json:"total"`
}

// CountResponse carries a row count.
type CountResponse struct {
	Total int64 `json:"total"`
}

func toCategoryResponse(c model.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toCategoryDetailResponse(c model.Category, vehicles []model.Vehicle) CategoryDetailResponse {
	cars := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		// The parent is already the enclosing object.
		v.Category = nil
		cars = append(cars, toVehicleResponse(v))
	}
	return CategoryDetailResponse{CategoryResponse: toCategoryResponse(c), Cars: cars}
}

func toCategoryResponses(categories []model.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	return out
}

func toVehicleResponse(v model.Vehicle) VehicleResponse {
	resp := VehicleResponse{
		ID:             v.ID,
		Model:          v.Model,
		Color:          v.Color,
		RegistrationNo: v.RegistrationNo,
		CategoryID:     v.CategoryID,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	if v.Category != nil {
		c := toCategoryResponse(*v.Category)
		resp.Category = &c
	}
	return resp
}

func toVehicleResponses(vehicles []model.Vehicle) []VehicleResponse {
	out := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, toVehicleResponse(v))
	}
	return out
}
