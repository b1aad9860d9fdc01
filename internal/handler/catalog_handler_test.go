package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "carhub/internal/errors"
	"carhub/internal/model"
	"carhub/internal/repository"
	"carhub/internal/service"
)

func setupCatalog(t *testing.T) (*MockCatalogService, *echo.Echo) {
	t.Helper()
	e := newTestEcho(zap.NewNop())
	svc := new(MockCatalogService)
	categories := NewCategoryHandler(svc)
	cars := NewCarHandler(svc)

	e.POST("/category", categories.CreateCategory)
	e.GET("/category", categories.ListCategories)
	e.GET("/category/:id", categories.GetCategory)
	e.PUT("/category/:id", categories.UpdateCategory)
	e.DELETE("/category/:id", categories.DeleteCategory)
	e.POST("/car", cars.CreateCar)
	e.GET("/car", cars.ListCars)
	e.GET("/car/count", cars.CountCars)
	e.GET("/car/:id", cars.GetCar)
	e.PUT("/car/:id", cars.UpdateCar)
	e.DELETE("/car/:id", cars.DeleteCar)

	t.Cleanup(func() { svc.AssertExpectations(t) })
	return svc, e
}

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestCreateCategory(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	svc.On("CreateCategory", mock.Anything, "SUV").
		Return(&model.Category{ID: id, Name: "SUV", CreatedAt: testTime, UpdatedAt: testTime}, nil)

	rec := serve(e, http.MethodPost, "/category", `{"name":"SUV"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp CategoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "SUV", resp.Name)
}

func TestCreateCategory_MissingName(t *testing.T) {
	_, e := setupCatalog(t)

	rec := serve(e, http.MethodPost, "/category", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "name", resp.Errors[0].Field)
	assert.Equal(t, "is required", resp.Errors[0].Message)
}

func TestCreateCategory_Duplicate(t *testing.T) {
	svc, e := setupCatalog(t)
	svc.On("CreateCategory", mock.Anything, "SUV").Return(nil, fmt.Errorf("%w: name", apperrors.ErrConflict))

	rec := serve(e, http.MethodPost, "/category", `{"name":"SUV"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListCategories_Query(t *testing.T) {
	svc, e := setupCatalog(t)
	want := repository.ListQuery{Page: 2, PerPage: 5, OrderBy: "name", Desc: false}
	svc.On("ListCategories", mock.Anything, want).Return(&service.CategoryPage{
		Categories: []model.Category{{ID: uuid.New(), Name: "SUV"}},
		Total:      6,
	}, nil)

	rec := serve(e, http.MethodGet, "/category?pageNo=2&perPage=5&orderBy=name&order=asc", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp CategoryListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(6), resp.Total)
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, "SUV", resp.Categories[0].Name)
}

func TestListCategories_Defaults(t *testing.T) {
	svc, e := setupCatalog(t)
	svc.On("ListCategories", mock.Anything, repository.NewListQuery()).
		Return(&service.CategoryPage{}, nil)

	rec := serve(e, http.MethodGet, "/category", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"categories":[]}`, rec.Body.String())
}

func TestListQuery_Rejected(t *testing.T) {
	for _, target := range []string{
		"/category?order=sideways",
		"/category?pageNo=0",
		"/category?perPage=-1",
		"/car?pageNo=abc",
	} {
		t.Run(target, func(t *testing.T) {
			_, e := setupCatalog(t)

			rec := serve(e, http.MethodGet, target, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec.Body.Bytes()).Code)
		})
	}
}

func TestGetCategory_WithCars(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	category := model.Category{ID: id, Name: "SUV"}
	svc.On("GetCategory", mock.Anything, id).Return(&service.CategoryDetail{
		Category: category,
		Vehicles: []model.Vehicle{
			{ID: uuid.New(), Model: "X5", Color: "black", RegistrationNo: "AB-1", CategoryID: id, Category: &category},
		},
	}, nil)

	rec := serve(e, http.MethodGet, "/category/"+id.String(), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp CategoryDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SUV", resp.Name)
	require.Len(t, resp.Cars, 1)
	assert.Equal(t, "X5", resp.Cars[0].Model)
	assert.Nil(t, resp.Cars[0].Category)
}

func TestGetCategory_MalformedIDIsNotFound(t *testing.T) {
	_, e := setupCatalog(t)

	rec := serve(e, http.MethodGet, "/category/not-a-uuid", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCategory(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	svc.On("UpdateCategory", mock.Anything, id, "Sedan").Return(&model.Category{ID: id, Name: "Sedan"}, nil)

	rec := serve(e, http.MethodPut, "/category/"+id.String(), `{"name":"Sedan"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Sedan"`)
}

func TestUpdateCategory_NotFound(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	svc.On("UpdateCategory", mock.Anything, id, "Sedan").Return(nil, apperrors.ErrNotFound)

	rec := serve(e, http.MethodPut, "/category/"+id.String(), `{"name":"Sedan"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCategory(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	svc.On("DeleteCategory", mock.Anything, id).Return(nil)

	rec := serve(e, http.MethodDelete, "/category/"+id.String(), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Category deleted successfully"}`, rec.Body.String())
}

func TestDeleteCategory_MalformedIDSucceeds(t *testing.T) {
	svc, e := setupCatalog(t)

	rec := serve(e, http.MethodDelete, "/category/nope", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertNotCalled(t, "DeleteCategory", mock.Anything, mock.Anything)
}

func TestDeleteCategory_StorageTimeout(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	svc.On("DeleteCategory", mock.Anything, id).Return(fmt.Errorf("%w: delete", apperrors.ErrStorageTimeout))

	rec := serve(e, http.MethodDelete, "/category/"+id.String(), "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateCar(t *testing.T) {
	svc, e := setupCatalog(t)
	categoryID := uuid.New()
	in := service.VehicleInput{Model: "X5", Color: "black", RegistrationNo: "AB-1", CategoryID: categoryID}
	svc.On("CreateVehicle", mock.Anything, in).Return(&model.Vehicle{
		ID: uuid.New(), Model: "X5", Color: "black", RegistrationNo: "AB-1", CategoryID: categoryID,
	}, nil)

	body := fmt.Sprintf(`{"model":"X5","color":"black","registration_no":"AB-1","category_id":%q}`, categoryID)
	rec := serve(e, http.MethodPost, "/car", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp VehicleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, categoryID, resp.CategoryID)
	assert.Equal(t, "AB-1", resp.RegistrationNo)
}

func TestCreateCar_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad category id", `{"model":"X5","color":"black","registration_no":"AB-1","category_id":"nope"}`, "category_id"},
		{"missing model", fmt.Sprintf(`{"color":"black","registration_no":"AB-1","category_id":%q}`, uuid.New()), "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := setupCatalog(t)

			rec := serve(e, http.MethodPost, "/car", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec.Body.Bytes())
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tt.field, resp.Errors[0].Field)
		})
	}
}

func TestCreateCar_UnknownCategory(t *testing.T) {
	svc, e := setupCatalog(t)
	svc.On("CreateVehicle", mock.Anything, mock.Anything).Return(nil, apperrors.ErrCategoryNotFound)

	body := fmt.Sprintf(`{"model":"X5","color":"black","registration_no":"AB-1","category_id":%q}`, uuid.New())
	rec := serve(e, http.MethodPost, "/car", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CATEGORY_NOT_FOUND", decodeError(t, rec.Body.Bytes()).Code)
}

func TestListCars(t *testing.T) {
	svc, e := setupCatalog(t)
	want := repository.NewListQuery()
	want.OrderBy = "model"
	svc.On("ListVehicles", mock.Anything, want).Return(&service.VehiclePage{
		Vehicles: []model.Vehicle{{ID: uuid.New(), Model: "X5"}},
		Total:    1,
	}, nil)

	rec := serve(e, http.MethodGet, "/car?orderBy=model", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp VehicleListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Cars, 1)
}

func TestCountCars(t *testing.T) {
	svc, e := setupCatalog(t)
	svc.On("CountVehicles", mock.Anything).Return(int64(3), nil)

	rec := serve(e, http.MethodGet, "/car/count", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":3}`, rec.Body.String())
}

func TestGetCar(t *testing.T) {
	t.Run("bad id", func(t *testing.T) {
		_, e := setupCatalog(t)

		rec := serve(e, http.MethodGet, "/car/123", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_ID", decodeError(t, rec.Body.Bytes()).Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc, e := setupCatalog(t)
		id := uuid.New()
		svc.On("GetVehicle", mock.Anything, id).Return(nil, apperrors.ErrNotFound)

		rec := serve(e, http.MethodGet, "/car/"+id.String(), "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("found with category", func(t *testing.T) {
		svc, e := setupCatalog(t)
		id := uuid.New()
		category := &model.Category{ID: uuid.New(), Name: "SUV"}
		svc.On("GetVehicle", mock.Anything, id).
			Return(&model.Vehicle{ID: id, Model: "X5", CategoryID: category.ID, Category: category}, nil)

		rec := serve(e, http.MethodGet, "/car/"+id.String(), "")

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp VehicleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Category)
		assert.Equal(t, "SUV", resp.Category.Name)
	})
}

func TestUpdateCar_Partial(t *testing.T) {
	svc, e := setupCatalog(t)
	id := uuid.New()
	svc.On("UpdateVehicle", mock.Anything, id, mock.MatchedBy(func(c service.VehicleChanges) bool {
		return c.Color != nil && *c.Color == "red" && c.Model == nil && c.RegistrationNo == nil && c.CategoryID == nil
	})).Return(&model.Vehicle{ID: id, Model: "X5", Color: "red"}, nil)

	rec := serve(e, http.MethodPut, "/car/"+id.String(), `{"color":"red"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"color":"red"`)
}

func TestUpdateCar_MovesCategory(t *testing.T) {
	svc, e := setupCatalog(t)
	id, categoryID := uuid.New(), uuid.New()
	svc.On("UpdateVehicle", mock.Anything, id, mock.MatchedBy(func(c service.VehicleChanges) bool {
		return c.CategoryID != nil && *c.CategoryID == categoryID
	})).Return(&model.Vehicle{ID: id, CategoryID: categoryID}, nil)

	rec := serve(e, http.MethodPut, "/car/"+id.String(), fmt.Sprintf(`{"category_id":%q}`, categoryID))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateCar_InvalidCategoryID(t *testing.T) {
	_, e := setupCatalog(t)

	rec := serve(e, http.MethodPut, "/car/"+uuid.NewString(), `{"category_id":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteCar(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		svc, e := setupCatalog(t)
		id := uuid.New()
		svc.On("DeleteVehicle", mock.Anything, id).Return(nil)

		rec := serve(e, http.MethodDelete, "/car/"+id.String(), "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"message":"Car deleted successfully"}`, rec.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		svc, e := setupCatalog(t)
		id := uuid.New()
		svc.On("DeleteVehicle", mock.Anything, id).Return(apperrors.ErrNotFound)

		rec := serve(e, http.MethodDelete, "/car/"+id.String(), "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type acceptAll struct{}

func (acceptAll) Validate(interface{}) error { return nil }

func TestCarHandler_MalformedCategoryIDWithoutValidator(t *testing.T) {
	e := newTestEcho(zap.NewNop())
	e.Validator = acceptAll{}
	svc := new(MockCatalogService)
	h := NewCarHandler(svc)
	e.POST("/car", h.CreateCar)
	e.PUT("/car/:id", h.UpdateCar)

	rec := serve(e, http.MethodPost, "/car", `{"model":"X5","color":"black","registration_no":"AB-1","category_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeError(t, rec.Body.Bytes()).Code)

	rec = serve(e, http.MethodPut, "/car/"+uuid.NewString(), `{"category_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeError(t, rec.Body.Bytes()).Code)

	svc.AssertNotCalled(t, "CreateVehicle", mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "UpdateVehicle", mock.Anything, mock.Anything, mock.Anything)
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()

	got, err := parseUUID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseUUID("not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrInvalidID)
}
