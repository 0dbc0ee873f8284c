package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/internal/repository"
	"github.com/retailpoint/pos-gateway/internal/services"
)

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) Create(ctx context.Context, req model.ProductCreateRequest) (*model.Product, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id int64, req model.ProductUpdateRequest) (*model.Product, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) GetByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	args := m.Called(ctx, barcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Product), args.Error(1)
}

func sampleProduct() *model.Product {
	return &model.Product{
		ID:      10,
		Barcode: "1234567890128",
		Name:    "Espresso Beans",
		Price:   decimal.RequireFromString("10.00"),
		Stock:   5,
	}
}

func TestProductHandler_ListProducts(t *testing.T) {
	t.Run("plain list with filters", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.ProductFilter) bool {
			return f.StockLevel == model.StockLevelLow && f.Threshold == 3 && f.SortBy == "stock" && f.Desc
		})).Return([]*model.Product{sampleProduct()}, nil)

		ctx := setupTestContext("GET", "/api/v1/products?stockLevel=low&threshold=3&sortBy=stock&sortOrder=desc", nil)
		handler.ListProducts(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var resp []*model.Product
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "Espresso Beans", resp[0].Name)

		svc.AssertExpectations(t)
	})

	t.Run("barcode lookup returns single product", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("GetByBarcode", mock.Anything, "1234567890128").Return(sampleProduct(), nil)

		ctx := setupTestContext("GET", "/api/v1/products?barcode=1234567890128", nil)
		handler.ListProducts(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var resp model.Product
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, int64(10), resp.ID)

		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("unknown barcode is 404", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("GetByBarcode", mock.Anything, "0000000000000").Return(nil, repository.ErrProductNotFound)

		ctx := setupTestContext("GET", "/api/v1/products?barcode=0000000000000", nil)
		handler.ListProducts(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestProductHandler_GetProduct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Get", mock.Anything, int64(10)).Return(sampleProduct(), nil)

		ctx := setupTestContext("GET", "/api/v1/products/10", nil)
		ctx.SetUserValue("id", "10")
		handler.GetProduct(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrProductNotFound)

		ctx := setupTestContext("GET", "/api/v1/products/99", nil)
		ctx.SetUserValue("id", "99")
		handler.GetProduct(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestProductHandler_CreateProduct(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(r model.ProductCreateRequest) bool {
			return r.Barcode == "1234567890128" && r.Stock == 5
		})).Return(sampleProduct(), nil)

		body, _ := json.Marshal(model.ProductCreateRequest{
			Barcode: "1234567890128",
			Name:    "Espresso Beans",
			Price:   decimal.RequireFromString("10.00"),
			Stock:   5,
		})

		ctx := setupTestContext("POST", "/api/v1/products", body)
		handler.CreateProduct(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("duplicate barcode is a conflict", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrBarcodeExists)

		ctx := setupTestContext("POST", "/api/v1/products",
			[]byte(`{"barcode":"1234567890128","name":"Espresso Beans","price":"10.00","stock":5}`))
		handler.CreateProduct(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("validation failure is a bad request", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: field 'Name' failed on tag 'required'", services.ErrInvalidProduct))

		ctx := setupTestContext("POST", "/api/v1/products", []byte(`{"name":""}`))
		handler.CreateProduct(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	svc := new(MockProductService)
	handler := NewProductHandler(svc)

	svc.On("Update", mock.Anything, int64(10), mock.Anything).Return(sampleProduct(), nil)

	body, _ := json.Marshal(model.ProductUpdateRequest{
		Barcode: "1234567890128",
		Name:    "Espresso Beans",
		Price:   decimal.RequireFromString("11.00"),
		Stock:   8,
	})

	ctx := setupTestContext("PUT", "/api/v1/products/10", body)
	ctx.SetUserValue("id", "10")
	handler.UpdateProduct(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Delete", mock.Anything, int64(10)).Return(nil)

		ctx := setupTestContext("DELETE", "/api/v1/products/10", nil)
		ctx.SetUserValue("id", "10")
		handler.DeleteProduct(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("referenced product cannot be deleted", func(t *testing.T) {
		svc := new(MockProductService)
		handler := NewProductHandler(svc)

		svc.On("Delete", mock.Anything, int64(10)).Return(repository.ErrProductReferenced)

		ctx := setupTestContext("DELETE", "/api/v1/products/10", nil)
		ctx.SetUserValue("id", "10")
		handler.DeleteProduct(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}
