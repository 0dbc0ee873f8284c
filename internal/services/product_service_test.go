package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/internal/repository"
)

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	args := m.Called(ctx, barcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogRepository) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Product), args.Error(1)
}

func (m *MockCatalogRepository) Update(ctx context.Context, p *model.Product) (*model.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestProductService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates when barcode is free", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		repo.On("GetByBarcode", ctx, "1234567890128").Return(nil, repository.ErrProductNotFound)
		repo.On("Create", ctx, mock.MatchedBy(func(p *model.Product) bool {
			return p.Barcode == "1234567890128" && p.Stock == 5
		})).Return(&model.Product{ID: 1, Barcode: "1234567890128", Name: "Espresso Beans"}, nil)

		p, err := service.Create(ctx, model.ProductCreateRequest{
			Barcode: "1234567890128",
			Name:    "Espresso Beans",
			Price:   decimal.RequireFromString("10.00"),
			Stock:   5,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.ID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects duplicate barcode", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		repo.On("GetByBarcode", ctx, "1234567890128").
			Return(&model.Product{ID: 1, Barcode: "1234567890128"}, nil)

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Barcode: "1234567890128",
			Name:    "Espresso Beans",
			Price:   decimal.RequireFromString("10.00"),
		})
		assert.ErrorIs(t, err, ErrBarcodeExists)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Barcode: "1234567890128",
			Price:   decimal.RequireFromString("10.00"),
		})
		assert.ErrorIs(t, err, ErrInvalidProduct)
		repo.AssertNotCalled(t, "GetByBarcode", mock.Anything, mock.Anything)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Barcode: "1234567890128",
			Name:    "Espresso Beans",
			Price:   decimal.RequireFromString("-1.00"),
		})
		assert.ErrorIs(t, err, ErrInvalidProduct)
	})

	t.Run("rejects negative stock", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Barcode: "1234567890128",
			Name:    "Espresso Beans",
			Price:   decimal.RequireFromString("10.00"),
			Stock:   -3,
		})
		assert.ErrorIs(t, err, ErrInvalidProduct)
	})
}

func TestProductService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates valid fields", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		repo.On("Update", ctx, mock.MatchedBy(func(p *model.Product) bool {
			return p.ID == 7 && p.Name == "Gooseneck Kettle"
		})).Return(&model.Product{ID: 7, Name: "Gooseneck Kettle"}, nil)

		p, err := service.Update(ctx, 7, model.ProductUpdateRequest{
			Barcode: "5000000000005",
			Name:    "Gooseneck Kettle",
			Price:   decimal.RequireFromString("49.00"),
			Stock:   6,
		})
		require.NoError(t, err)
		assert.Equal(t, "Gooseneck Kettle", p.Name)
	})

	t.Run("validation failure skips the store", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := NewProductService(repo)

		_, err := service.Update(ctx, 7, model.ProductUpdateRequest{
			Name:  "No Barcode",
			Price: decimal.RequireFromString("1.00"),
		})
		assert.ErrorIs(t, err, ErrInvalidProduct)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestProductService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCatalogRepository)
	service := NewProductService(repo)

	repo.On("Delete", ctx, int64(3)).Return(repository.ErrProductReferenced)

	err := service.Delete(ctx, 3)
	assert.ErrorIs(t, err, repository.ErrProductReferenced)
}
