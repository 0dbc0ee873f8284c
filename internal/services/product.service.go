package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/pkg/validator"
)

var (
	ErrBarcodeExists  = errors.New("barcode already exists")
	ErrInvalidProduct = errors.New("invalid product")
)

// CatalogRepository is the product store as seen by the catalog service.
type CatalogRepository interface {
	Create(ctx context.Context, p *model.Product) (*model.Product, error)
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	List(ctx context.Context, f model.ProductFilter) ([]*model.Product, error)
	Update(ctx context.Context, p *model.Product) (*model.Product, error)
	Delete(ctx context.Context, id int64) error
}

type ProductService struct {
	products CatalogRepository
}

func NewProductService(products CatalogRepository) *ProductService {
	return &ProductService{products: products}
}

func (s *ProductService) Create(ctx context.Context, req model.ProductCreateRequest) (*model.Product, error) {
	if err := validateProductFields(req.Price.IsNegative(), &req); err != nil {
		return nil, err
	}

	// Duplicate barcode check before insert for a friendly error; the unique
	// index still backstops races.
	existing, err := s.products.GetByBarcode(ctx, req.Barcode)
	if err == nil && existing != nil {
		return nil, ErrBarcodeExists
	}

	return s.products.Create(ctx, &model.Product{
		Barcode:     req.Barcode,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
}

func (s *ProductService) Update(ctx context.Context, id int64, req model.ProductUpdateRequest) (*model.Product, error) {
	if err := validateProductFields(req.Price.IsNegative(), &req); err != nil {
		return nil, err
	}

	return s.products.Update(ctx, &model.Product{
		ID:          id,
		Barcode:     req.Barcode,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

func (s *ProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *ProductService) GetByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	return s.products.GetByBarcode(ctx, barcode)
}

func (s *ProductService) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, error) {
	return s.products.List(ctx, f)
}

func validateProductFields(negativePrice bool, req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		first := errs[0]
		return fmt.Errorf("%w: field '%s' failed on tag '%s'", ErrInvalidProduct, first.FailedField, first.Tag)
	}
	if negativePrice {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	return nil
}
