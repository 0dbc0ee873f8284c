package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/pkg/pg"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductReferenced = errors.New("product has sale history and cannot be deleted")
)

// InsufficientStockError carries the details a cashier needs to resolve the
// failure. It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (ID: %d). Available: %d, Requested: %d",
		e.Name, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

var allowedProductSortFields = map[string]string{
	"id":        "id",
	"name":      "name",
	"price":     "price",
	"stock":     "stock",
	"barcode":   "barcode",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type ProductRepository struct {
	*pg.DB
}

func NewProductRepository(db *pg.DB) *ProductRepository {
	return &ProductRepository{
		db,
	}
}

func (r *ProductRepository) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	entity := toProductEntity(p)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toProductModel(entity), nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var entity ProductEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return toProductModel(&entity), nil
}

func (r *ProductRepository) GetByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	var entity ProductEntity
	err := r.Read(ctx).Where("barcode = ?", barcode).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return toProductModel(&entity), nil
}

func (r *ProductRepository) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, error) {
	q := r.Read(ctx).Model(&ProductEntity{})

	threshold := f.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	switch f.StockLevel {
	case model.StockLevelZero:
		q = q.Where("stock = 0")
	case model.StockLevelLow:
		q = q.Where("stock > 0 AND stock <= ?", threshold)
	}

	sortKey, ok := allowedProductSortFields[f.SortBy]
	if !ok {
		sortKey = "name"
	}
	order := sortKey + " ASC"
	if f.Desc {
		order = sortKey + " DESC"
	}

	var entities []*ProductEntity
	if err := q.Order(order).Find(&entities).Error; err != nil {
		return nil, err
	}
	return toProductModels(entities), nil
}

func (r *ProductRepository) Update(ctx context.Context, p *model.Product) (*model.Product, error) {
	entity := toProductEntity(p)

	result := r.Write(ctx).Model(&ProductEntity{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"barcode":     entity.Barcode,
			"name":        entity.Name,
			"description": entity.Description,
			"price":       entity.Price,
			"stock":       entity.Stock,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrProductNotFound
	}

	return r.GetByID(ctx, p.ID)
}

// Delete refuses to remove a product that appears in any historical sale;
// those rows keep a back-reference for receipts.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	var refs int64
	err := r.Read(ctx).Model(&TransactionItemEntity{}).
		Where("product_id = ?", id).
		Count(&refs).Error
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrProductReferenced
	}

	result := r.Write(ctx).Where("id = ?", id).Delete(&ProductEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ReserveStock atomically takes quantity units off the product's stock and
// returns the snapshot used downstream for the sale record. The decrement is
// conditional (stock >= quantity at write time), so two concurrent checkouts
// can never both take the last unit regardless of isolation level. Run it
// inside WithinTransaction so a later failure rolls the decrement back.
func (r *ProductRepository) ReserveStock(ctx context.Context, productID int64, quantity int) (*model.ProductSnapshot, error) {
	var entity ProductEntity
	err := r.Write(ctx).Where("id = ?", productID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if entity.Stock < quantity {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Name:      entity.Name,
			Available: entity.Stock,
			Requested: quantity,
		}
	}

	result := r.Write(ctx).Model(&ProductEntity{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race: somebody drained the stock between the read and the
		// conditional update. Re-read for an accurate message.
		return nil, r.reserveFailureReason(ctx, productID, quantity)
	}

	return &model.ProductSnapshot{
		ProductID: entity.ID,
		Name:      entity.Name,
		Barcode:   entity.Barcode,
		Price:     entity.Price,
	}, nil
}

func (r *ProductRepository) reserveFailureReason(ctx context.Context, productID int64, quantity int) error {
	var entity ProductEntity
	err := r.Write(ctx).Where("id = ?", productID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	return &InsufficientStockError{
		ProductID: productID,
		Name:      entity.Name,
		Available: entity.Stock,
		Requested: quantity,
	}
}
