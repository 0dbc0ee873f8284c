package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpoint/pos-gateway/internal/model"
)

type ProductEntity struct {
	ID          int64           `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	Barcode     string          `db:"barcode"     gorm:"column:barcode;not null;uniqueIndex"`
	Name        string          `db:"name"        gorm:"column:name;not null"`
	Description string          `db:"description" gorm:"column:description"`
	Price       decimal.Decimal `db:"price"       gorm:"column:price;type:decimal(10,2);not null"`
	Stock       int             `db:"stock"       gorm:"column:stock;not null;default:0"`
	CreatedAt   time.Time       `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `db:"updated_at"  gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductEntity) TableName() string {
	return "products"
}

func toProductEntity(m *model.Product) *ProductEntity {
	if m == nil {
		return nil
	}
	return &ProductEntity{
		ID:          m.ID,
		Barcode:     m.Barcode,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Stock:       m.Stock,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toProductModel(e *ProductEntity) *model.Product {
	if e == nil {
		return nil
	}
	return &model.Product{
		ID:          e.ID,
		Barcode:     e.Barcode,
		Name:        e.Name,
		Description: e.Description,
		Price:       e.Price,
		Stock:       e.Stock,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toProductModels(entities []*ProductEntity) []*model.Product {
	if entities == nil {
		return nil
	}
	models := make([]*model.Product, len(entities))
	for i, e := range entities {
		models[i] = toProductModel(e)
	}
	return models
}
