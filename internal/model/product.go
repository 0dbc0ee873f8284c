package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is only ever mutated through the
// conditional decrement in the repository or an admin update.
type Product struct {
	ID          int64           `json:"id"`
	Barcode     string          `json:"barcode"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductSnapshot is what the inventory ledger hands back after a successful
// stock reservation: the display fields and the price frozen for the sale.
type ProductSnapshot struct {
	ProductID int64
	Name      string
	Barcode   string
	Price     decimal.Decimal
}

// ProductCreateRequest is the admin payload for creating a product.
type ProductCreateRequest struct {
	Barcode     string          `json:"barcode" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// ProductUpdateRequest carries the mutable product fields.
type ProductUpdateRequest struct {
	Barcode     string          `json:"barcode" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// Stock level filters for the product list endpoint.
const (
	StockLevelZero = "zero"
	StockLevelLow  = "low"
)

// ProductFilter controls product list queries.
type ProductFilter struct {
	StockLevel string // "", "zero" or "low"
	Threshold  int    // low-stock threshold, defaults to 5
	SortBy     string // id|name|price|stock|barcode|createdAt|updatedAt
	Desc       bool
}
