package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable sale record. TotalAmount is established once at
// creation from the per-item snapshots and never recomputed.
type Transaction struct {
	ID          int64             `json:"id"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	CreatedAt   time.Time         `json:"createdAt"`
	Items       []TransactionItem `json:"items,omitempty"`
}

// TransactionItem is one sold line. PriceAtSale is the product price frozen
// at checkout; later catalog price changes never touch it.
type TransactionItem struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transactionId"`
	ProductID     int64           `json:"productId"`
	Quantity      int             `json:"quantity"`
	PriceAtSale   decimal.Decimal `json:"priceAtSale"`
	Product       *ProductRef     `json:"product,omitempty"`
}

// ProductRef carries the product display fields for receipt rendering.
type ProductRef struct {
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
}

// TransactionFilter controls history queries. SortBy accepts the public sort
// keys id, date and total.
type TransactionFilter struct {
	SortBy string
	Desc   bool
	Limit  int
	Offset int
}
