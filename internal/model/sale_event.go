package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleEvent is published to the sale stream after a checkout commits. It is
// intentionally small; consumers re-read the transaction if they need the
// full line items.
type SaleEvent struct {
	ID            string          `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemCount     int             `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewSaleEvent builds the event for a committed transaction.
func NewSaleEvent(txn *Transaction) *SaleEvent {
	return &SaleEvent{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		TotalAmount:   txn.TotalAmount,
		ItemCount:     len(txn.Items),
		CreatedAt:     txn.CreatedAt,
	}
}
