package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart    = errors.New("invalid or empty cart provided")
	ErrInvalidTotal = errors.New("invalid totalAmount provided")
)

// CartValidationError names the offending cart line and the reason it was
// rejected. Line is the zero-based position in the submitted cart.
type CartValidationError struct {
	Line   int
	Reason string
}

func (e *CartValidationError) Error() string {
	return fmt.Sprintf("invalid cart line %d: %s", e.Line, e.Reason)
}

// CartLine is one requested item of a checkout. It lives only for the
// duration of the call and is never persisted as-is.
type CartLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CheckoutRequest is the client-submitted cart plus the total the client
// computed. The server never trusts TotalAmount; it is only compared against
// the authoritative figure.
type CheckoutRequest struct {
	Cart        []CartLine `json:"cart"`
	TotalAmount string     `json:"totalAmount"`
}

// Validate checks cart shape only; it never touches the store.
func (r CheckoutRequest) Validate() error {
	if len(r.Cart) == 0 {
		return ErrEmptyCart
	}
	for i, line := range r.Cart {
		if line.ProductID <= 0 {
			return &CartValidationError{Line: i, Reason: fmt.Sprintf("productId must be a positive integer, got %d", line.ProductID)}
		}
		if line.Quantity <= 0 {
			return &CartValidationError{Line: i, Reason: fmt.Sprintf("quantity must be a positive integer, got %d", line.Quantity)}
		}
	}
	if _, err := r.ParseTotal(); err != nil {
		return err
	}
	return nil
}

// ParseTotal parses the client-submitted total as an exact decimal.
func (r CheckoutRequest) ParseTotal() (decimal.Decimal, error) {
	total, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return decimal.Zero, ErrInvalidTotal
	}
	if total.IsNegative() {
		return decimal.Zero, ErrInvalidTotal
	}
	return total, nil
}
