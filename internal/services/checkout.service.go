package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/internal/queue"
	"github.com/retailpoint/pos-gateway/pkg/logger"
	"github.com/retailpoint/pos-gateway/pkg/prom"
)

// InventoryLedger is the stock side of the engine: conditional reservation
// plus the unit-of-work entry point every checkout runs under.
type InventoryLedger interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (*model.ProductSnapshot, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SaleStore persists and re-reads the immutable sale records.
type SaleStore interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

// CheckoutResult is a committed sale plus the total-verification outcome.
// Transaction is the fully hydrated record as persisted; TotalMismatch is set
// when the client-submitted total disagreed with the server-computed one (the
// server figure is always the one persisted).
type CheckoutResult struct {
	Transaction   *model.Transaction
	TotalMismatch bool
	ClientTotal   decimal.Decimal
	ServerTotal   decimal.Decimal
}

type CheckoutService struct {
	inventory InventoryLedger
	sales     SaleStore
	saleQueue *queue.Queue
}

func NewCheckoutService(inventory InventoryLedger, sales SaleStore, saleQueue *queue.Queue) *CheckoutService {
	return &CheckoutService{
		inventory: inventory,
		sales:     sales,
		saleQueue: saleQueue,
	}
}

// Checkout converts a cart into a durable sale: validate shape, then inside
// one unit of work reserve stock per line in submitted order and record the
// transaction with its items. Any failure rolls the whole unit back; no
// partial decrements or item rows survive. Stock and validation failures come
// back as the typed repository/model errors, anything else is a store
// failure.
func (s *CheckoutService) Checkout(ctx context.Context, req model.CheckoutRequest) (*CheckoutResult, error) {
	start := time.Now()
	result, err := s.checkout(ctx, req)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	prom.AddCheckoutRequest(status)
	prom.ObserveCheckoutDuration(time.Since(start).Seconds(), status)

	return result, err
}

func (s *CheckoutService) checkout(ctx context.Context, req model.CheckoutRequest) (*CheckoutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	clientTotal, err := req.ParseTotal()
	if err != nil {
		return nil, err
	}

	var (
		txnID       int64
		serverTotal = decimal.Zero
		mismatch    bool
	)
	err = s.inventory.WithinTransaction(ctx, func(ctx context.Context) error {
		items := make([]model.TransactionItem, 0, len(req.Cart))
		for _, line := range req.Cart {
			snapshot, err := s.inventory.ReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			items = append(items, model.TransactionItem{
				ProductID:   snapshot.ProductID,
				Quantity:    line.Quantity,
				PriceAtSale: snapshot.Price,
			})
			serverTotal = serverTotal.Add(snapshot.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		// The server-computed figure is authoritative; the client total is
		// only compared, never persisted.
		mismatch = !serverTotal.Equal(clientTotal)
		if mismatch {
			logger.Warn("checkout total mismatch",
				"client_total", clientTotal.String(),
				"server_total", serverTotal.String())
		}

		created, err := s.sales.Create(ctx, &model.Transaction{
			TotalAmount: serverTotal,
			CreatedAt:   time.Now().UTC(),
			Items:       items,
		})
		if err != nil {
			return fmt.Errorf("record sale: %w", err)
		}
		txnID = created.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-read outside the unit of work; it reflects exactly what was just
	// committed, hydrated with product display fields for the receipt.
	txn, err := s.sales.GetByID(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("load committed sale: %w", err)
	}

	s.publishSaleEvent(ctx, txn)

	return &CheckoutResult{
		Transaction:   txn,
		TotalMismatch: mismatch,
		ClientTotal:   clientTotal,
		ServerTotal:   serverTotal,
	}, nil
}

func (s *CheckoutService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.sales.List(ctx, f)
}

func (s *CheckoutService) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.sales.GetByID(ctx, id)
}

// publishSaleEvent emits the post-commit event. Best effort: a publish
// failure never fails a sale that is already durable.
func (s *CheckoutService) publishSaleEvent(ctx context.Context, txn *model.Transaction) {
	if s.saleQueue == nil {
		return
	}
	event := model.NewSaleEvent(txn)
	if _, err := s.saleQueue.PublishJSON(ctx, event, nil); err != nil {
		logger.Error("failed to publish sale event",
			"transaction_id", txn.ID,
			"error", err)
	}
}
