package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gateway "github.com/retailpoint/pos-gateway/internal/gateways"
	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/internal/queue"
	"github.com/retailpoint/pos-gateway/pkg/logger"
	"github.com/retailpoint/pos-gateway/pkg/prom"
)

// ReceiptDeliverer sends a completed sale event downstream.
type ReceiptDeliverer interface {
	Deliver(ctx context.Context, event *model.SaleEvent) (*gateway.ReceiptResponse, error)
}

// ReceiptProcessor turns completed sale events into receipt deliveries with
// at-most-once semantics per event.
type ReceiptProcessor struct {
	client      ReceiptDeliverer
	idempotency *IdempotencyService
}

func NewReceiptProcessor(client ReceiptDeliverer, idempotency *IdempotencyService) *ReceiptProcessor {
	return &ReceiptProcessor{
		client:      client,
		idempotency: idempotency,
	}
}

func (p *ReceiptProcessor) GetType() string {
	return "receipt"
}

func (p *ReceiptProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	start := time.Now()

	var event model.SaleEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("Failed to unmarshal sale event", "error", err)
		prom.AddSaleProcessed("invalid")
		return err // malformed payload goes to the DLQ
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, event.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Ack to remove the redelivered entry
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Giving up on sale event", "event_id", event.ID, "transaction_id", event.TransactionID)
			prom.AddSaleProcessed("abandoned")
			// Ack and drop: the event is abandoned, visible only through the
			// abandoned counter and the retry keys in redis.
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "event_id", event.ID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing sale event",
		"event_id", event.ID,
		"transaction_id", event.TransactionID,
		"total_amount", event.TotalAmount,
		"retry_count", procCtx.RetryCount)

	resp, err := p.client.Deliver(ctx, &event)
	if err != nil {
		logger.Error("Failed to deliver receipt", "event_id", event.ID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "event_id", event.ID, "error", markErr)
		}
		prom.AddSaleProcessed("failed")
		return err
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		// Receipt is already out; a missing marker only risks a duplicate
		logger.Error("Failed to mark success", "event_id", event.ID, "error", markErr)
	}

	prom.AddSaleProcessed("delivered")
	prom.ObserveSaleProcessingDuration(time.Since(start).Seconds(), "delivered")

	logger.Info("Receipt delivered for sale",
		"event_id", event.ID,
		"transaction_id", event.TransactionID,
		"receipt_id", resp.ReceiptID)

	return nil
}
