package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/pkg/logger"
)

var ErrReceiptRejected = errors.New("receipt endpoint rejected the event")

// ReceiptResponse is the acknowledgement returned by the receipt endpoint.
type ReceiptResponse struct {
	ReceiptID   string    `json:"receipt_id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

type ReceiptClientConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// ReceiptClient delivers completed sale events to the external receipt
// endpoint over HTTP.
type ReceiptClient struct {
	config ReceiptClientConfig
	client *fasthttp.Client
}

func NewReceiptClient(config ReceiptClientConfig) *ReceiptClient {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 200 * time.Millisecond
	}

	return &ReceiptClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

// Deliver posts the sale event, retrying transient failures with a linear
// backoff. A 4xx response is not retried.
func (c *ReceiptClient) Deliver(ctx context.Context, event *model.SaleEvent) (*ReceiptResponse, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sale event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		start := time.Now()
		response, retryable, err := c.doRequest(ctx, body)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			lastErr = err
			if !retryable {
				return nil, err
			}
			logger.Warn("receipt delivery attempt failed",
				"event_id", event.ID,
				"attempt", attempt+1,
				"error", err.Error())
			continue
		}

		var resp ReceiptResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt response: %w", err)
		}

		logger.Info("receipt delivered",
			"event_id", event.ID,
			"transaction_id", event.TransactionID,
			"receipt_id", resp.ReceiptID,
			"latency_ms", latency)

		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *ReceiptClient) doRequest(ctx context.Context, body []byte) ([]byte, bool, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	switch {
	case statusCode == fasthttp.StatusOK || statusCode == fasthttp.StatusCreated || statusCode == fasthttp.StatusAccepted:
	case statusCode >= 400 && statusCode < 500:
		return nil, false, fmt.Errorf("%w: status %d, body: %s", ErrReceiptRejected, statusCode, resp.Body())
	default:
		return nil, true, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, true, nil
}
