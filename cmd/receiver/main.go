package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SaleEventRequest is the payload the processor posts for each completed sale.
type SaleEventRequest struct {
	ID            string    `json:"id" binding:"required"`
	TransactionID int64     `json:"transactionId" binding:"required"`
	TotalAmount   string    `json:"totalAmount" binding:"required"`
	ItemCount     int       `json:"itemCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ReceiptResponse struct {
	ReceiptID   string    `json:"receipt_id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

type HealthResponse struct {
	Status     string    `json:"status"`
	ReceiverID string    `json:"receiver_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
}

// MockReceiver simulates the downstream receipt system: configurable latency,
// a configurable accept rate, and duplicate detection so idempotency bugs in
// the processor show up immediately.
type MockReceiver struct {
	acceptRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	receiverID string
	rng        *rand.Rand

	mu   sync.Mutex
	seen map[string]string // event id -> receipt id
}

func NewMockReceiver(acceptRate float64, minDelay, maxDelay time.Duration) *MockReceiver {
	return &MockReceiver{
		acceptRate: acceptRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		receiverID: "MOCK_RECEIVER_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:       make(map[string]string),
	}
}

func (m *MockReceiver) process(req *SaleEventRequest) (*ReceiptResponse, bool) {
	time.Sleep(m.randomDelay())

	m.mu.Lock()
	defer m.mu.Unlock()

	if receiptID, dup := m.seen[req.ID]; dup {
		log.Warn().
			Str("event_id", req.ID).
			Int64("transaction_id", req.TransactionID).
			Str("receipt_id", receiptID).
			Msg("Duplicate sale event received")
		return &ReceiptResponse{
			ReceiptID:   receiptID,
			Status:      "DUPLICATE",
			ProcessedAt: time.Now(),
		}, true
	}

	if !m.shouldAccept() {
		return nil, false
	}

	receiptID := "rcpt-" + uuid.New().String()[:8]
	m.seen[req.ID] = receiptID

	log.Info().
		Str("event_id", req.ID).
		Int64("transaction_id", req.TransactionID).
		Str("total", req.TotalAmount).
		Str("receipt_id", receiptID).
		Msg("Receipt issued")

	return &ReceiptResponse{
		ReceiptID:   receiptID,
		Status:      "ACCEPTED",
		ProcessedAt: time.Now(),
	}, true
}

func (m *MockReceiver) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockReceiver) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

type Handler struct {
	receiver *MockReceiver
}

func NewHandler(receiver *MockReceiver) *Handler {
	return &Handler{receiver: receiver}
}

func (h *Handler) ReceiveSale(c *gin.Context) {
	var req SaleEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	response, ok := h.receiver.process(&req)
	if !ok {
		log.Warn().
			Str("event_id", req.ID).
			Msg("Receipt system temporarily rejecting events")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "receipt system unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		ReceiverID: h.receiver.receiverID,
		Timestamp:  time.Now(),
		AcceptRate: h.receiver.acceptRate,
	})
}

// UpdateConfig changes the accept rate at runtime, handy for failure drills.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil {
		if *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
			h.receiver.acceptRate = *config.AcceptRate
			log.Info().Float64("rate", *config.AcceptRate).Msg("Updated accept rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.receiver.acceptRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/receipts", handler.ReceiveSale)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	acceptRate := getEnvFloat("ACCEPT_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Receipt Receiver")

	receiver := NewMockReceiver(acceptRate, minDelay, maxDelay)
	handler := NewHandler(receiver)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
