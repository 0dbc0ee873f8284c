package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/router"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/internal/repository"
	"github.com/retailpoint/pos-gateway/internal/services"
	"github.com/retailpoint/pos-gateway/pkg/auth"
	xhttp "github.com/retailpoint/pos-gateway/pkg/http"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req model.CheckoutRequest) (*services.CheckoutResult, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc CheckoutService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler, verifier *auth.Verifier) {
	e.POST("/transactions", h.CreateTransaction)

	admin := auth.RequireRole(verifier, "admin")
	e.GET("/transactions", admin(h.ListTransactions))
	e.GET("/transactions/{id}", admin(h.GetTransaction))
}

func NewTransactionHandler(svc CheckoutService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type checkoutResponse struct {
	Message       string             `json:"message"`
	Transaction   *model.Transaction `json:"transaction"`
	TotalMismatch bool               `json:"totalMismatch,omitempty"`
	ServerTotal   string             `json:"serverTotal,omitempty"`
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	var req model.CheckoutRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.Checkout(ctx, req)
	if err != nil {
		writeCheckoutError(ctx, err)
		return
	}

	resp := checkoutResponse{
		Message:     "Transaction completed successfully",
		Transaction: result.Transaction,
	}
	if result.TotalMismatch {
		resp.TotalMismatch = true
		resp.ServerTotal = result.ServerTotal.StringFixed(2)
	}
	writeJSON(ctx, xhttp.StatusCreated, resp)
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	var f model.TransactionFilter

	f.SortBy = query(ctx, "sortBy")
	if strings.EqualFold(query(ctx, "sortOrder"), "desc") {
		f.Desc = true
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{Items: items, Total: total})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := h.svc.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "transaction not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

// writeCheckoutError maps checkout failures onto status codes: malformed
// carts are the client's fault, missing products are 404, stock shortfalls
// are a 409 conflict with the shortfall detail, everything else is a store
// failure.
func writeCheckoutError(ctx *xhttp.RequestCtx, err error) {
	var cartErr *model.CartValidationError
	var stockErr *repository.InsufficientStockError

	switch {
	case errors.Is(err, model.ErrEmptyCart), errors.Is(err, model.ErrInvalidTotal), errors.As(err, &cartErr):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.As(err, &stockErr):
		writeJSON(ctx, xhttp.StatusConflict, map[string]interface{}{
			"error":     "insufficient stock",
			"details":   stockErr.Error(),
			"productId": stockErr.ProductID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, repository.ErrInsufficientStock):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	default:
		writeJSON(ctx, xhttp.StatusInternalServerError, map[string]string{
			"error":   "Transaction failed",
			"details": err.Error(),
		})
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
