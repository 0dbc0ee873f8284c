package handlers

import (
	"context"
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

type ProductService interface {
	Create(ctx context.Context, req model.ProductCreateRequest) (*model.Product, error)
	Update(ctx context.Context, id int64, req model.ProductUpdateRequest) (*model.Product, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	List(ctx context.Context, f model.ProductFilter) ([]*model.Product, error)
}

type ProductHandler struct {
	svc ProductService
}

func RegisterProductRoutes(e *router.Group, h *ProductHandler, verifier *auth.Verifier) {
	e.GET("/products", h.ListProducts)
	e.GET("/products/{id}", h.GetProduct)

	admin := auth.RequireRole(verifier, "admin")
	e.POST("/products", admin(h.CreateProduct))
	e.PUT("/products/{id}", admin(h.UpdateProduct))
	e.DELETE("/products/{id}", admin(h.DeleteProduct))
}

func NewProductHandler(svc ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

/* --------------------------------- Routes ----------------------------------- */

// ListProducts serves the catalog. A barcode query short-circuits to a
// single-product lookup, which is how scanners resolve items at the till.
func (h *ProductHandler) ListProducts(ctx *xhttp.RequestCtx) {
	if barcode := query(ctx, "barcode"); barcode != "" {
		p, err := h.svc.GetByBarcode(ctx, barcode)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				writeError(ctx, xhttp.StatusNotFound, "product not found")
				return
			}
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(ctx, xhttp.StatusOK, p)
		return
	}

	var f model.ProductFilter
	f.StockLevel = query(ctx, "stockLevel")
	if v := query(ctx, "threshold"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Threshold = n
		}
	}
	f.SortBy = query(ctx, "sortBy")
	if strings.EqualFold(query(ctx, "sortOrder"), "desc") {
		f.Desc = true
	}

	items, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, items)
}

func (h *ProductHandler) GetProduct(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "product not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *ProductHandler) CreateProduct(ctx *xhttp.RequestCtx) {
	var req model.ProductCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p, err := h.svc.Create(ctx, req)
	if err != nil {
		writeProductError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, p)
}

func (h *ProductHandler) UpdateProduct(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid product id")
		return
	}

	var req model.ProductUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p, err := h.svc.Update(ctx, id, req)
	if err != nil {
		writeProductError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *ProductHandler) DeleteProduct(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		writeProductError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"message": "product deleted"})
}

func writeProductError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		writeError(ctx, xhttp.StatusNotFound, "product not found")
	case errors.Is(err, services.ErrBarcodeExists):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrProductReferenced):
		writeError(ctx, xhttp.StatusConflict, "product is referenced by past sales and cannot be deleted")
	case errors.Is(err, services.ErrInvalidProduct):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	default:
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
	}
}
