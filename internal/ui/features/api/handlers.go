package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/validation"
)

// Query limits.
const (
	MinSearchLength      = 2
	MaxSearchLimit       = 50
	DefaultCategoryLimit = 10
	MaxCategoryLimit     = 20
)

// ProductsResponse lists products.
type ProductsResponse struct {
	Success  bool            `json:"success"`
	Products []store.Product `json:"products"`
	Total    int             `json:"total"`
}

// StockResponse answers whether a quantity can be bought.
type StockResponse struct {
	Success   bool   `json:"success"`
	Available bool   `json:"available"`
	Stock     int    `json:"stock"`
	Message   string `json:"message"`
}

// Handlers provides HTTP handlers for the api feature.
type Handlers struct {
	*common.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// Search finds active products by name, description or category.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < MinSearchLength {
		h.Error(w, r, http.StatusBadRequest, "Search term must be at least 2 characters")
		return
	}
	limit := common.LimitParam(r.URL.Query().Get("limit"), store.SearchLimit, MaxSearchLimit)

	products, err := h.Store.Products.Search(r.Context(), q, limit)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, ProductsResponse{Success: true, Products: products, Total: len(products)})
}

// CategoryProducts lists the active products of an active category.
func (h *Handlers) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := common.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.Error(w, r, http.StatusBadRequest, "Invalid category id")
		return
	}
	ctx := r.Context()

	cat, err := h.Store.Categories.Get(ctx, id)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	if cat == nil || !cat.Active {
		h.Error(w, r, http.StatusNotFound, "Category not found")
		return
	}

	limit := common.LimitParam(r.URL.Query().Get("limit"), DefaultCategoryLimit, MaxCategoryLimit)
	products, err := h.Store.Products.ByCategory(ctx, id, limit)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, ProductsResponse{Success: true, Products: products, Total: len(products)})
}

// Stock reports whether quantity units of a product can be bought.
// Quantity defaults to one.
func (h *Handlers) Stock(w http.ResponseWriter, r *http.Request) {
	id, ok := common.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.Error(w, r, http.StatusBadRequest, "Invalid product id")
		return
	}
	raw := r.URL.Query().Get("quantity")
	if strings.TrimSpace(raw) == "" {
		raw = "1"
	}
	qty, err := validation.Quantity(raw)
	if err != nil {
		h.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	available, stock, err := h.Store.Products.CheckStock(r.Context(), id, qty)
	if errors.Is(err, store.ErrNotFound) {
		h.Error(w, r, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	msg := "In stock"
	if !available {
		msg = "Not enough stock"
	}
	common.JSON(w, http.StatusOK, StockResponse{Success: true, Available: available, Stock: stock, Message: msg})
}
