package product

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// PageData holds what the detail page shows.
type PageData struct {
	Product *store.Product
	Reviews []store.Review
	Similar []store.Product
}

// Handlers provides HTTP handlers for the product feature.
type Handlers struct {
	*common.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// DetailPage renders an active product with its rating, latest reviews and
// related products.
func (h *Handlers) DetailPage(w http.ResponseWriter, r *http.Request) {
	id, ok := common.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	ctx := r.Context()

	p, err := h.Store.Products.WithRating(ctx, id)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	if p == nil {
		h.NotFound(w, r)
		return
	}

	data := PageData{Product: p}

	data.Reviews, err = h.Store.Reviews.ListByProduct(ctx, id, store.ReviewLimit)
	if err != nil {
		h.Log().Error("failed to load reviews", "product_id", id, "error", err)
	}
	data.Similar, err = h.Store.Products.Similar(ctx, id, p.CategoryID, store.SimilarLimit)
	if err != nil {
		h.Log().Error("failed to load similar products", "product_id", id, "error", err)
	}

	h.Render(w, r, http.StatusOK, "product", p.Name, data)
}
