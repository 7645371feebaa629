package home

import (
	"net/http"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// Handlers provides HTTP handlers for the home feature.
type Handlers struct {
	*common.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// HomePage renders featured products and the category list. Lookup errors
// are logged and the page renders with empty sections.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	h.Render(w, r, http.StatusOK, "home", "Home", h.buildPageData(r))
}

func (h *Handlers) buildPageData(r *http.Request) PageData {
	ctx := r.Context()
	data := PageData{Featured: []store.Product{}, Categories: []store.Category{}}

	featured, err := h.Store.Products.Featured(ctx, store.FeaturedLimit)
	if err != nil {
		h.Log().Error("failed to load featured products", "error", err)
	} else {
		data.Featured = featured
	}

	categories, err := h.Store.Categories.ListActive(ctx)
	if err != nil {
		h.Log().Error("failed to load categories", "error", err)
	} else {
		data.Categories = categories
	}

	return data
}
