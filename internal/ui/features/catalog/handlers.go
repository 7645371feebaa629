package catalog

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/validation"
)

// Handlers provides HTTP handlers for the catalog feature.
type Handlers struct {
	*common.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// ParseFilters reads the catalog filters from q. Unknown genders and sort
// orders are dropped.
func ParseFilters(q url.Values) Filters {
	f := Filters{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if f.Search == "" {
		f.Search = strings.TrimSpace(q.Get("q"))
	}
	if g, ok := validation.Gender(q.Get("gender")); ok {
		f.Gender = g
	}
	if s := q.Get("sort"); store.ValidSort(s) {
		f.Sort = s
	}
	return f
}

// Query encodes the filters for links.
func (f Filters) Query() url.Values {
	v := url.Values{}
	for k, val := range map[string]string{
		"category": f.Category,
		"gender":   f.Gender,
		"search":   f.Search,
		"sort":     f.Sort,
	} {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// ListPage renders one page of the catalog.
func (h *Handlers) ListPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filters := ParseFilters(q)
	page := validation.Pagination(q.Get("page"), q.Get("limit"))

	pf := store.ProductFilter{
		Category: filters.Category,
		Gender:   filters.Gender,
		Search:   filters.Search,
		Sort:     filters.Sort,
		Page:     page.Page,
		Limit:    page.Limit,
	}

	products, err := h.Store.Products.List(ctx, pf)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	total, err := h.Store.Products.Count(ctx, pf)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	categories, err := h.Store.Categories.ListWithProductCount(ctx)
	if err != nil {
		h.Log().Error("failed to load categories", "error", err)
		categories = nil
	}

	query := filters.Query()
	if q.Get("limit") != "" {
		query.Set("limit", q.Get("limit"))
	}

	title := "Products"
	if filters.Search != "" {
		title = "Search: " + filters.Search
	}

	h.Render(w, r, http.StatusOK, "catalog", title, PageData{
		Products:   products,
		Menu:       common.BuildCategoryTree(categories, filters.Gender, filters.Category),
		Filter:     filters,
		Sorts:      Sorts,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: common.TotalPages(total, page.Limit),
		Query:      query,
	})
}
