package admin

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/media"
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/validation"
)

// Handlers provides HTTP handlers for the admin feature.
type Handlers struct {
	*common.Deps
	images media.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps, images media.Store) *Handlers {
	return &Handlers{Deps: deps, images: images}
}

// Dashboard shows user statistics, recent activity and abandoned carts.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		data DashboardData
		err  error
	)

	if data.Stats, err = h.Store.Users.Statistics(ctx); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if data.ProductCount, err = h.Store.Products.CountActive(ctx); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if data.RecentOrders, err = h.Store.Orders.Recent(ctx, RecentOrdersLimit); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if data.RecentUsers, err = h.Store.Users.Recent(ctx, RecentUsersLimit); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if data.Abandoned, err = h.Store.Carts.Abandoned(ctx, store.AbandonedAfter); err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.Render(w, r, http.StatusOK, "admin_dashboard", "Dashboard", data)
}

// ProductsPage lists every product, hidden ones included.
func (h *Handlers) ProductsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page := validation.Pagination(q.Get("page"), q.Get("limit"))
	filter := store.ProductFilter{Page: page.Page, Limit: page.Limit, IncludeInactive: true}

	products, err := h.Store.Products.List(ctx, filter)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	total, err := h.Store.Products.Count(ctx, filter)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	query := url.Values{}
	if l := q.Get("limit"); l != "" {
		query.Set("limit", l)
	}
	h.Render(w, r, http.StatusOK, "admin_products", "Products", ProductsData{
		Products:   products,
		Page:       page.Page,
		TotalPages: common.TotalPages(total, page.Limit),
		Query:      query,
	})
}

// NewProductPage renders an empty product form.
func (h *Handlers) NewProductPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, ProductFormData{
		Form: ProductForm{Gender: store.GenderUnisex, Stock: "0", Active: true},
	})
}

// CreateProduct validates the form, stores the image and creates the
// product.
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	form, image := readProductForm(r)

	in, ok := h.checkProduct(w, r, form, image)
	if !ok {
		return
	}
	if image != nil {
		src, err := media.SaveUpload(r.Context(), h.images, image)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
		in.Image = src
	}

	id, err := h.Store.Products.Create(r.Context(), in)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.Log().Info("product created", "product_id", id, "admin_id", middleware.UserID(r.Context()))
	common.Redirect(w, r, "/admin/products")
}

// EditProductPage renders the form for an existing product.
func (h *Handlers) EditProductPage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, ProductFormData{Form: formFromProduct(p)})
}

// UpdateProduct saves changes to a product. A new image replaces the old
// one, which is then deleted from the media store.
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	form, image := readProductForm(r)
	form.ID, form.Image = p.ID, p.Image

	in, ok := h.checkProduct(w, r, form, image)
	if !ok {
		return
	}
	in.ExtraImages = p.ExtraImages
	if image != nil {
		src, err := media.SaveUpload(r.Context(), h.images, image)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
		in.Image = src
	}

	if err := h.Store.Products.Update(r.Context(), p.ID, in); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if image != nil && p.Image != "" {
		if err := h.images.Delete(r.Context(), p.Image); err != nil {
			h.Log().Warn("failed to delete replaced image", "product_id", p.ID, "image", p.Image, "error", err)
		}
	}

	h.Log().Info("product updated", "product_id", p.ID, "admin_id", middleware.UserID(r.Context()))
	common.Redirect(w, r, "/admin/products")
}

// DeleteProduct hides a product. Orders and carts keep referring to it.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := common.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.NotFound(w, r)
		return
	}

	err := h.Store.Products.Deactivate(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.Log().Info("product deactivated", "product_id", id, "admin_id", middleware.UserID(r.Context()))
	if middleware.WantsJSON(r) {
		common.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Product deleted"})
		return
	}
	common.Redirect(w, r, "/admin/products")
}

// CategoriesPage lists the categories with a creation form.
func (h *Handlers) CategoriesPage(w http.ResponseWriter, r *http.Request) {
	h.renderCategories(w, r, http.StatusOK, CategoriesData{})
}

// CreateCategory adds a category. Names are unique regardless of case.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	form := validation.Category{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	if err := validation.CategoryForm(&form); err != nil {
		var fe validation.FieldErrors
		if !errors.As(err, &fe) {
			h.ServerError(w, r, err)
			return
		}
		h.renderCategories(w, r, http.StatusBadRequest, CategoriesData{Form: form, Errors: fe})
		return
	}

	_, err := h.Store.Categories.Create(r.Context(), form.Name, validation.Slug(form.Name), form.Description)
	if errors.Is(err, store.ErrCategoryTaken) {
		h.renderCategories(w, r, http.StatusBadRequest, CategoriesData{
			Form:   form,
			Errors: validation.FieldErrors{"name": "A category with this name already exists"},
		})
		return
	}
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	common.Redirect(w, r, "/admin/categories")
}

func (h *Handlers) renderCategories(w http.ResponseWriter, r *http.Request, status int, data CategoriesData) {
	var err error
	if data.Categories, err = h.Store.Categories.ListWithProductCount(r.Context()); err != nil {
		h.ServerError(w, r, err)
		return
	}
	h.Render(w, r, status, "admin_categories", "Categories", data)
}

func (h *Handlers) loadProduct(w http.ResponseWriter, r *http.Request) (*store.Product, bool) {
	id, ok := common.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.NotFound(w, r)
		return nil, false
	}
	p, err := h.Store.Products.Get(r.Context(), id)
	if err != nil {
		h.ServerError(w, r, err)
		return nil, false
	}
	if p == nil {
		h.NotFound(w, r)
		return nil, false
	}
	return p, true
}

// parseMultipart accepts both multipart and plain form posts.
func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	err := r.ParseMultipartForm(maxUploadMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.Error(w, r, http.StatusBadRequest, "Could not read the submitted form")
		return false
	}
	return true
}

// checkProduct validates the form, the category and the image, rendering
// the form again when anything is wrong.
func (h *Handlers) checkProduct(w http.ResponseWriter, r *http.Request, form ProductForm, image *multipart.FileHeader) (store.ProductInput, bool) {
	in, fe := form.input()
	if fe == nil {
		fe = validation.FieldErrors{}
	}

	if form.CategoryID > 0 {
		cat, err := h.Store.Categories.Get(r.Context(), form.CategoryID)
		if err != nil {
			h.ServerError(w, r, err)
			return in, false
		}
		if cat == nil {
			fe.Add("category_id", "unknown category")
		}
	}

	if image != nil {
		if h.images == nil {
			fe.Add("image", "image uploads are not configured")
		} else if err := validation.ImageFile(image); err != nil {
			fe.Add("image", err.Error())
		}
	}

	if len(fe) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, ProductFormData{Form: form, Errors: fe})
		return in, false
	}
	return in, true
}

func (h *Handlers) renderForm(w http.ResponseWriter, r *http.Request, status int, data ProductFormData) {
	categories, err := h.Store.Categories.ListActive(r.Context())
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	data.Categories = categories
	data.Genders = genders

	title := "New product"
	data.Action = "/admin/products/new"
	if data.Form.ID != 0 {
		title = "Edit product"
		data.Action = "/admin/products/" + strconv.FormatInt(data.Form.ID, 10) + "/edit"
	}
	h.Render(w, r, status, "admin_product_form", title, data)
}
