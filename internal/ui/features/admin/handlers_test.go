package admin

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/tienda/internal/media"
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features"
)

type upload struct {
	filename    string
	contentType string
	body        []byte
}

// multipartPost builds the request a browser sends for the product form.
func multipartPost(t *testing.T, target string, fields url.Values, file *upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+file.filename+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func productFields(f *features.TestFixture, name string) url.Values {
	return url.Values{
		"name":        {name},
		"description": {"Heavy cotton"},
		"price":       {"349.90"},
		"category_id": {strconv.FormatInt(f.Category("Shirts"), 10)},
		"gender":      {"hombre"},
		"stock":       {"12"},
		"sizes":       {"S, M , L,"},
		"colors":      {"Black"},
		"active":      {"1"},
	}
}

func localImages(t *testing.T) (*media.Local, string) {
	t.Helper()
	dir := t.TempDir()
	images, err := media.NewLocal(dir, "/uploads")
	require.NoError(t, err)
	return images, dir
}

func TestDashboard(t *testing.T) {
	fixture := features.SetupTestFixture(t,
		features.TestProduct{Name: "Classic Tee"},
		features.TestProduct{Name: "Old Tee", Inactive: true},
	)
	admin := fixture.User("admin@example.com", true)
	buyer := fixture.User("ana@example.com", false)
	fixture.AddToCart(nil, "guest-sid", 1, 1)
	fixture.AddToCart(buyer, "", 1, 2)

	h := NewHandlers(fixture.Deps, nil)
	rec := httptest.NewRecorder()
	h.Dashboard(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/admin", nil), admin, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<span>2</span> users")
	assert.Contains(t, body, "<span>1</span> admins")
	assert.Contains(t, body, "<span>1</span> products")
	assert.Contains(t, body, "ana@example.com")
	assert.Contains(t, body, "No orders yet.")
}

func TestProductsPage(t *testing.T) {
	fixture := features.SetupTestFixture(t,
		features.TestProduct{Name: "Classic Tee", Featured: true},
		features.TestProduct{Name: "Old Tee", Inactive: true},
	)
	admin := fixture.User("admin@example.com", true)
	h := NewHandlers(fixture.Deps, nil)

	rec := httptest.NewRecorder()
	h.ProductsPage(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/admin/products", nil), admin, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Classic Tee")
	assert.Contains(t, body, "<em>featured</em>")
	assert.Contains(t, body, "Old Tee")
	assert.Contains(t, body, "hidden")
}

func TestNewProductPage(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	admin := fixture.User("admin@example.com", true)
	fixture.Category("Hoodies")
	h := NewHandlers(fixture.Deps, nil)

	rec := httptest.NewRecorder()
	h.NewProductPage(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/admin/products/new", nil), admin, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/admin/products/new"`)
	assert.Contains(t, body, "Hoodies")
	assert.Contains(t, body, `name="active" value="1" checked`)
}

func TestCreateProduct(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	admin := fixture.User("admin@example.com", true)
	images, dir := localImages(t)
	h := NewHandlers(fixture.Deps, images)
	ctx := context.Background()

	t.Run("with image", func(t *testing.T) {
		req := multipartPost(t, "/admin/products/new", productFields(fixture, "Oxford Shirt"),
			&upload{filename: "Shirt.PNG", contentType: "image/png", body: []byte("\x89PNG fake")})
		rec := httptest.NewRecorder()
		h.CreateProduct(rec, fixture.Visit(req, admin, ""))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/products", rec.Header().Get("Location"))

		products, err := fixture.Store.Products.Search(ctx, "Oxford", 10)
		require.NoError(t, err)
		require.Len(t, products, 1)
		p := products[0]
		assert.Equal(t, store.Money(34990), p.Price)
		assert.Nil(t, p.SalePrice)
		assert.Equal(t, store.GenderMen, p.Gender)
		assert.Equal(t, store.StringList{"S", "M", "L"}, p.Sizes)
		assert.Equal(t, 12, p.Stock)
		assert.True(t, p.Active)
		assert.False(t, p.Featured)

		require.True(t, strings.HasPrefix(p.Image, "/uploads/product-"), p.Image)
		assert.True(t, strings.HasSuffix(p.Image, ".png"))
		data, err := os.ReadFile(filepath.Join(dir, filepath.Base(p.Image)))
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG fake", string(data))
	})

	t.Run("plain form without image", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.CreateProduct(rec, fixture.Visit(features.PostForm("/admin/products/new", productFields(fixture, "Linen Shirt")), admin, ""))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		products, err := fixture.Store.Products.Search(ctx, "Linen", 10)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Empty(t, products[0].Image)
	})

	tests := []struct {
		name   string
		modify func(v url.Values)
		file   *upload
		images media.Store
		want   []string
	}{
		{
			name:   "non numeric price",
			modify: func(v url.Values) { v.Set("price", "cheap") },
			images: images,
			want:   []string{"must be a number"},
		},
		{
			name:   "fractional stock",
			modify: func(v url.Values) { v.Set("stock", "1.5") },
			images: images,
			want:   []string{"must be a whole number"},
		},
		{
			name:   "sale price above price",
			modify: func(v url.Values) { v.Set("sale_price", "400") },
			images: images,
			want:   []string{"must be lower than the regular price"},
		},
		{
			name:   "short name and missing gender",
			modify: func(v url.Values) { v.Set("name", "X"); v.Set("gender", "") },
			images: images,
			want:   []string{"must be at least 3 characters", "is required"},
		},
		{
			name:   "unknown category",
			modify: func(v url.Values) { v.Set("category_id", "999") },
			images: images,
			want:   []string{"unknown category"},
		},
		{
			name:   "wrong image type",
			file:   &upload{filename: "notes.txt", contentType: "text/plain", body: []byte("hello")},
			images: images,
			want:   []string{"only JPEG, PNG and WebP images are allowed"},
		},
		{
			name: "uploads disabled",
			file: &upload{filename: "a.png", contentType: "image/png", body: []byte("png")},
			want: []string{"image uploads are not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := productFields(fixture, "Rejected Shirt")
			if tt.modify != nil {
				tt.modify(fields)
			}
			h := NewHandlers(fixture.Deps, tt.images)
			rec := httptest.NewRecorder()
			h.CreateProduct(rec, fixture.Visit(multipartPost(t, "/admin/products/new", fields, tt.file), admin, ""))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := rec.Body.String()
			for _, msg := range tt.want {
				assert.Contains(t, body, msg)
			}
			// Rejected input is shown back.
			assert.Contains(t, body, `value="`+fields.Get("name")+`"`)

			found, err := fixture.Store.Products.Search(ctx, "Rejected", 10)
			require.NoError(t, err)
			assert.Empty(t, found)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "rejected uploads must not be stored")
}

func TestEditProduct(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	admin := fixture.User("admin@example.com", true)
	images, dir := localImages(t)
	h := NewHandlers(fixture.Deps, images)
	ctx := context.Background()

	p := fixture.Product(features.TestProduct{Name: "Classic Tee", SalePrice: features.MoneyPtr(19900)})
	oldImage, err := images.Save(ctx, "old.png", "image/png", strings.NewReader("old"))
	require.NoError(t, err)
	in := store.ProductInput{
		Name: p.Name, Price: p.Price, SalePrice: p.SalePrice, CategoryID: p.CategoryID,
		Gender: p.Gender, Stock: p.Stock, Image: oldImage,
		ExtraImages: []string{"/static/img/back.jpg"}, Active: true,
	}
	require.NoError(t, fixture.Store.Products.Update(ctx, p.ID, in))
	target := "/admin/products/" + strconv.FormatInt(p.ID, 10) + "/edit"

	t.Run("form is prefilled", func(t *testing.T) {
		req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, target, nil), "id", strconv.FormatInt(p.ID, 10))
		rec := httptest.NewRecorder()
		h.EditProductPage(rec, fixture.Visit(req, admin, ""))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `action="`+target+`"`)
		assert.Contains(t, body, `value="Classic Tee"`)
		assert.Contains(t, body, `value="299.00"`)
		assert.Contains(t, body, `value="199.00"`)
		assert.Contains(t, body, oldImage)
	})

	t.Run("text changes keep the image", func(t *testing.T) {
		fields := productFields(fixture, "Classic Tee v2")
		req := features.RequestWithPathParam(multipartPost(t, target, fields, nil), "id", strconv.FormatInt(p.ID, 10))
		rec := httptest.NewRecorder()
		h.UpdateProduct(rec, fixture.Visit(req, admin, ""))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		got, err := fixture.Store.Products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Classic Tee v2", got.Name)
		assert.Nil(t, got.SalePrice)
		assert.Equal(t, oldImage, got.Image)
		assert.Equal(t, store.StringList{"/static/img/back.jpg"}, got.ExtraImages)
	})

	t.Run("new image replaces the old file", func(t *testing.T) {
		fields := productFields(fixture, "Classic Tee v3")
		req := features.RequestWithPathParam(multipartPost(t, target, fields,
			&upload{filename: "new.webp", contentType: "image/webp", body: []byte("webp")}), "id", strconv.FormatInt(p.ID, 10))
		rec := httptest.NewRecorder()
		h.UpdateProduct(rec, fixture.Visit(req, admin, ""))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		got, err := fixture.Store.Products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.NotEqual(t, oldImage, got.Image)
		assert.True(t, strings.HasSuffix(got.Image, ".webp"))

		_, err = os.Stat(filepath.Join(dir, filepath.Base(oldImage)))
		assert.True(t, os.IsNotExist(err), "old image should be removed")
		_, err = os.Stat(filepath.Join(dir, filepath.Base(got.Image)))
		assert.NoError(t, err)
	})

	t.Run("invalid input keeps the product", func(t *testing.T) {
		fields := productFields(fixture, "Classic Tee v4")
		fields.Set("price", "0")
		req := features.RequestWithPathParam(multipartPost(t, target, fields, nil), "id", strconv.FormatInt(p.ID, 10))
		rec := httptest.NewRecorder()
		h.UpdateProduct(rec, fixture.Visit(req, admin, ""))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "is out of range")
		got, err := fixture.Store.Products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Classic Tee v3", got.Name)
	})

	for _, id := range []string{"abc", "999"} {
		t.Run("missing product "+id, func(t *testing.T) {
			req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/admin/products/"+id+"/edit", nil), "id", id)
			rec := httptest.NewRecorder()
			h.EditProductPage(rec, fixture.Visit(req, admin, ""))
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestDeleteProduct(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	admin := fixture.User("admin@example.com", true)
	h := NewHandlers(fixture.Deps, nil)
	p := fixture.Product(features.TestProduct{Name: "Classic Tee"})
	id := strconv.FormatInt(p.ID, 10)

	t.Run("hides the product", func(t *testing.T) {
		req := features.RequestWithPathParam(httptest.NewRequest(http.MethodPost, "/admin/products/"+id+"/delete", nil), "id", id)
		rec := httptest.NewRecorder()
		h.DeleteProduct(rec, fixture.Visit(features.AsJSON(req), admin, ""))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"message":"Product deleted"}`, rec.Body.String())

		got, err := fixture.Store.Products.Get(context.Background(), p.ID)
		require.NoError(t, err)
		require.NotNil(t, got, "product rows are kept")
		assert.False(t, got.Active)
	})

	t.Run("browser redirect", func(t *testing.T) {
		req := features.RequestWithPathParam(httptest.NewRequest(http.MethodPost, "/admin/products/"+id+"/delete", nil), "id", id)
		rec := httptest.NewRecorder()
		h.DeleteProduct(rec, fixture.Visit(req, admin, ""))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/products", rec.Header().Get("Location"))
	})

	t.Run("unknown id", func(t *testing.T) {
		req := features.RequestWithPathParam(httptest.NewRequest(http.MethodPost, "/admin/products/999/delete", nil), "id", "999")
		rec := httptest.NewRecorder()
		h.DeleteProduct(rec, fixture.Visit(req, admin, ""))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCategories(t *testing.T) {
	fixture := features.SetupTestFixture(t, features.TestProduct{Name: "Classic Tee"})
	admin := fixture.User("admin@example.com", true)
	h := NewHandlers(fixture.Deps, nil)

	t.Run("lists with counts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.CategoriesPage(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/admin/categories", nil), admin, ""))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<td>Shirts</td><td>shirts</td><td>1</td>")
	})

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "creates with slug",
			form:       url.Values{"name": {"Accesorios Básicos"}, "description": {"Caps and belts"}},
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "duplicate name",
			form:       url.Values{"name": {"shirts"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "A category with this name already exists",
		},
		{
			name:       "too short",
			form:       url.Values{"name": {"X"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "must be at least 2 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CreateCategory(rec, fixture.Visit(features.PostForm("/admin/categories", tt.form), admin, ""))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}

	cat, err := fixture.Store.Categories.GetBySlug(context.Background(), "accesorios-basicos")
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "Accesorios Básicos", cat.Name)
}

func TestRoutes_RequireAdmin(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	admin := fixture.User("admin@example.com", true)
	shopper := fixture.User("ana@example.com", false)

	routes := chi.NewRouter()
	require.NoError(t, SetupRoutes(routes, fixture.Deps, nil))

	tests := []struct {
		name         string
		user         *store.User
		json         bool
		wantStatus   int
		wantLocation string
	}{
		{name: "anonymous", wantStatus: http.StatusSeeOther, wantLocation: "/login?redirect=%2Fadmin%2Fproducts"},
		{name: "anonymous json", json: true, wantStatus: http.StatusUnauthorized},
		{name: "shopper", user: shopper, wantStatus: http.StatusForbidden},
		{name: "admin", user: admin, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
			if tt.json {
				req = features.AsJSON(req)
			}
			rec := httptest.NewRecorder()
			routes.ServeHTTP(rec, fixture.Visit(req, tt.user, ""))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
		})
	}
}
