package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/tienda/internal/ui/features"
)

func setupRouter(t *testing.T, fixture *features.TestFixture) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		require.NoError(t, SetupRoutes(r, fixture.Deps))
	})
	return r
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	fixture := features.SetupTestFixture(t,
		features.TestProduct{Name: "Classic Tee", Category: "Shirts"},
		features.TestProduct{Name: "Striped Tee", Category: "Shirts", Featured: true},
		features.TestProduct{Name: "Denim Jacket", Category: "Jackets"},
		features.TestProduct{Name: "Hidden Tee", Inactive: true},
	)
	router := setupRouter(t, fixture)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantNames  []string
	}{
		{name: "by name", target: "/api/products/search?q=tee", wantStatus: http.StatusOK, wantNames: []string{"Striped Tee", "Classic Tee"}},
		{name: "by category", target: "/api/products/search?q=jack", wantStatus: http.StatusOK, wantNames: []string{"Denim Jacket"}},
		{name: "limit", target: "/api/products/search?q=tee&limit=1", wantStatus: http.StatusOK, wantNames: []string{"Striped Tee"}},
		{name: "no match", target: "/api/products/search?q=zzz", wantStatus: http.StatusOK, wantNames: []string{}},
		{name: "wildcards match literally", target: "/api/products/search?q=__", wantStatus: http.StatusOK, wantNames: []string{}},
		{name: "too short", target: "/api/products/search?q=t", wantStatus: http.StatusBadRequest},
		{name: "blank", target: "/api/products/search?q=%20%20", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"success":false`)
				return
			}
			var resp ProductsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			names := []string{}
			for _, p := range resp.Products {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, len(tt.wantNames), resp.Total)
		})
	}
}

func TestSearch_LimitIsCapped(t *testing.T) {
	products := make([]features.TestProduct, 0, 55)
	for i := range 55 {
		products = append(products, features.TestProduct{Name: "Tee " + strconv.Itoa(i)})
	}
	fixture := features.SetupTestFixture(t, products...)

	rec := get(setupRouter(t, fixture), "/api/products/search?q=tee&limit=500")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProductsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, MaxSearchLimit, resp.Total)
}

func TestCategoryProducts(t *testing.T) {
	products := []features.TestProduct{{Name: "Denim Jacket", Category: "Jackets"}}
	for i := range 25 {
		products = append(products, features.TestProduct{Name: "Tee " + strconv.Itoa(i), Category: "Shirts"})
	}
	fixture := features.SetupTestFixture(t, products...)
	router := setupRouter(t, fixture)
	shirts := strconv.FormatInt(fixture.Category("Shirts"), 10)
	jackets := strconv.FormatInt(fixture.Category("Jackets"), 10)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantTotal  int
	}{
		{name: "default limit", target: "/api/categories/" + shirts + "/products", wantStatus: http.StatusOK, wantTotal: DefaultCategoryLimit},
		{name: "explicit limit", target: "/api/categories/" + shirts + "/products?limit=3", wantStatus: http.StatusOK, wantTotal: 3},
		{name: "capped limit", target: "/api/categories/" + shirts + "/products?limit=100", wantStatus: http.StatusOK, wantTotal: MaxCategoryLimit},
		{name: "other category", target: "/api/categories/" + jackets + "/products", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "unknown", target: "/api/categories/9999/products", wantStatus: http.StatusNotFound},
		{name: "bad id", target: "/api/categories/abc/products", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ProductsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.Len(t, resp.Products, tt.wantTotal)
		})
	}
}

func TestStock(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	router := setupRouter(t, fixture)
	p := fixture.Product(features.TestProduct{Name: "Tee", Stock: features.IntPtr(3)})
	hidden := fixture.Product(features.TestProduct{Name: "Hidden", Inactive: true})
	id := strconv.FormatInt(p.ID, 10)

	tests := []struct {
		name          string
		target        string
		wantStatus    int
		wantAvailable bool
	}{
		{name: "default quantity", target: "/api/products/" + id + "/stock", wantStatus: http.StatusOK, wantAvailable: true},
		{name: "all of it", target: "/api/products/" + id + "/stock?quantity=3", wantStatus: http.StatusOK, wantAvailable: true},
		{name: "too many", target: "/api/products/" + id + "/stock?quantity=4", wantStatus: http.StatusOK, wantAvailable: false},
		{name: "zero", target: "/api/products/" + id + "/stock?quantity=0", wantStatus: http.StatusBadRequest},
		{name: "inactive", target: "/api/products/" + strconv.FormatInt(hidden.ID, 10) + "/stock", wantStatus: http.StatusNotFound},
		{name: "missing", target: "/api/products/9999/stock", wantStatus: http.StatusNotFound},
		{name: "bad id", target: "/api/products/x/stock", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp StockResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantAvailable, resp.Available)
			assert.Equal(t, 3, resp.Stock)
		})
	}
}
