package catalog

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features"
)

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t,
		features.TestProduct{Name: "Classic Tee", Category: "Shirts", Gender: store.GenderMen, Price: 29900},
		features.TestProduct{Name: "Linen Shirt", Category: "Shirts", Gender: store.GenderWomen, Price: 45900},
		features.TestProduct{Name: "Slim Jeans", Category: "Pants", Gender: store.GenderWomen, Price: 59900},
		features.TestProduct{Name: "Old Tee", Category: "Shirts", Inactive: true},
	)
	return NewHandlers(fixture.Deps), fixture
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Filters
	}{
		{name: "empty", query: "", want: Filters{}},
		{name: "all filters", query: "category=shirts&gender=women&search=+linen+&sort=price_asc", want: Filters{Category: "shirts", Gender: "women", Search: "linen", Sort: "price_asc"}},
		{name: "spanish gender alias", query: "gender=hombre", want: Filters{Gender: "men"}},
		{name: "unknown gender and sort dropped", query: "gender=kids&sort=random", want: Filters{}},
		{name: "q is a search alias", query: "q=jeans", want: Filters{Search: "jeans"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ParseFilters(q))
		})
	}
}

func TestListPage(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantBody []string
		notBody  []string
	}{
		{
			name:     "all active products",
			query:    "",
			wantBody: []string{"Classic Tee", "Linen Shirt", "Slim Jeans", "3 products"},
			notBody:  []string{"Old Tee"},
		},
		{
			name:     "category filter",
			query:    "?category=pants",
			wantBody: []string{"Slim Jeans", "1 products"},
			notBody:  []string{"Classic Tee", "Linen Shirt"},
		},
		{
			name:     "gender filter",
			query:    "?gender=mujer",
			wantBody: []string{"Linen Shirt", "Slim Jeans", "2 products"},
			notBody:  []string{"Classic Tee"},
		},
		{
			name:     "search",
			query:    "?search=JEANS",
			wantBody: []string{"Slim Jeans", "Results for"},
			notBody:  []string{"Linen Shirt"},
		},
		{
			name:     "pagination links keep filters",
			query:    "?gender=women&limit=1",
			wantBody: []string{`class="pagination"`, "gender=women", "limit=1", "page=2"},
		},
		{
			name:     "menu marks the active category",
			query:    "?category=shirts",
			wantBody: []string{`class="active">Shirts</a>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t)
			rec := httptest.NewRecorder()
			h.ListPage(rec, httptest.NewRequest(http.MethodGet, "/products"+tt.query, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
			for _, not := range tt.notBody {
				assert.NotContains(t, body, not)
			}
		})
	}
}

func TestListPage_SortByPrice(t *testing.T) {
	h, _ := setupTestHandlers(t)
	rec := httptest.NewRecorder()
	h.ListPage(rec, httptest.NewRequest(http.MethodGet, "/products?sort=price_desc", nil))

	body := rec.Body.String()
	jeans := strings.Index(body, "Slim Jeans")
	tee := strings.Index(body, "Classic Tee")
	assert.Greater(t, tee, jeans, "most expensive first")
	assert.Contains(t, body, `value="price_desc" selected`)
}

func TestListPage_StoreError(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	_ = fixture.Store.DB.Close()

	rec := httptest.NewRecorder()
	h.ListPage(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
	assert.NotContains(t, rec.Body.String(), "database is closed")
}
