package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/tienda/internal/ui/features"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{in: "42", want: 42, wantOK: true},
		{in: " 7 ", want: 7, wantOK: true},
		{in: "0"},
		{in: "-3"},
		{in: "abc"},
		{in: ""},
		{in: "99999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := common.ParseID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimitParam(t *testing.T) {
	assert.Equal(t, 20, common.LimitParam("", 20, 50))
	assert.Equal(t, 20, common.LimitParam("x", 20, 50))
	assert.Equal(t, 20, common.LimitParam("0", 20, 50))
	assert.Equal(t, 5, common.LimitParam("5", 20, 50))
	assert.Equal(t, 50, common.LimitParam("500", 20, 50))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, common.TotalPages(0, 12))
	assert.Equal(t, 1, common.TotalPages(12, 12))
	assert.Equal(t, 2, common.TotalPages(13, 12))
	assert.Equal(t, 0, common.TotalPages(5, 0))
}

func TestError(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	deps := fixture.Deps

	t.Run("page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		deps.NotFound(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/nope", nil), nil, "sid-1"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "The page you are looking for does not exist.")
	})

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		deps.Forbidden(rec, features.AsJSON(httptest.NewRequest(http.MethodGet, "/admin", nil)))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "You do not have access to this page.", body["error"])
	})

	t.Run("server error hides details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		deps.ServerError(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/", nil), nil, "sid-1"),
			errors.New("connection refused by db-internal:5432"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db-internal")
		assert.Contains(t, rec.Body.String(), "Something went wrong on our side.")
	})
}

func TestPage_UsesRequestContext(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	p := fixture.Product(features.TestProduct{Name: "Tee", Price: 29900})
	user := fixture.User("ana@example.com", false)
	fixture.AddToCart(user, "", p.ID, 2)

	req := fixture.Visit(httptest.NewRequest(http.MethodGet, "/cart", nil), user, "sid-1")
	page := fixture.Deps.Page(req, "Cart", nil)

	assert.Equal(t, "Cart", page.Title)
	assert.Equal(t, "/cart", page.Path)
	require.NotNil(t, page.User)
	assert.Equal(t, user.ID, page.User.ID)
	assert.Equal(t, 2, page.Cart.Count)
	assert.Equal(t, "$598.00", page.Cart.Total.String())
}
