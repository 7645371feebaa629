// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tienda-labs/tienda/internal/database"
	"github.com/tienda-labs/tienda/internal/metrics"
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/testutil"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/ui/notifier"
	"github.com/tienda-labs/tienda/internal/ui/views"
)

// TestPassword is the password of every fixture user.
const TestPassword = "secreto1"

// TestProduct describes a catalog product with minimal boilerplate. Zero
// values get sensible defaults: category "Shirts", price $299.00, unisex,
// stock 10, active.
type TestProduct struct {
	Name      string
	Category  string
	Price     store.Money
	SalePrice *store.Money
	Gender    string
	Stock     *int
	Sizes     []string
	Colors    []string
	Featured  bool
	Inactive  bool
}

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Deps         *common.Deps
	Store        *store.Store
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
	Metrics      *metrics.Metrics

	categories map[string]int64
	t          *testing.T
}

// SetupTestFixture creates an in-memory database with the schema applied,
// the embedded templates and the given products.
func SetupTestFixture(t *testing.T, products ...TestProduct) *TestFixture {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, DSN: ":memory:", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	st := store.New(db, logger)
	st.Users.SetBcryptCost(bcrypt.MinCost)

	renderer, err := views.New(views.Options{Logger: logger})
	require.NoError(t, err)

	sessionStore := NewTestSessionStore()
	m := metrics.New()
	notify := notifier.New()

	f := &TestFixture{
		Deps: &common.Deps{
			Store:    st,
			Views:    renderer,
			Sessions: middleware.NewSessions(sessionStore, st.Users, logger),
			Notifier: notify,
			Metrics:  m,
			Logger:   logger,
		},
		Store:        st,
		Notifier:     notify,
		SessionStore: sessionStore,
		Metrics:      m,
		categories:   map[string]int64{},
		t:            t,
	}
	for _, p := range products {
		f.Product(p)
	}
	return f
}

// Category returns the id of the named category, creating it on first use.
func (f *TestFixture) Category(name string) int64 {
	f.t.Helper()
	if id, ok := f.categories[name]; ok {
		return id
	}
	id, err := f.Store.Categories.Create(context.Background(), name, strings.ToLower(name), "")
	require.NoError(f.t, err)
	f.categories[name] = id
	return id
}

// Product creates p and returns it as stored.
func (f *TestFixture) Product(p TestProduct) *store.Product {
	f.t.Helper()
	ctx := context.Background()

	if p.Category == "" {
		p.Category = "Shirts"
	}
	if p.Price == 0 {
		p.Price = 29900
	}
	if p.Gender == "" {
		p.Gender = store.GenderUnisex
	}
	stock := 10
	if p.Stock != nil {
		stock = *p.Stock
	}

	id, err := f.Store.Products.Create(ctx, store.ProductInput{
		Name:       p.Name,
		Price:      p.Price,
		SalePrice:  p.SalePrice,
		CategoryID: f.Category(p.Category),
		Gender:     p.Gender,
		Sizes:      p.Sizes,
		Colors:     p.Colors,
		Stock:      stock,
		Featured:   p.Featured,
		Active:     !p.Inactive,
	})
	require.NoError(f.t, err)

	got, err := f.Store.Products.Get(ctx, id)
	require.NoError(f.t, err)
	return got
}

// User registers an account with TestPassword.
func (f *TestFixture) User(email string, admin bool) *store.User {
	f.t.Helper()
	ctx := context.Background()
	u, err := f.Store.Users.Create(ctx, store.NewUser{
		FirstName: "Ana",
		LastName:  "López",
		Email:     email,
		Password:  TestPassword,
	})
	require.NoError(f.t, err)
	if admin {
		require.NoError(f.t, f.Store.Users.SetAdmin(ctx, u.ID, true))
		u.IsAdmin = true
	}
	return u
}

// AddToCart puts qty units of a product in the visitor's cart and returns
// the cart id.
func (f *TestFixture) AddToCart(user *store.User, sid string, productID int64, qty int) int64 {
	f.t.Helper()
	ctx := context.Background()
	var userID int64
	if user != nil {
		userID = user.ID
	}
	cart, err := f.Store.Carts.FindOrCreate(ctx, userID, sid)
	require.NoError(f.t, err)
	require.NoError(f.t, f.Store.Carts.AddItem(ctx, cart.ID, productID, qty, "", ""))
	return cart.ID
}

// Visit attaches what the session and cart middleware would: the user, the
// anonymous session id and the current cart.
func (f *TestFixture) Visit(r *http.Request, user *store.User, sid string) *http.Request {
	f.t.Helper()
	ctx := middleware.WithSessionID(r.Context(), sid)
	ctx = middleware.WithUser(ctx, user)
	state, err := middleware.LoadCart(ctx, f.Store.Carts)
	require.NoError(f.t, err)
	return r.WithContext(middleware.WithCart(ctx, state))
}

// PostForm builds a form-encoded POST request.
func PostForm(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// AsJSON marks r as a fetch request expecting JSON.
func AsJSON(r *http.Request) *http.Request {
	r.Header.Set("Accept", "application/json")
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	return r
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// RequestWithTimeout wraps a request with a context timeout that is released
// when the test ends.
func RequestWithTimeout(t *testing.T, r *http.Request, timeout time.Duration) *http.Request {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	t.Cleanup(cancel)
	return r.WithContext(ctx)
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return middleware.NewCookieStore(middleware.SessionOptions{Secret: "test-secret-key-32-bytes-long!!"})
}

// IntPtr returns &n.
func IntPtr(n int) *int { return &n }

// MoneyPtr returns &m.
func MoneyPtr(m store.Money) *store.Money { return &m }
