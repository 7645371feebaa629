package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/tienda/internal/ratelimit"
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
)

func newHandlers(fixture *features.TestFixture) (*Handlers, *ratelimit.MemoryAttempts) {
	attempts := ratelimit.NewMemoryAttempts(5, 15*time.Minute)
	return NewHandlers(fixture.Deps, attempts, nil), attempts
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionName {
			return c
		}
	}
	return nil
}

func registration(email string) url.Values {
	return url.Values{
		"first_name":       {"Ana"},
		"last_name":        {"López"},
		"email":            {email},
		"password":         {"secreto1"},
		"confirm_password": {"secreto1"},
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		existing   string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "creates account",
			form:       registration("Ana@Example.com"),
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "duplicate email",
			form:       registration("ana@example.com"),
			existing:   "ana@example.com",
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"This email is already registered", `value="ana@example.com"`},
		},
		{
			name: "mismatched password",
			form: func() url.Values {
				f := registration("ana@example.com")
				f.Set("confirm_password", "otro1234")
				return f
			}(),
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"does not match"},
		},
		{
			name: "weak password and short name",
			form: func() url.Values {
				f := registration("ana@example.com")
				f.Set("first_name", "A")
				f.Set("password", "short")
				f.Set("confirm_password", "short")
				return f
			}(),
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"must be at least 2 characters", "contain a lowercase letter and a number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := features.SetupTestFixture(t)
			h, _ := newHandlers(fixture)
			if tt.existing != "" {
				fixture.User(tt.existing, false)
			}

			rec := httptest.NewRecorder()
			h.Register(rec, fixture.Visit(features.PostForm("/register", tt.form), nil, "sid-1"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
			if tt.wantStatus == http.StatusSeeOther {
				assert.Equal(t, "/", rec.Header().Get("Location"))
				assert.NotNil(t, sessionCookie(rec))
			} else {
				assert.NotContains(t, rec.Body.String(), "secreto1")
			}
		})
	}
}

func TestRegister_AdoptsAnonymousCart(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, _ := newHandlers(fixture)
	ctx := context.Background()
	p := fixture.Product(features.TestProduct{Name: "Tee"})
	fixture.AddToCart(nil, "sid-1", p.ID, 2)

	rec := httptest.NewRecorder()
	h.Register(rec, fixture.Visit(features.PostForm("/register", registration("ana@example.com")), nil, "sid-1"))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	user, err := fixture.Store.Users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)

	cart, err := fixture.Store.Carts.Find(ctx, user.ID, "")
	require.NoError(t, err)
	require.NotNil(t, cart)
	d, err := fixture.Store.Carts.Details(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalItems)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		password     string
		redirect     string
		json         bool
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:         "success",
			email:        "ana@example.com",
			password:     features.TestPassword,
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
		{
			name:         "success keeps local redirect",
			email:        " ANA@example.com ",
			password:     features.TestPassword,
			redirect:     "/checkout",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/checkout",
		},
		{
			name:         "external redirect is dropped",
			email:        "ana@example.com",
			password:     features.TestPassword,
			redirect:     "https://evil.example/",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
		{
			name:       "wrong password",
			email:      "ana@example.com",
			password:   "nope1234",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid email or password",
		},
		{
			name:       "unknown email",
			email:      "nadie@example.com",
			password:   features.TestPassword,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid email or password",
		},
		{
			name:       "json success",
			email:      "ana@example.com",
			password:   features.TestPassword,
			json:       true,
			wantStatus: http.StatusOK,
			wantBody:   `"redirect_to":"/"`,
		},
		{
			name:       "json failure",
			email:      "ana@example.com",
			password:   "nope1234",
			json:       true,
			wantStatus: http.StatusUnauthorized,
			wantBody:   `"success":false`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := features.SetupTestFixture(t)
			h, _ := newHandlers(fixture)
			fixture.User("ana@example.com", false)

			form := url.Values{"email": {tt.email}, "password": {tt.password}, "redirect": {tt.redirect}}
			req := features.PostForm("/login", form)
			if tt.json {
				req = features.AsJSON(req)
			}
			rec := httptest.NewRecorder()
			h.Login(rec, fixture.Visit(req, nil, "sid-1"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Nil(t, sessionCookie(rec))
			} else {
				assert.NotNil(t, sessionCookie(rec))
			}
		})
	}
}

func TestLogin_LockoutAndReset(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, _ := newHandlers(fixture)
	fixture.User("ana@example.com", false)

	login := func(password, remote string) int {
		req := features.PostForm("/login", url.Values{"email": {"ana@example.com"}, "password": {password}})
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.Login(rec, fixture.Visit(req, nil, "sid-1"))
		return rec.Code
	}

	for range 4 {
		require.Equal(t, http.StatusUnauthorized, login("nope1234", "192.0.2.1:1000"))
	}
	// Success clears the four failures.
	require.Equal(t, http.StatusSeeOther, login(features.TestPassword, "192.0.2.1:1001"))

	for range 5 {
		require.Equal(t, http.StatusUnauthorized, login("nope1234", "192.0.2.1:1002"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login(features.TestPassword, "192.0.2.1:1003"))

	// Other clients are unaffected.
	assert.Equal(t, http.StatusSeeOther, login(features.TestPassword, "198.51.100.7:1000"))

	expected := `
# HELP tienda_auth_login_attempts_total Login attempts by result.
# TYPE tienda_auth_login_attempts_total counter
tienda_auth_login_attempts_total{result="invalid"} 9
tienda_auth_login_attempts_total{result="locked"} 1
tienda_auth_login_attempts_total{result="success"} 2
`
	assert.NoError(t, promtest.GatherAndCompare(fixture.Metrics.Registry, strings.NewReader(expected),
		"tienda_auth_login_attempts_total"))
}

func TestLogin_LockedMessage(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, attempts := newHandlers(fixture)
	for range 5 {
		_, err := attempts.Fail(context.Background(), "192.0.2.1")
		require.NoError(t, err)
	}

	req := features.PostForm("/login", url.Values{"email": {"ana@example.com"}, "password": {"x"}})
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.Login(rec, fixture.Visit(req, nil, "sid-1"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Try again in 15 minutes.")
}

func TestLogin_MergesCart(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, _ := newHandlers(fixture)
	ctx := context.Background()
	tee := fixture.Product(features.TestProduct{Name: "Tee"})
	polo := fixture.Product(features.TestProduct{Name: "Polo"})
	user := fixture.User("ana@example.com", false)

	fixture.AddToCart(user, "", tee.ID, 1)
	fixture.AddToCart(nil, "sid-1", polo.ID, 2)

	topic := fixture.Notifier.Subscribe(middleware.CartTopic(middleware.WithUser(ctx, user)))
	defer fixture.Notifier.Unsubscribe(topic)

	form := url.Values{"email": {"ana@example.com"}, "password": {features.TestPassword}}
	rec := httptest.NewRecorder()
	h.Login(rec, fixture.Visit(features.PostForm("/login", form), nil, "sid-1"))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	cart, err := fixture.Store.Carts.Find(ctx, user.ID, "")
	require.NoError(t, err)
	d, err := fixture.Store.Carts.Details(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, d.TotalItems)

	anon, err := fixture.Store.Carts.Find(ctx, 0, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, anon)

	select {
	case <-topic:
	default:
		t.Fatal("expected a ping on the user's cart topic")
	}
}

func TestLogout(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, _ := newHandlers(fixture)
	user := fixture.User("ana@example.com", false)

	rec := httptest.NewRecorder()
	h.Logout(rec, fixture.Visit(features.PostForm("/logout", nil), user, "sid-1"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
}

func TestAccountPage(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, _ := newHandlers(fixture)
	ctx := context.Background()
	user := fixture.User("ana@example.com", false)
	_, err := fixture.Store.Addresses.Create(ctx, store.Address{
		UserID: user.ID, Label: "Casa", Street: "Av. Reforma 100", City: "CDMX", PostalCode: "06600",
	})
	require.NoError(t, err)

	p := fixture.Product(features.TestProduct{Name: "Tee"})
	cartID := fixture.AddToCart(user, "", p.ID, 1)
	order, err := fixture.Store.Orders.Place(ctx, user.ID, cartID, store.PlaceOrder{ShippingAddress: "Av. Reforma 100"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.AccountPage(rec, fixture.Visit(httptest.NewRequest(http.MethodGet, "/account?updated=profile", nil), user, "sid-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Your profile was updated.")
	assert.Contains(t, body, order.Number)
	assert.Contains(t, body, "Av. Reforma 100, CDMX 06600")
	assert.Contains(t, body, "(default)")
	assert.Contains(t, body, `value="Ana"`)
}

func TestUpdateProfile(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name: "saves",
			form: url.Values{
				"first_name": {"Ana María"}, "last_name": {"López"}, "phone": {"+52 55 1234 5678"},
				"birth_date": {"1990-04-01"}, "gender": {"female"},
			},
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "short name",
			form:       url.Values{"first_name": {"A"}, "last_name": {"López"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "must be at least 2 characters",
		},
		{
			name:       "bad date",
			form:       url.Values{"first_name": {"Ana"}, "last_name": {"López"}, "birth_date": {"01/04/1990"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "must be a date (YYYY-MM-DD)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := features.SetupTestFixture(t)
			h, _ := newHandlers(fixture)
			user := fixture.User("ana@example.com", false)

			rec := httptest.NewRecorder()
			h.UpdateProfile(rec, fixture.Visit(features.PostForm("/account/profile", tt.form), user, "sid-1"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				return
			}
			assert.Equal(t, "/account?updated=profile", rec.Header().Get("Location"))
			got, err := fixture.Store.Users.GetByID(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ana María", got.FirstName)
			assert.Equal(t, "female", got.Gender)
		})
	}
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "changes",
			form:       url.Values{"current_password": {features.TestPassword}, "new_password": {"nuevo123"}, "confirm_password": {"nuevo123"}},
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "wrong current",
			form:       url.Values{"current_password": {"nope1234"}, "new_password": {"nuevo123"}, "confirm_password": {"nuevo123"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Current password is incorrect",
		},
		{
			name:       "same as current",
			form:       url.Values{"current_password": {features.TestPassword}, "new_password": {features.TestPassword}, "confirm_password": {features.TestPassword}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "must differ from the current password",
		},
		{
			name:       "confirmation mismatch",
			form:       url.Values{"current_password": {features.TestPassword}, "new_password": {"nuevo123"}, "confirm_password": {"nuevo124"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := features.SetupTestFixture(t)
			h, _ := newHandlers(fixture)
			user := fixture.User("ana@example.com", false)

			rec := httptest.NewRecorder()
			h.ChangePassword(rec, fixture.Visit(features.PostForm("/account/password", tt.form), user, "sid-1"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				return
			}
			_, err := fixture.Store.Users.Authenticate(context.Background(), "ana@example.com", "nuevo123")
			assert.NoError(t, err)
		})
	}
}

func TestAddAddress(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	h, _ := newHandlers(fixture)
	ctx := context.Background()
	user := fixture.User("ana@example.com", false)

	post := func(form url.Values) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.AddAddress(rec, fixture.Visit(features.PostForm("/account/addresses", form), user, "sid-1"))
		return rec
	}

	rec := post(url.Values{"label": {"Casa"}, "street": {"Av. Reforma 100"}, "city": {"CDMX"}, "postal_code": {"06600"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account?updated=address", rec.Header().Get("Location"))

	rec = post(url.Values{"label": {"Oficina"}, "street": {"Insurgentes 200"}, "city": {"CDMX"}, "postal_code": {"03100"}, "is_default": {"1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	addrs, err := fixture.Store.Addresses.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "Oficina", addrs[0].Label)
	assert.True(t, addrs[0].IsDefault)
	assert.False(t, addrs[1].IsDefault)

	rec = post(url.Values{"street": {"Av."}, "city": {"CDMX"}, "postal_code": {"123"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must be 5 digits")
	assert.Contains(t, rec.Body.String(), `value="Av."`)
}

func TestRoutes_Guards(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	user := fixture.User("ana@example.com", false)

	build := func(u *store.User) chi.Router {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, fixture.Visit(req, u, "sid-1"))
			})
		})
		require.NoError(t, SetupRoutes(r, fixture.Deps, ratelimit.NewMemoryAttempts(5, time.Minute)))
		return r
	}

	tests := []struct {
		name         string
		user         *store.User
		path         string
		wantStatus   int
		wantLocation string
	}{
		{name: "account needs login", path: "/account", wantStatus: http.StatusSeeOther, wantLocation: "/login?redirect=%2Faccount"},
		{name: "account for user", user: user, path: "/account", wantStatus: http.StatusOK},
		{name: "login page for visitor", path: "/login", wantStatus: http.StatusOK},
		{name: "login page for user", user: user, path: "/login", wantStatus: http.StatusSeeOther, wantLocation: "/"},
		{name: "register page for user", user: user, path: "/register", wantStatus: http.StatusSeeOther, wantLocation: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			build(tt.user).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
		})
	}
}
