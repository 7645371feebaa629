package views

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/tienda/internal/store"
)

func TestNew_Embedded(t *testing.T) {
	r, err := New(Options{})
	require.NoError(t, err)
	assert.Empty(t, r.Dir())

	for _, page := range []string{
		"home", "catalog", "product", "cart", "login", "register", "account",
		"checkout", "checkout_success", "checkout_cancelled", "error",
		"admin_dashboard", "admin_products", "admin_product_form", "admin_categories",
	} {
		assert.True(t, r.Has(page), page)
	}
	assert.False(t, r.Has("layout"))
}

func TestRenderer_Page(t *testing.T) {
	r, err := New(Options{})
	require.NoError(t, err)

	data := struct {
		Status  int
		Title   string
		Message string
	}{Status: 404, Title: "Not Found", Message: "Gone <fishing>"}

	tests := []struct {
		name    string
		page    Page
		want    []string
		notWant []string
	}{
		{
			name: "anonymous",
			page: Page{Title: "Not Found", Path: "/x", Data: data},
			want: []string{
				"<title>Not Found - Tienda</title>",
				`href="/login"`,
				`data-count="0"`,
				"Gone &lt;fishing&gt;",
			},
			notWant: []string{"@get('/reload')", `href="/admin"`},
		},
		{
			name: "admin in dev with a cart",
			page: Page{
				User:  &store.User{FirstName: "Ana", IsAdmin: true},
				Cart:  CartBadge{Count: 3, Total: 89700},
				IsDev: true,
				Data:  data,
			},
			want: []string{
				`href="/admin"`,
				`<a href="/account">Ana</a>`,
				`data-count="3"`,
				"@get('/reload')",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			require.NoError(t, r.Page("error", tt.page).Render(context.Background(), &b))
			out := b.String()
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}

	t.Run("unknown page", func(t *testing.T) {
		var b strings.Builder
		err := r.Page("nope", Page{}).Render(context.Background(), &b)
		assert.ErrorContains(t, err, `unknown page "nope"`)
	})

	t.Run("failed render writes nothing", func(t *testing.T) {
		var b strings.Builder
		err := r.Page("admin_dashboard", Page{Data: 42}).Render(context.Background(), &b)
		assert.Error(t, err)
		assert.Empty(t, b.String())
	})
}

func TestRenderer_Partial(t *testing.T) {
	r, err := New(Options{})
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, r.Partial("cart_badge", CartBadge{Count: 7}).Render(context.Background(), &b))
	assert.Equal(t, `<span id="cart-badge" class="badge" data-count="7">7</span>`, b.String())
}

func writeTemplates(t *testing.T, dir, greeting string) {
	t.Helper()
	files := map[string]string{
		"layout.html":         `{{define "layout"}}<main>{{template "content" .}}</main>{{end}}`,
		"partials/shout.html": `{{define "shout"}}{{.}}!{{end}}`,
		"pages/hello.html":    `{{define "content"}}` + greeting + ` {{template "shout" .Title}}{{end}}`,
	}
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestRenderer_ReloadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, "Hola")

	r, err := New(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, r.Dir())

	page := func() string {
		var b strings.Builder
		require.NoError(t, r.Page("hello", Page{Title: "Ana"}).Render(context.Background(), &b))
		return b.String()
	}
	assert.Equal(t, "<main>Hola Ana!</main>", page())

	writeTemplates(t, dir, "Hello")
	require.NoError(t, r.Reload())
	assert.Equal(t, "<main>Hello Ana!</main>", page())

	// A broken edit keeps the last good templates.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "hello.html"), []byte(`{{define "content"}}{{end`), 0o644))
	assert.Error(t, r.Reload())
	assert.Equal(t, "<main>Hello Ana!</main>", page())
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestStars(t *testing.T) {
	tests := []struct {
		avg  float64
		want string
	}{
		{0, "☆☆☆☆☆"},
		{2.4, "★★☆☆☆"},
		{2.5, "★★★☆☆"},
		{5, "★★★★★"},
		{7, "★★★★★"},
		{-1, "☆☆☆☆☆"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stars(tt.avg), "Stars(%v)", tt.avg)
	}
}

func TestPageURL(t *testing.T) {
	q := url.Values{"search": {"tee"}, "page": {"1"}}
	assert.Equal(t, "?page=3&search=tee", PageURL(q, 3))
	assert.Equal(t, "1", q.Get("page"), "input is not modified")
	assert.Equal(t, "?page=2", PageURL(nil, 2))
}

func TestGenderLabel(t *testing.T) {
	assert.Equal(t, "Men", GenderLabel(store.GenderMen))
	assert.Equal(t, "Women", GenderLabel(store.GenderWomen))
	assert.Equal(t, "Unisex", GenderLabel(""))
	assert.Equal(t, "kids", GenderLabel("kids"))
}

func TestFuncs(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, seq(3))
	assert.Nil(t, seq(0))
	assert.True(t, contains([]string{"S", "M"}, "M"))
	assert.False(t, contains(nil, "M"))

	js, err := toJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(js))
}
