// Package views renders the storefront pages. Templates are parsed once per
// page into a set that shares the layout and partials, and every render is
// exposed as a templ.Component so handlers and SSE patches treat pages and
// fragments alike.
package views

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/tienda-labs/tienda/internal/store"
)

//go:embed templates
var embedded embed.FS

// Options configures a Renderer.
type Options struct {
	// Dir, when set, is a templates directory read from disk instead of the
	// embedded copy. Reload re-reads it.
	Dir    string
	Logger *slog.Logger
}

// Renderer holds the parsed template sets.
type Renderer struct {
	fsys   fs.FS
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	base  *template.Template
	pages map[string]*template.Template
}

// CartBadge is the header cart indicator.
type CartBadge struct {
	Count int
	Total store.Money
}

// Page is the data every full page is rendered with.
type Page struct {
	Title string
	Path  string
	User  *store.User
	Cart  CartBadge
	IsDev bool
	Flash string
	Data  any
}

// New parses all templates.
func New(opts Options) (*Renderer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Renderer{dir: opts.Dir, logger: logger}
	if opts.Dir != "" {
		r.fsys = os.DirFS(opts.Dir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded templates: %w", err)
		}
		r.fsys = sub
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the on-disk templates directory, or "" when embedded.
func (r *Renderer) Dir() string {
	return r.dir
}

// Reload re-parses every template. On failure the previous sets stay in use.
func (r *Renderer) Reload() error {
	base, err := template.New("").Funcs(funcs).ParseFS(r.fsys, "layout.html", "partials/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse layout: %w", err)
	}

	files, err := fs.Glob(r.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		set, err := base.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := set.ParseFS(r.fsys, f); err != nil {
			return fmt.Errorf("failed to parse %s: %w", f, err)
		}
		pages[strings.TrimSuffix(path.Base(f), ".html")] = set
	}

	r.mu.Lock()
	r.base = base
	r.pages = pages
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "pages", len(pages), "dir", r.dir)
	return nil
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pages[name]
	return ok
}

// Page renders a full page through the layout.
func (r *Renderer) Page(name string, data Page) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		r.mu.RLock()
		set, ok := r.pages[name]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("unknown page %q", name)
		}
		return execute(w, set, "layout", data)
	})
}

// Partial renders a block from the shared partials.
func (r *Renderer) Partial(block string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		r.mu.RLock()
		base := r.base
		r.mu.RUnlock()
		return execute(w, base, block, data)
	})
}

// execute buffers the output so a failing template never leaves half a page
// on the wire.
func execute(w io.Writer, t *template.Template, name string, data any) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
