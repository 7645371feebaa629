package common

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/ui/views"
)

// Page builds the layout data for r: the user, the cart badge and the path
// all come from the request context.
func (d *Deps) Page(r *http.Request, title string, data any) views.Page {
	ctx := r.Context()
	cart := middleware.CartFrom(ctx)
	return views.Page{
		Title: title,
		Path:  r.URL.Path,
		User:  middleware.UserFrom(ctx),
		Cart:  views.CartBadge{Count: cart.Count, Total: cart.Total},
		IsDev: d.IsDev,
		Data:  data,
	}
}

// Render writes a full page with status.
func (d *Deps) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf strings.Builder
	if err := d.Views.Page(name, d.Page(r, title, data)).Render(r.Context(), &buf); err != nil {
		d.Log().Error("failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// Error renders the error page, or a JSON error for fetch clients.
func (d *Deps) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	if middleware.WantsJSON(r) {
		if message == "" {
			message = http.StatusText(status)
		}
		JSON(w, status, map[string]any{"success": false, "error": message})
		return
	}
	d.Render(w, r, status, "error", http.StatusText(status), ErrorData{
		Status:  status,
		Title:   http.StatusText(status),
		Message: message,
	})
}

// NotFound renders the 404 page.
func (d *Deps) NotFound(w http.ResponseWriter, r *http.Request) {
	d.Error(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// Forbidden renders the 403 page.
func (d *Deps) Forbidden(w http.ResponseWriter, r *http.Request) {
	d.Error(w, r, http.StatusForbidden, "You do not have access to this page.")
}

// ServerError logs err and renders the 500 page. Details never reach the
// client.
func (d *Deps) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	d.Log().Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	d.Error(w, r, http.StatusInternalServerError, "Something went wrong on our side. Please try again.")
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseID parses a positive numeric id.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// LimitParam parses a limit query value, falling back to def and capping at
// upper.
func LimitParam(s string, def, upper int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return min(n, upper)
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Redirect sends a 303 to target.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}
