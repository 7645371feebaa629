package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// WantsJSON reports whether the client expects a JSON response rather than
// a page: fetch/XHR requests and everything under /api/.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RequireAuth rejects anonymous visitors: JSON clients get 401 with a
// redirect hint, browsers are sent to the login page and back afterwards.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		if WantsJSON(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success":     false,
				"error":       "You need to log in",
				"redirect_to": LoginPath,
			})
			return
		}
		target := LoginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// RequireAdmin lets administrators through. Anonymous visitors are handled
// as in RequireAuth; other users get 403, rendered by forbidden for browsers.
func RequireAdmin(forbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		admin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := UserFrom(r.Context()); u != nil && u.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}
			if WantsJSON(r) || forbidden == nil {
				writeJSON(w, http.StatusForbidden, map[string]any{
					"success": false,
					"error":   "Administrator access required",
				})
				return
			}
			forbidden(w, r)
		})
		return RequireAuth(admin)
	}
}

// RedirectIfAuthenticated keeps logged-in users away from the login and
// registration pages.
func RedirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SafeRedirect returns target when it is a local path, otherwise "/".
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}
