// Package resources serves the storefront's static assets and uploaded
// product images.
package resources

import (
	"net/http"
	"strings"
)

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// StaticPath returns the URL path for a static asset.
func StaticPath(path string) string {
	return "/static/" + strings.TrimPrefix(path, "/")
}

// Uploads serves files saved by the local media store under prefix.
// Directory listings are disabled.
func Uploads(dir, prefix string) http.Handler {
	fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fileServer.ServeHTTP(w, r)
	})
}
