package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// KeyFunc derives the client key for a request.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc uses keyHeader when present, then the first
// X-Forwarded-For entry when trustXFF is set, then the RemoteAddr host.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Options configures Middleware.
type Options struct {
	Store  *Store
	KeyFn  KeyFunc
	Logger *slog.Logger
	// OnReject is called for every rejected request, e.g. to count it.
	OnReject func(r *http.Request)
}

// Middleware rejects requests over the per-key rate with 429 and a
// Retry-After header in whole seconds.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc("", false)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			ok, wait := opts.Store.Decide(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			opts.Logger.Warn("rate limit exceeded", "key", key, "path", r.URL.Path)
			if opts.OnReject != nil {
				opts.OnReject(r)
			}

			secs := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "Too many requests. Please try again later.",
				})
				return
			}
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
