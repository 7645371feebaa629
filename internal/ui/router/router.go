// Package router sets up HTTP routes for the storefront.
package router

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/tienda-labs/tienda/internal/media"
	"github.com/tienda-labs/tienda/internal/ratelimit"
	accountFeature "github.com/tienda-labs/tienda/internal/ui/features/account"
	adminFeature "github.com/tienda-labs/tienda/internal/ui/features/admin"
	apiFeature "github.com/tienda-labs/tienda/internal/ui/features/api"
	cartFeature "github.com/tienda-labs/tienda/internal/ui/features/cart"
	catalogFeature "github.com/tienda-labs/tienda/internal/ui/features/catalog"
	checkoutFeature "github.com/tienda-labs/tienda/internal/ui/features/checkout"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	homeFeature "github.com/tienda-labs/tienda/internal/ui/features/home"
	productFeature "github.com/tienda-labs/tienda/internal/ui/features/product"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/ui/notifier"
	"github.com/tienda-labs/tienda/internal/ui/resources"
)

// Options holds what the routes are built from besides the feature deps.
type Options struct {
	// Attempts tracks failed logins; nil uses an in-memory tracker.
	Attempts ratelimit.Attempts
	// Images stores product uploads; nil disables uploads.
	Images media.Store
	// UploadsDir is served under UploadsPrefix when images are stored
	// locally.
	UploadsDir    string
	UploadsPrefix string

	// RateLimit limits every request per client; nil disables it.
	RateLimit *ratelimit.Store
	KeyFn     ratelimit.KeyFunc

	CORSOrigins   []string
	CSP           string
	ExposeMetrics bool
}

// SetupRoutes configures all routes for the storefront.
func SetupRoutes(router chi.Router, deps *common.Deps, opts Options) error {
	if opts.KeyFn == nil {
		opts.KeyFn = ratelimit.DefaultKeyFunc("", false)
	}
	if opts.Attempts == nil {
		opts.Attempts = ratelimit.NewMemoryAttempts(ratelimit.DefaultMaxAttempts, ratelimit.DefaultLockout)
	}

	router.Use(
		middleware.SecurityHeaders(opts.CSP),
		deps.Metrics.Instrument,
	)
	if opts.RateLimit != nil {
		router.Use(ratelimit.Middleware(ratelimit.Options{
			Store:    opts.RateLimit,
			KeyFn:    opts.KeyFn,
			Logger:   deps.Log(),
			OnReject: deps.Metrics.RateLimited,
		}))
	}

	// Assets and probes skip the session and cart lookups.
	router.Handle("/static/*", resources.Handler())
	if opts.UploadsDir != "" {
		prefix := opts.UploadsPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		router.Handle(prefix+"/*", resources.Uploads(opts.UploadsDir, prefix))
	}
	if opts.ExposeMetrics && deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DB.Ping(r.Context()); err != nil {
			common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	var setupErr error
	router.Group(func(r chi.Router) {
		r.Use(
			deps.Sessions.Middleware,
			middleware.Cart(deps.Store.Carts, deps.Log()),
		)

		// Hot reload endpoint for dev mode
		if deps.IsDev {
			setupReload(r, deps.Notifier)
		}

		r.Route("/api", func(api chi.Router) {
			api.Use(middleware.NewCORS(opts.CORSOrigins).Handler)
			if err := apiFeature.SetupRoutes(api, deps); err != nil {
				setupErr = err
			}
		})

		setups := []func(chi.Router) error{
			func(r chi.Router) error { return homeFeature.SetupRoutes(r, deps) },
			func(r chi.Router) error { return catalogFeature.SetupRoutes(r, deps) },
			func(r chi.Router) error { return productFeature.SetupRoutes(r, deps) },
			func(r chi.Router) error { return cartFeature.SetupRoutes(r, deps) },
			func(r chi.Router) error { return accountFeature.SetupRoutes(r, deps, opts.Attempts) },
			func(r chi.Router) error { return checkoutFeature.SetupRoutes(r, deps) },
			func(r chi.Router) error { return adminFeature.SetupRoutes(r, deps, opts.Images) },
		}
		for _, setup := range setups {
			if setupErr != nil {
				return
			}
			setupErr = setup(r)
		}

		r.NotFound(deps.NotFound)
	})

	return setupErr
}

// setupReload keeps an SSE stream open per page. The page reloads once when
// it reconnects after a restart and again on every reload notification.
func setupReload(router chi.Router, notify *notifier.Notifier) {
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		ch := notify.Subscribe(notifier.Reload)
		defer notify.Unsubscribe(ch)

		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		for {
			select {
			case <-ch:
				reload()
			case <-r.Context().Done():
				return
			}
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		notify.Publish(notifier.Reload)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
