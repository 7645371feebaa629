// Package checkout provides the simulated payment flow that turns a cart
// into an order.
package checkout

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
)

// SetupRoutes configures routes for the checkout feature.
func SetupRoutes(router chi.Router, deps *common.Deps) error {
	handlers := NewHandlers(deps)

	router.Route("/checkout", func(r chi.Router) {
		r.Get("/cancelled", handlers.CancelledPage)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", handlers.CheckoutPage)
			r.Post("/pay", handlers.Pay)
			r.Get("/success/{number}", handlers.SuccessPage)
		})
	})

	return nil
}
