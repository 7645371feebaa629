// Package cart provides the cart page, its JSON mutations and the live
// cart badge stream.
package cart

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// SetupRoutes configures routes for the cart feature.
func SetupRoutes(router chi.Router, deps *common.Deps) error {
	handlers := NewHandlers(deps)

	router.Route("/cart", func(r chi.Router) {
		r.Get("/", handlers.CartPage)
		r.Get("/summary", handlers.Summary)
		r.Get("/updates", handlers.Updates)
		r.Post("/add", handlers.Add)
		r.Post("/update", handlers.Update)
		r.Post("/remove", handlers.Remove)
		r.Post("/clear", handlers.Clear)
	})

	return nil
}
