// Package product provides the product detail page.
package product

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// SetupRoutes configures routes for the product feature.
func SetupRoutes(router chi.Router, deps *common.Deps) error {
	handlers := NewHandlers(deps)

	router.Get("/products/{id}", handlers.DetailPage)

	return nil
}
