// Package api provides the JSON endpoints used by the storefront scripts.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// SetupRoutes configures routes for the api feature. The router is expected
// to be mounted at /api.
func SetupRoutes(router chi.Router, deps *common.Deps) error {
	handlers := NewHandlers(deps)

	router.Get("/products/search", handlers.Search)
	router.Get("/products/{id}/stock", handlers.Stock)
	router.Get("/categories/{id}/products", handlers.CategoryProducts)

	return nil
}
