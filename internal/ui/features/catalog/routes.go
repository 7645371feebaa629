// Package catalog provides the product listing with filters, sorting and
// pagination.
package catalog

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// SetupRoutes configures routes for the catalog feature.
func SetupRoutes(router chi.Router, deps *common.Deps) error {
	handlers := NewHandlers(deps)

	router.Get("/products", handlers.ListPage)

	return nil
}
