// Package admin provides the back office: dashboard, product and category
// management.
package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/media"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
)

// SetupRoutes configures routes for the admin feature. Uploaded product
// images go to images; a nil store disables uploads.
func SetupRoutes(router chi.Router, deps *common.Deps, images media.Store) error {
	handlers := NewHandlers(deps, images)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(deps.Forbidden))

		r.Get("/", handlers.Dashboard)

		r.Get("/products", handlers.ProductsPage)
		r.Get("/products/new", handlers.NewProductPage)
		r.Post("/products/new", handlers.CreateProduct)
		r.Get("/products/{id}/edit", handlers.EditProductPage)
		r.Post("/products/{id}/edit", handlers.UpdateProduct)
		r.Post("/products/{id}/delete", handlers.DeleteProduct)

		r.Get("/categories", handlers.CategoriesPage)
		r.Post("/categories", handlers.CreateCategory)
	})

	return nil
}
