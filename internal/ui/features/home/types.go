package home

import "github.com/tienda-labs/tienda/internal/store"

// PageData holds what the landing page shows.
type PageData struct {
	Featured   []store.Product
	Categories []store.Category
}
