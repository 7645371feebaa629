// Package common provides shared types and utilities for UI features.
package common

import (
	"log/slog"

	"github.com/tienda-labs/tienda/internal/metrics"
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/ui/notifier"
	"github.com/tienda-labs/tienda/internal/ui/views"
)

// Deps holds what every feature's handlers are built from.
type Deps struct {
	Store    *store.Store
	Views    *views.Renderer
	Sessions *middleware.Sessions
	Notifier *notifier.Notifier
	Metrics  *metrics.Metrics // optional
	Logger   *slog.Logger
	IsDev    bool
}

// Log returns the logger, never nil.
func (d *Deps) Log() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// TreeNode represents a node in the catalog navigation.
type TreeNode struct {
	Name     string
	Path     string // link target
	Count    int    // 0 hides the count
	Active   bool
	Children []TreeNode
}

// ErrorData is rendered by the error page.
type ErrorData struct {
	Status  int
	Title   string
	Message string
}
