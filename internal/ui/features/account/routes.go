// Package account provides registration, login and the customer account
// pages.
package account

import (
	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/ratelimit"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
)

// SetupRoutes configures routes for the account feature. Failed logins are
// counted in attempts per client address.
func SetupRoutes(router chi.Router, deps *common.Deps, attempts ratelimit.Attempts) error {
	handlers := NewHandlers(deps, attempts, ratelimit.DefaultKeyFunc("", false))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RedirectIfAuthenticated)
		r.Get("/register", handlers.RegisterPage)
		r.Post("/register", handlers.Register)
		r.Get("/login", handlers.LoginPage)
		r.Post("/login", handlers.Login)
	})

	router.Post("/logout", handlers.Logout)

	router.Route("/account", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", handlers.AccountPage)
		r.Post("/profile", handlers.UpdateProfile)
		r.Post("/password", handlers.ChangePassword)
		r.Post("/addresses", handlers.AddAddress)
	})

	return nil
}
