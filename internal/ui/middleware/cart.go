package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tienda-labs/tienda/internal/store"
)

// CartState is the visitor's cart as seen by every page.
type CartState struct {
	CartID int64
	Count  int
	Total  store.Money
}

// WithCart stores the cart state on ctx.
func WithCart(ctx context.Context, c CartState) context.Context {
	return context.WithValue(ctx, cartCtxKey, c)
}

// CartFrom returns the cart state, zero when there is no cart.
func CartFrom(ctx context.Context) CartState {
	c, _ := ctx.Value(cartCtxKey).(CartState)
	return c
}

// Cart looks up the visitor's cart without creating one. Lookup failures are
// logged and the request continues with an empty cart. It must run after the
// session middleware.
func Cart(carts *store.CartStore, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			state, err := LoadCart(ctx, carts)
			if err != nil {
				logger.Error("failed to load cart", "error", err)
				state = CartState{}
			}
			next.ServeHTTP(w, r.WithContext(WithCart(ctx, state)))
		})
	}
}

// LoadCart resolves the cart for the user or session on ctx.
func LoadCart(ctx context.Context, carts *store.CartStore) (CartState, error) {
	cart, err := carts.Find(ctx, UserID(ctx), SessionIDFrom(ctx))
	if err != nil || cart == nil {
		return CartState{}, err
	}
	d, err := carts.Details(ctx, cart.ID)
	if err != nil {
		return CartState{}, err
	}
	return CartState{CartID: cart.ID, Count: d.TotalItems, Total: d.Total}, nil
}
