package checkout

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
)

// Handlers provides HTTP handlers for the checkout feature.
type Handlers struct {
	*common.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// CheckoutPage shows the order summary and the saved addresses. An empty
// cart sends the visitor back to the cart page.
func (h *Handlers) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID := middleware.CartFrom(ctx).CartID
	if cartID == 0 {
		common.Redirect(w, r, "/cart")
		return
	}

	d, err := h.Store.Carts.Details(ctx, cartID)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	if len(d.Items) == 0 {
		common.Redirect(w, r, "/cart")
		return
	}

	data := PageData{Items: d.Items, Summary: store.SummarizeItems(d.Items)}
	if data.Issues, err = h.Store.Carts.Validate(ctx, cartID); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if data.Addresses, err = h.Store.Addresses.ListByUser(ctx, middleware.UserID(ctx)); err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.Render(w, r, http.StatusOK, "checkout", "Checkout", data)
}

// Pay simulates a successful card payment and places the order.
func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	cartID := middleware.CartFrom(ctx).CartID
	if cartID == 0 {
		h.Error(w, r, http.StatusBadRequest, "Your cart is empty")
		return
	}

	issues, err := h.Store.Carts.Validate(ctx, cartID)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	if len(issues) > 0 {
		h.Error(w, r, http.StatusConflict, "Some items in your cart are no longer available in that quantity")
		return
	}

	address, ok := h.shippingAddress(w, r, userID)
	if !ok {
		return
	}

	order, err := h.Store.Orders.Place(ctx, userID, cartID, store.PlaceOrder{
		PaymentMethod:   store.PaymentMethodCard,
		ShippingAddress: address,
	})
	switch {
	case errors.Is(err, store.ErrEmptyCart):
		h.Error(w, r, http.StatusBadRequest, "Your cart is empty")
		return
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrProductUnavailable):
		h.Error(w, r, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.ServerError(w, r, err)
		return
	}

	h.Metrics.OrderPlaced(order.Total.Float())
	h.Notifier.Publish(middleware.CartTopic(ctx))

	target := "/checkout/success/" + url.PathEscape(order.Number)
	if !middleware.WantsJSON(r) {
		common.Redirect(w, r, target)
		return
	}
	common.JSON(w, http.StatusOK, PayResponse{
		Success:     true,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		RedirectTo:  target,
	})
}

// shippingAddress resolves the chosen address, falling back to the default
// one. Having no saved address is allowed. It writes the error response
// itself when the choice is not one of the user's addresses.
func (h *Handlers) shippingAddress(w http.ResponseWriter, r *http.Request, userID int64) (string, bool) {
	ctx := r.Context()

	if raw := strings.TrimSpace(r.FormValue("address_id")); raw != "" {
		id, ok := common.ParseID(raw)
		if !ok {
			h.Error(w, r, http.StatusBadRequest, "Invalid shipping address")
			return "", false
		}
		a, err := h.Store.Addresses.Get(ctx, userID, id)
		if err != nil {
			h.ServerError(w, r, err)
			return "", false
		}
		if a == nil {
			h.Error(w, r, http.StatusBadRequest, "Invalid shipping address")
			return "", false
		}
		return a.String(), true
	}

	addrs, err := h.Store.Addresses.ListByUser(ctx, userID)
	if err != nil {
		h.ServerError(w, r, err)
		return "", false
	}
	if len(addrs) == 0 {
		return "", true
	}
	return addrs[0].String(), true
}

// SuccessPage shows a placed order to its owner.
func (h *Handlers) SuccessPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.Store.Orders.GetByNumber(ctx, middleware.UserID(ctx), chi.URLParam(r, "number"))
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	if order == nil {
		h.NotFound(w, r)
		return
	}

	h.Render(w, r, http.StatusOK, "checkout_success", "Order "+order.Number, SuccessData{Order: order})
}

// CancelledPage tells the visitor the payment was abandoned.
func (h *Handlers) CancelledPage(w http.ResponseWriter, r *http.Request) {
	h.Render(w, r, http.StatusOK, "checkout_cancelled", "Payment cancelled", nil)
}
