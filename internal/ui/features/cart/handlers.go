package cart

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/ui/views"
	"github.com/tienda-labs/tienda/internal/validation"
)

// Handlers provides HTTP handlers for the cart feature.
type Handlers struct {
	*common.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// CartPage renders the cart lines with totals and any lines that can no
// longer be bought as they are.
func (h *Handlers) CartPage(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Items:   []store.CartItem{},
		Summary: &store.CartSummary{},
		Issues:  []store.CartIssue{},
	}

	if cartID := middleware.CartFrom(r.Context()).CartID; cartID != 0 {
		d, err := h.Store.Carts.Details(r.Context(), cartID)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
		data.Items = d.Items
		data.Summary = store.SummarizeItems(d.Items)

		data.Issues, err = h.Store.Carts.Validate(r.Context(), cartID)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
	}

	h.Render(w, r, http.StatusOK, "cart", "Your cart", data)
}

// Summary returns the cart totals and issues as JSON.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	resp := SummaryResponse{
		Success: true,
		Summary: &store.CartSummary{},
		Issues:  []store.CartIssue{},
	}

	if cartID := middleware.CartFrom(r.Context()).CartID; cartID != 0 {
		sum, err := h.Store.Carts.Summary(r.Context(), cartID)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
		issues, err := h.Store.Carts.Validate(r.Context(), cartID)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
		resp.Summary, resp.Issues, resp.CartCount = sum, issues, sum.TotalItems
	}

	common.JSON(w, http.StatusOK, resp)
}

// Add puts a product in the visitor's cart, creating the cart on first use.
func (h *Handlers) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, ok := common.ParseID(r.FormValue("product_id"))
	if !ok {
		h.fail(w, r, opAdd, "invalid", http.StatusBadRequest, "Invalid product")
		return
	}
	raw := r.FormValue("quantity")
	if strings.TrimSpace(raw) == "" {
		raw = "1"
	}
	qty, err := validation.Quantity(raw)
	if err != nil {
		h.fail(w, r, opAdd, "invalid", http.StatusBadRequest, err.Error())
		return
	}

	available, stock, err := h.Store.Products.CheckStock(ctx, productID, qty)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.fail(w, r, opAdd, "unavailable", http.StatusNotFound, "Product not available")
		return
	case err != nil:
		h.ServerError(w, r, err)
		return
	case !available:
		h.fail(w, r, opAdd, "insufficient_stock", http.StatusBadRequest, stockMessage(stock))
		return
	}

	cart, err := h.Store.Carts.FindOrCreate(ctx, middleware.UserID(ctx), middleware.SessionIDFrom(ctx))
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	size := strings.TrimSpace(r.FormValue("size"))
	color := strings.TrimSpace(r.FormValue("color"))
	if err := h.Store.Carts.AddItem(ctx, cart.ID, productID, qty, size, color); err != nil {
		h.mutationError(w, r, opAdd, err)
		return
	}

	h.done(w, r, opAdd, cart.ID, "Product added to cart")
}

// Update sets the quantity of a cart line. Zero removes it.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	itemID, ok := common.ParseID(r.FormValue("item_id"))
	if !ok {
		h.fail(w, r, opUpdate, "invalid", http.StatusBadRequest, "Invalid item")
		return
	}
	qty, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if err != nil || qty < 0 || qty > validation.MaxQuantity {
		h.fail(w, r, opUpdate, "invalid", http.StatusBadRequest,
			fmt.Sprintf("quantity must be a whole number between 0 and %d", validation.MaxQuantity))
		return
	}

	cartID := middleware.CartFrom(r.Context()).CartID
	if cartID == 0 {
		h.fail(w, r, opUpdate, "not_found", http.StatusNotFound, "Item not found in your cart")
		return
	}
	if err := h.Store.Carts.UpdateItemQuantity(r.Context(), cartID, itemID, qty); err != nil {
		h.mutationError(w, r, opUpdate, err)
		return
	}

	h.done(w, r, opUpdate, cartID, "Cart updated")
}

// Remove deletes a line from the cart.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	itemID, ok := common.ParseID(r.FormValue("item_id"))
	if !ok {
		h.fail(w, r, opRemove, "invalid", http.StatusBadRequest, "Invalid item")
		return
	}

	cartID := middleware.CartFrom(r.Context()).CartID
	if cartID == 0 {
		h.fail(w, r, opRemove, "not_found", http.StatusNotFound, "Item not found in your cart")
		return
	}
	if err := h.Store.Carts.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.mutationError(w, r, opRemove, err)
		return
	}

	h.done(w, r, opRemove, cartID, "Product removed from cart")
}

// Clear empties the cart. Clearing a cart that does not exist succeeds.
func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	cartID := middleware.CartFrom(r.Context()).CartID
	if cartID != 0 {
		if err := h.Store.Carts.Clear(r.Context(), cartID); err != nil {
			h.mutationError(w, r, opClear, err)
			return
		}
	}

	h.done(w, r, opClear, cartID, "Cart emptied")
}

// Updates is the long-lived SSE endpoint behind the cart badge. It waits
// for pings on the visitor's cart topic and patches the badge each time.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.Notifier.Subscribe(middleware.CartTopic(r.Context()))
	defer h.Notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := h.sendBadge(sse, r); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) sendBadge(sse *datastar.ServerSentEventGenerator, r *http.Request) error {
	state, err := middleware.LoadCart(r.Context(), h.Store.Carts)
	if err != nil {
		return err
	}
	return sse.PatchElementTempl(h.Views.Partial("cart_badge", views.CartBadge{
		Count: state.Count,
		Total: state.Total,
	}))
}

// done records a successful mutation, pings the cart topic and answers with
// the new item count, or redirects back to the cart for plain form posts.
func (h *Handlers) done(w http.ResponseWriter, r *http.Request, op string, cartID int64, message string) {
	h.Metrics.CartOperation(op, "ok")
	h.Notifier.Publish(middleware.CartTopic(r.Context()))

	if !middleware.WantsJSON(r) {
		common.Redirect(w, r, "/cart")
		return
	}

	count := 0
	if cartID != 0 {
		d, err := h.Store.Carts.Details(r.Context(), cartID)
		if err != nil {
			h.ServerError(w, r, err)
			return
		}
		count = d.TotalItems
	}
	common.JSON(w, http.StatusOK, Response{Success: true, Message: message, CartCount: count})
}

// mutationError maps store errors of a cart mutation onto a response.
func (h *Handlers) mutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		h.fail(w, r, op, "insufficient_stock", http.StatusBadRequest, "Not enough stock for that quantity")
	case errors.Is(err, store.ErrProductUnavailable):
		h.fail(w, r, op, "unavailable", http.StatusBadRequest, "Product not available")
	case errors.Is(err, store.ErrNotFound):
		h.fail(w, r, op, "not_found", http.StatusNotFound, "Item not found in your cart")
	default:
		h.Metrics.CartOperation(op, "error")
		h.ServerError(w, r, err)
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, op, result string, status int, message string) {
	h.Metrics.CartOperation(op, result)
	if middleware.WantsJSON(r) {
		common.JSON(w, status, Response{
			Error:     message,
			CartCount: middleware.CartFrom(r.Context()).Count,
		})
		return
	}
	h.Error(w, r, status, message)
}

func stockMessage(available int) string {
	if available <= 0 {
		return "This product is out of stock"
	}
	return fmt.Sprintf("Only %d units available", available)
}
