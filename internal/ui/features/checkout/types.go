package checkout

import "github.com/tienda-labs/tienda/internal/store"

// PageData is rendered by the checkout page.
type PageData struct {
	Items     []store.CartItem
	Summary   *store.CartSummary
	Issues    []store.CartIssue
	Addresses []store.Address
}

// SuccessData is rendered by the confirmation page.
type SuccessData struct {
	Order *store.Order
}

// PayResponse is the JSON body of a successful payment.
type PayResponse struct {
	Success     bool   `json:"success"`
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	RedirectTo  string `json:"redirect_to"`
}
