package cart

import "github.com/tienda-labs/tienda/internal/store"

// PageData holds what the cart page shows.
type PageData struct {
	Items   []store.CartItem
	Summary *store.CartSummary
	Issues  []store.CartIssue
}

// Response is the JSON body of every cart mutation.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	CartCount int    `json:"cart_count"`
}

// SummaryResponse is the body of GET /cart/summary.
type SummaryResponse struct {
	Success   bool               `json:"success"`
	CartCount int                `json:"cart_count"`
	Summary   *store.CartSummary `json:"summary"`
	Issues    []store.CartIssue  `json:"issues"`
}

// Operation names recorded in metrics.
const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)
