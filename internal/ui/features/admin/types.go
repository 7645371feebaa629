package admin

import (
	"net/url"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/validation"
)

// Dashboard list sizes.
const (
	RecentOrdersLimit = 10
	RecentUsersLimit  = 5
)

// DashboardData is rendered by the dashboard.
type DashboardData struct {
	Stats        *store.UserStats
	ProductCount int
	RecentOrders []store.Order
	RecentUsers  []store.User
	Abandoned    []store.AbandonedCart
}

// ProductsData is rendered by the product list.
type ProductsData struct {
	Products   []store.Product
	Page       int
	TotalPages int
	Query      url.Values
}

// ProductForm holds the product form as submitted, so rejected input is
// shown back unchanged.
type ProductForm struct {
	ID          int64
	Name        string
	Description string
	Price       string
	SalePrice   string
	CategoryID  int64
	Gender      string
	Stock       string
	Sizes       string // comma separated
	Colors      string // comma separated
	Image       string
	Featured    bool
	Active      bool
}

// ProductFormData is rendered by the new and edit product pages.
type ProductFormData struct {
	Form       ProductForm
	Action     string
	Categories []store.Category
	Genders    []string
	Errors     validation.FieldErrors
	Error      string
}

// CategoriesData is rendered by the category page.
type CategoriesData struct {
	Categories []store.Category
	Form       validation.Category
	Errors     validation.FieldErrors
	Error      string
}

var genders = []string{store.GenderUnisex, store.GenderMen, store.GenderWomen}
