package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount in cents.
type Money int64

var moneyPrinter = message.NewPrinter(language.English)

// String formats the amount as "$1,299.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + moneyPrinter.Sprintf("%d", v/100) + fmt.Sprintf(".%02d", v%100)
}

// Float returns the amount in currency units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// MarshalJSON encodes the amount in currency units.
func (m Money) MarshalJSON() ([]byte, error) {
	sign := ""
	if m < 0 {
		sign = "-"
	}
	v := abs(int64(m))
	return []byte(fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)), nil
}

// UnmarshalJSON decodes an amount in currency units.
func (m *Money) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid money amount %s: %w", b, err)
	}
	*m = MoneyFromFloat(f)
	return nil
}

// MoneyFromFloat converts currency units to cents, rounding half away from zero.
func MoneyFromFloat(f float64) Money {
	if f < 0 {
		return Money(f*100 - 0.5)
	}
	return Money(f*100 + 0.5)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// StringList is a list stored as a JSON array in a text column.
type StringList []string

// Scan implements sql.Scanner. Malformed values decode to an empty list.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type for string list: %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		*l = StringList{}
		return nil
	}
	*l = out
	return nil
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Product genders.
const (
	GenderMen    = "men"
	GenderWomen  = "women"
	GenderUnisex = "unisex"
)

// Category groups products in the catalog.
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	Image       string    `db:"image" json:"image"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// ProductCount is only populated by ListWithProductCount.
	ProductCount int `db:"product_count" json:"product_count,omitempty"`
}

// Product is a sellable catalog item.
type Product struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Description  string     `db:"description" json:"description"`
	Price        Money      `db:"price_cents" json:"price"`
	SalePrice    *Money     `db:"sale_price_cents" json:"sale_price,omitempty"`
	CategoryID   int64      `db:"category_id" json:"category_id"`
	CategoryName string     `db:"category_name" json:"category_name,omitempty"`
	Gender       string     `db:"gender" json:"gender"`
	Sizes        StringList `db:"sizes" json:"sizes"`
	Colors       StringList `db:"colors" json:"colors"`
	Stock        int        `db:"stock" json:"stock"`
	Image        string     `db:"image" json:"image"`
	ExtraImages  StringList `db:"extra_images" json:"extra_images"`
	Featured     bool       `db:"featured" json:"featured"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Populated by WithRating.
	AvgRating   float64 `db:"avg_rating" json:"avg_rating,omitempty"`
	ReviewCount int     `db:"review_count" json:"review_count,omitempty"`
}

// EffectivePrice is the sale price when one is set below the list price.
func (p *Product) EffectivePrice() Money {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// OnSale reports whether a sale price applies.
func (p *Product) OnSale() bool {
	return p.EffectivePrice() < p.Price
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// ProductInput holds the writable product fields.
type ProductInput struct {
	Name        string
	Description string
	Price       Money
	SalePrice   *Money
	CategoryID  int64
	Gender      string
	Sizes       []string
	Colors      []string
	Stock       int
	Image       string
	ExtraImages []string
	Featured    bool
	Active      bool
}

// Product sort orders.
const (
	SortNewest    = ""
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
	SortPopular   = "popular"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category        string // slug or name
	CategoryID      int64
	Gender          string
	Search          string
	Sort            string
	Page            int
	Limit           int
	IncludeInactive bool
}

// User is a customer or administrator account.
type User struct {
	ID           int64      `db:"id" json:"id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Phone        string     `db:"phone" json:"phone"`
	BirthDate    string     `db:"birth_date" json:"birth_date"`
	Gender       string     `db:"gender" json:"gender"`
	IsAdmin      bool       `db:"is_admin" json:"is_admin"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// NewUser holds registration data.
type NewUser struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// ProfileUpdate holds the fields a user may change on their profile.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Phone     string
	BirthDate string
	Gender    string
}

// UserStats summarises the user base.
type UserStats struct {
	Total      int `db:"total"`
	Active     int `db:"active"`
	Admins     int `db:"admins"`
	NewLast30d int `db:"new_last_30d"`
}

// Address is a saved shipping address.
type Address struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Label      string    `db:"label" json:"label"`
	Street     string    `db:"street" json:"street"`
	City       string    `db:"city" json:"city"`
	State      string    `db:"state" json:"state"`
	PostalCode string    `db:"postal_code" json:"postal_code"`
	Phone      string    `db:"phone" json:"phone"`
	IsDefault  bool      `db:"is_default" json:"is_default"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// String renders the address on one line.
func (a *Address) String() string {
	s := a.Street + ", " + a.City
	if a.State != "" {
		s += ", " + a.State
	}
	return s + " " + a.PostalCode
}

// Review is a product rating left by a user.
type Review struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	AuthorFirstName string `db:"first_name" json:"author_first_name"`
	AuthorLastName  string `db:"last_name" json:"author_last_name"`
}

// Cart belongs to a user or to an anonymous session.
type Cart struct {
	ID        int64     `db:"id"`
	UserID    *int64    `db:"user_id"`
	SessionID *string   `db:"session_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CartItem is one line of a cart joined with its product.
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	CartID    int64     `db:"cart_id" json:"cart_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Size      string    `db:"size" json:"size"`
	Color     string    `db:"color" json:"color"`
	UnitPrice Money     `db:"unit_price_cents" json:"unit_price"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`

	ProductName   string `db:"product_name" json:"product_name"`
	ProductImage  string `db:"product_image" json:"product_image"`
	ProductStock  int    `db:"product_stock" json:"product_stock"`
	ProductActive bool   `db:"product_active" json:"product_active"`
}

// Subtotal is quantity times unit price.
func (i CartItem) Subtotal() Money {
	return i.UnitPrice * Money(i.Quantity)
}

// CartDetails is a cart with its lines and totals.
type CartDetails struct {
	Cart       Cart
	Items      []CartItem
	Total      Money
	TotalItems int
}

// CartSummary carries the checkout totals.
type CartSummary struct {
	Subtotal     Money `json:"subtotal"`
	Shipping     Money `json:"shipping"`
	Total        Money `json:"total"`
	TotalItems   int   `json:"total_items"`
	ItemCount    int   `json:"item_count"`
	FreeShipping bool  `json:"free_shipping"`
}

// Cart issue kinds.
const (
	IssueInactive = "inactive"
	IssueStock    = "stock"
)

// CartIssue describes a line that cannot be purchased as is.
type CartIssue struct {
	ItemID      int64  `json:"item_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Kind        string `json:"kind"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// AbandonedCart is a non-empty cart untouched since a cutoff.
type AbandonedCart struct {
	ID         int64     `db:"id"`
	UserID     *int64    `db:"user_id"`
	SessionID  *string   `db:"session_id"`
	UpdatedAt  time.Time `db:"updated_at"`
	ItemCount  int       `db:"item_count"`
	TotalValue Money     `db:"total_value"`
	UserEmail  *string   `db:"user_email"`
}

// Order statuses and payment methods.
const (
	OrderStatusConfirmed = "confirmed"
	PaymentMethodCard    = "card"
)

// Order is a placed purchase.
type Order struct {
	ID              int64     `db:"id" json:"id"`
	Number          string    `db:"order_number" json:"order_number"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Subtotal        Money     `db:"subtotal_cents" json:"subtotal"`
	Shipping        Money     `db:"shipping_cents" json:"shipping"`
	Total           Money     `db:"total_cents" json:"total"`
	Status          string    `db:"status" json:"status"`
	PaymentMethod   string    `db:"payment_method" json:"payment_method"`
	ShippingAddress string    `db:"shipping_address" json:"shipping_address"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	ItemCount int         `db:"item_count" json:"item_count"`
	Items     []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem snapshots a purchased line.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Size        string `db:"size" json:"size"`
	Color       string `db:"color" json:"color"`
	UnitPrice   Money  `db:"unit_price_cents" json:"unit_price"`
	Subtotal    Money  `db:"subtotal_cents" json:"subtotal"`
}

// PlaceOrder carries checkout options.
type PlaceOrder struct {
	PaymentMethod   string
	ShippingAddress string
}
