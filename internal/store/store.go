// Package store provides the data access layer for the storefront: one
// repository per aggregate over the shared database pool.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tienda-labs/tienda/internal/database"
)

// Domain errors returned by the repositories.
var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidPassword    = errors.New("current password is incorrect")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductUnavailable = errors.New("product is not available")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCategoryTaken      = errors.New("category name already exists")
)

// Shipping rules applied to cart summaries and orders.
const (
	FreeShippingThreshold Money = 100000
	ShippingFee           Money = 10000
)

// ShippingFor returns the shipping charge for a subtotal.
func ShippingFor(subtotal Money) Money {
	if subtotal <= 0 || subtotal >= FreeShippingThreshold {
		return 0
	}
	return ShippingFee
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
}

// Store groups the repositories.
type Store struct {
	DB         *database.DB
	Products   *ProductStore
	Categories *CategoryStore
	Users      *UserStore
	Carts      *CartStore
	Orders     *OrderStore
	Reviews    *ReviewStore
	Addresses  *AddressStore
}

// New builds every repository over db.
func New(db *database.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	products := &ProductStore{db: db, logger: logger}
	carts := &CartStore{db: db, products: products, logger: logger}
	return &Store{
		DB:         db,
		Products:   products,
		Categories: &CategoryStore{db: db},
		Users:      &UserStore{db: db, logger: logger, bcryptCost: DefaultBcryptCost},
		Carts:      carts,
		Orders:     &OrderStore{db: db, carts: carts, products: products, logger: logger},
		Reviews:    &ReviewStore{db: db},
		Addresses:  &AddressStore{db: db},
	}
}

// now is overridable in tests.
var now = func() time.Time {
	return time.Now().UTC()
}

// sqlxGet rebinds query for the driver and scans a single row into dest.
func sqlxGet(ctx context.Context, q querier, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

// sqlxSelect rebinds query for the driver and scans all rows into dest.
func sqlxSelect(ctx context.Context, q querier, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

// exec rebinds query for the driver and executes it.
func exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// insertID runs an INSERT ... RETURNING id statement.
func insertID(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&id)
	return id, err
}
