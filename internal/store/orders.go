package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tienda-labs/tienda/internal/database"
)

const orderColumns = `o.id, o.order_number, o.user_id, o.subtotal_cents, o.shipping_cents, o.total_cents,
	o.status, o.payment_method, o.shipping_address, o.created_at`

// OrderStore places and reads orders.
type OrderStore struct {
	db       *database.DB
	carts    *CartStore
	products *ProductStore
	logger   *slog.Logger
}

// NewOrderNumber returns a unique, human-readable order number.
func NewOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%d-%s", now().UnixMilli(), suffix)
}

// Place turns the cart into an order. Totals come from the cart lines,
// stock is decremented for every line and the cart is emptied, all in one
// transaction.
func (s *OrderStore) Place(ctx context.Context, userID, cartID int64, opts PlaceOrder) (*Order, error) {
	if opts.PaymentMethod == "" {
		opts.PaymentMethod = PaymentMethodCard
	}

	var order *Order
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		items, err := s.carts.items(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		for _, it := range items {
			if !it.ProductActive {
				return fmt.Errorf("%s: %w", it.ProductName, ErrProductUnavailable)
			}
		}

		sum := SummarizeItems(items)
		order = &Order{
			Number:          NewOrderNumber(),
			UserID:          userID,
			Subtotal:        sum.Subtotal,
			Shipping:        sum.Shipping,
			Total:           sum.Total,
			Status:          OrderStatusConfirmed,
			PaymentMethod:   opts.PaymentMethod,
			ShippingAddress: opts.ShippingAddress,
			CreatedAt:       now(),
			ItemCount:       len(items),
		}

		order.ID, err = insertID(ctx, tx, `INSERT INTO orders
			(order_number, user_id, subtotal_cents, shipping_cents, total_cents, status,
			 payment_method, shipping_address, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			order.Number, order.UserID, order.Subtotal, order.Shipping, order.Total, order.Status,
			order.PaymentMethod, order.ShippingAddress, order.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, it := range items {
			line := OrderItem{
				OrderID:     order.ID,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Size:        it.Size,
				Color:       it.Color,
				UnitPrice:   it.UnitPrice,
				Subtotal:    it.Subtotal(),
			}
			line.ID, err = insertID(ctx, tx, `INSERT INTO order_items
				(order_id, product_id, product_name, quantity, size, color, unit_price_cents, subtotal_cents)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
				line.OrderID, line.ProductID, line.ProductName, line.Quantity, line.Size, line.Color,
				line.UnitPrice, line.Subtotal)
			if err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, line)

			if err := s.products.DecrementStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return fmt.Errorf("%s: %w", it.ProductName, ErrInsufficientStock)
				}
				return err
			}
		}

		return s.carts.clear(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		"order_number", order.Number,
		"user_id", userID,
		"total", order.Total.String(),
		"items", len(order.Items),
	)
	return order, nil
}

// ListByUser returns a user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	orders := []Order{}
	err := sqlxSelect(ctx, s.db, &orders, `SELECT `+orderColumns+`,
			(SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id) AS item_count
		FROM orders o WHERE o.user_id = ?
		ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Recent returns the latest orders across all users.
func (s *OrderStore) Recent(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	orders := []Order{}
	err := sqlxSelect(ctx, s.db, &orders, `SELECT `+orderColumns+`,
			(SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id) AS item_count
		FROM orders o
		ORDER BY o.created_at DESC, o.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}
	return orders, nil
}

// GetByNumber returns one of the user's orders with its lines, or nil.
func (s *OrderStore) GetByNumber(ctx context.Context, userID int64, number string) (*Order, error) {
	var o Order
	err := sqlxGet(ctx, s.db, &o, `SELECT `+orderColumns+`
		FROM orders o WHERE o.order_number = ? AND o.user_id = ?`, number, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	o.Items = []OrderItem{}
	err = sqlxSelect(ctx, s.db, &o.Items, `SELECT id, order_id, product_id, product_name, quantity,
			size, color, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id = ? ORDER BY id`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	o.ItemCount = len(o.Items)
	return &o, nil
}

// Latest returns the user's most recent order, or nil.
func (s *OrderStore) Latest(ctx context.Context, userID int64) (*Order, error) {
	var number string
	err := sqlxGet(ctx, s.db, &number,
		`SELECT order_number FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest order: %w", err)
	}
	return s.GetByNumber(ctx, userID, number)
}
