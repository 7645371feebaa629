package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tienda-labs/tienda/internal/database"
)

// Cart maintenance defaults.
const (
	AbandonedAfter = 7 * 24 * time.Hour
	ExpireAfter    = 30 * 24 * time.Hour
)

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.size, ci.color,
	ci.unit_price_cents, ci.added_at,
	p.name AS product_name, p.image AS product_image, p.stock AS product_stock, p.active AS product_active`

// CartStore manages shopping carts keyed by user or anonymous session.
type CartStore struct {
	db       *database.DB
	products *ProductStore
	logger   *slog.Logger
}

// Find returns the cart for a user, or for a session when userID is zero.
// It never creates one and returns nil when none exists.
func (s *CartStore) Find(ctx context.Context, userID int64, sessionID string) (*Cart, error) {
	if userID > 0 {
		return s.findBy(ctx, s.db, "user_id = ?", userID)
	}
	if sessionID == "" {
		return nil, nil
	}
	return s.findBy(ctx, s.db, "session_id = ? AND user_id IS NULL", sessionID)
}

func (s *CartStore) findBy(ctx context.Context, q querier, cond string, arg any) (*Cart, error) {
	var c Cart
	err := sqlxGet(ctx, q, &c,
		`SELECT id, user_id, session_id, created_at, updated_at FROM carts WHERE `+cond+
			` ORDER BY updated_at DESC, id DESC LIMIT 1`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}
	return &c, nil
}

// FindOrCreate resolves the cart for the request. For a logged-in user any
// cart still attached to the anonymous session is merged into the user's
// cart, or adopted when the user has none.
func (s *CartStore) FindOrCreate(ctx context.Context, userID int64, sessionID string) (*Cart, error) {
	var cart *Cart
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		cart, err = s.findOrCreate(ctx, tx, userID, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartStore) findOrCreate(ctx context.Context, q querier, userID int64, sessionID string) (*Cart, error) {
	var sessionCart *Cart
	if sessionID != "" {
		var err error
		sessionCart, err = s.findBy(ctx, q, "session_id = ? AND user_id IS NULL", sessionID)
		if err != nil {
			return nil, err
		}
	}

	if userID <= 0 {
		if sessionCart != nil {
			return sessionCart, nil
		}
		if sessionID == "" {
			return nil, fmt.Errorf("cart requires a user or a session")
		}
		return s.create(ctx, q, nil, &sessionID)
	}

	userCart, err := s.findBy(ctx, q, "user_id = ?", userID)
	if err != nil {
		return nil, err
	}

	switch {
	case userCart == nil && sessionCart != nil:
		if _, err := exec(ctx, q, `UPDATE carts SET user_id = ?, updated_at = ? WHERE id = ?`,
			userID, now(), sessionCart.ID); err != nil {
			return nil, fmt.Errorf("failed to adopt session cart: %w", err)
		}
		sessionCart.UserID = &userID
		return sessionCart, nil

	case userCart == nil:
		return s.create(ctx, q, &userID, nil)

	case sessionCart != nil && sessionCart.ID != userCart.ID:
		if err := s.merge(ctx, q, sessionCart.ID, userCart.ID); err != nil {
			return nil, err
		}
	}

	return userCart, nil
}

func (s *CartStore) create(ctx context.Context, q querier, userID *int64, sessionID *string) (*Cart, error) {
	ts := now()
	id, err := insertID(ctx, q,
		`INSERT INTO carts (user_id, session_id, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`,
		userID, sessionID, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &Cart{ID: id, UserID: userID, SessionID: sessionID, CreatedAt: ts, UpdatedAt: ts}, nil
}

// merge moves every line of src into dst and deletes src. Lines that would
// exceed stock or reference unavailable products are dropped.
func (s *CartStore) merge(ctx context.Context, q querier, srcID, dstID int64) error {
	items, err := s.items(ctx, q, srcID)
	if err != nil {
		return err
	}

	for _, it := range items {
		err := s.addItem(ctx, q, dstID, it.ProductID, it.Quantity, it.Size, it.Color)
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrProductUnavailable) {
			s.logger.Debug("dropping cart line during merge", "product_id", it.ProductID, "reason", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to merge cart: %w", err)
		}
	}

	if _, err := exec(ctx, q, `DELETE FROM cart_items WHERE cart_id = ?`, srcID); err != nil {
		return fmt.Errorf("failed to clear merged cart: %w", err)
	}
	if _, err := exec(ctx, q, `DELETE FROM carts WHERE id = ?`, srcID); err != nil {
		return fmt.Errorf("failed to delete merged cart: %w", err)
	}

	s.logger.Debug("merged session cart", "from", srcID, "into", dstID, "lines", len(items))
	return nil
}

func (s *CartStore) items(ctx context.Context, q querier, cartID int64) ([]CartItem, error) {
	items := []CartItem{}
	err := sqlxSelect(ctx, q, &items, `SELECT `+cartItemColumns+`
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ?
		ORDER BY ci.added_at ASC, ci.id ASC`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	return items, nil
}

// Details returns the cart lines with totals.
func (s *CartStore) Details(ctx context.Context, cartID int64) (*CartDetails, error) {
	var cart Cart
	err := sqlxGet(ctx, s.db, &cart,
		`SELECT id, user_id, session_id, created_at, updated_at FROM carts WHERE id = ?`, cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items, err := s.items(ctx, s.db, cartID)
	if err != nil {
		return nil, err
	}

	d := &CartDetails{Cart: cart, Items: items}
	for _, it := range items {
		d.Total += it.Subtotal()
		d.TotalItems += it.Quantity
	}
	return d, nil
}

// AddItem puts qty units of a product in the cart. A line with the same
// size and color is increased instead of duplicated.
func (s *CartStore) AddItem(ctx context.Context, cartID, productID int64, qty int, size, color string) error {
	return s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		return s.addItem(ctx, tx, cartID, productID, qty, size, color)
	})
}

func (s *CartStore) addItem(ctx context.Context, q querier, cartID, productID int64, qty int, size, color string) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	p, err := s.products.get(ctx, q, productID)
	if err != nil {
		return err
	}
	if p == nil || !p.Active {
		return ErrProductUnavailable
	}

	var existing struct {
		ID       int64 `db:"id"`
		Quantity int   `db:"quantity"`
	}
	err = sqlxGet(ctx, q, &existing,
		`SELECT id, quantity FROM cart_items WHERE cart_id = ? AND product_id = ? AND size = ? AND color = ?`,
		cartID, productID, size, color)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if p.Stock < qty {
			return ErrInsufficientStock
		}
		if _, err := exec(ctx, q,
			`INSERT INTO cart_items (cart_id, product_id, quantity, size, color, unit_price_cents, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cartID, productID, qty, size, color, p.EffectivePrice(), now()); err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up cart item: %w", err)
	default:
		total := existing.Quantity + qty
		if p.Stock < total {
			return ErrInsufficientStock
		}
		if _, err := exec(ctx, q, `UPDATE cart_items SET quantity = ? WHERE id = ?`, total, existing.ID); err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
	}

	return s.touch(ctx, q, cartID)
}

// UpdateItemQuantity sets the quantity of a line in the cart. Zero or less
// removes the line.
func (s *CartStore) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, cartID, itemID)
	}

	return s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var line struct {
			ProductID int64 `db:"product_id"`
			Stock     int   `db:"stock"`
			Active    bool  `db:"active"`
		}
		err := sqlxGet(ctx, tx, &line, `SELECT ci.product_id, p.stock, p.active
			FROM cart_items ci JOIN products p ON p.id = ci.product_id
			WHERE ci.id = ? AND ci.cart_id = ?`, itemID, cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("cart item %d: %w", itemID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to look up cart item: %w", err)
		}
		if !line.Active {
			return ErrProductUnavailable
		}
		if line.Stock < qty {
			return ErrInsufficientStock
		}

		if _, err := exec(ctx, tx, `UPDATE cart_items SET quantity = ? WHERE id = ?`, qty, itemID); err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return s.touch(ctx, tx, cartID)
	})
}

// RemoveItem deletes a line from the cart.
func (s *CartStore) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	res, err := exec(ctx, s.db, `DELETE FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if err := expectAffected(res, "cart item", itemID); err != nil {
		return err
	}
	return s.touch(ctx, s.db, cartID)
}

// Clear empties the cart.
func (s *CartStore) Clear(ctx context.Context, cartID int64) error {
	return s.clear(ctx, s.db, cartID)
}

func (s *CartStore) clear(ctx context.Context, q querier, cartID int64) error {
	if _, err := exec(ctx, q, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return s.touch(ctx, q, cartID)
}

func (s *CartStore) touch(ctx context.Context, q querier, cartID int64) error {
	if _, err := exec(ctx, q, `UPDATE carts SET updated_at = ? WHERE id = ?`, now(), cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

// Validate reports lines that can no longer be bought as they are.
func (s *CartStore) Validate(ctx context.Context, cartID int64) ([]CartIssue, error) {
	items, err := s.items(ctx, s.db, cartID)
	if err != nil {
		return nil, err
	}

	issues := []CartIssue{}
	for _, it := range items {
		switch {
		case !it.ProductActive:
			issues = append(issues, CartIssue{
				ItemID: it.ID, ProductID: it.ProductID, ProductName: it.ProductName,
				Kind: IssueInactive, Requested: it.Quantity,
			})
		case it.ProductStock < it.Quantity:
			issues = append(issues, CartIssue{
				ItemID: it.ID, ProductID: it.ProductID, ProductName: it.ProductName,
				Kind: IssueStock, Requested: it.Quantity, Available: it.ProductStock,
			})
		}
	}
	return issues, nil
}

// Summary computes subtotal, shipping and total for the cart.
func (s *CartStore) Summary(ctx context.Context, cartID int64) (*CartSummary, error) {
	d, err := s.Details(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return SummarizeItems(d.Items), nil
}

// SummarizeItems applies the shipping rule to a set of cart lines.
func SummarizeItems(items []CartItem) *CartSummary {
	sum := &CartSummary{ItemCount: len(items)}
	for _, it := range items {
		sum.Subtotal += it.Subtotal()
		sum.TotalItems += it.Quantity
	}
	sum.Shipping = ShippingFor(sum.Subtotal)
	sum.FreeShipping = sum.Subtotal > 0 && sum.Shipping == 0
	sum.Total = sum.Subtotal + sum.Shipping
	return sum
}

// Abandoned lists non-empty carts not updated within olderThan.
func (s *CartStore) Abandoned(ctx context.Context, olderThan time.Duration) ([]AbandonedCart, error) {
	if olderThan <= 0 {
		olderThan = AbandonedAfter
	}
	carts := []AbandonedCart{}
	err := sqlxSelect(ctx, s.db, &carts, `SELECT c.id, c.user_id, c.session_id, c.updated_at,
			COUNT(ci.id) AS item_count,
			COALESCE(SUM(ci.quantity * ci.unit_price_cents), 0) AS total_value,
			u.email AS user_email
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.updated_at < ?
		GROUP BY c.id, c.user_id, c.session_id, c.updated_at, u.email
		ORDER BY c.updated_at ASC`, now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list abandoned carts: %w", err)
	}
	return carts, nil
}

// CleanupExpired deletes empty carts not updated within olderThan and
// returns how many were removed.
func (s *CartStore) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = ExpireAfter
	}
	res, err := exec(ctx, s.db, `DELETE FROM carts
		WHERE updated_at < ?
		  AND NOT EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = carts.id)`, now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up carts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired carts removed", "count", n)
	}
	return n, nil
}
