package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const addressColumns = `id, user_id, label, street, city, state, postal_code, phone, is_default, created_at`

// AddressStore manages saved shipping addresses.
type AddressStore struct {
	db querier
}

// ListByUser returns the user's addresses, default first.
func (s *AddressStore) ListByUser(ctx context.Context, userID int64) ([]Address, error) {
	addrs := []Address{}
	err := sqlxSelect(ctx, s.db, &addrs, `SELECT `+addressColumns+` FROM addresses
		WHERE user_id = ? ORDER BY is_default DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addrs, nil
}

// Get returns one of the user's addresses, or nil.
func (s *AddressStore) Get(ctx context.Context, userID, id int64) (*Address, error) {
	var a Address
	err := sqlxGet(ctx, s.db, &a, `SELECT `+addressColumns+` FROM addresses WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &a, nil
}

// Create saves an address. The user's first address becomes the default.
func (s *AddressStore) Create(ctx context.Context, a Address) (int64, error) {
	var n int
	if err := sqlxGet(ctx, s.db, &n, `SELECT COUNT(*) FROM addresses WHERE user_id = ?`, a.UserID); err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}

	id, err := insertID(ctx, s.db, `INSERT INTO addresses
		(user_id, label, street, city, state, postal_code, phone, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		a.UserID, a.Label, a.Street, a.City, a.State, a.PostalCode, a.Phone, n == 0, now())
	if err != nil {
		return 0, fmt.Errorf("failed to create address: %w", err)
	}
	return id, nil
}

// SetDefault makes id the user's only default address.
func (s *AddressStore) SetDefault(ctx context.Context, userID, id int64) error {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("address %d: %w", id, ErrNotFound)
	}
	if _, err := exec(ctx, s.db, `UPDATE addresses SET is_default = (id = ?) WHERE user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("failed to set default address: %w", err)
	}
	return nil
}
