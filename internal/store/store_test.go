package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tienda-labs/tienda/internal/database"
	"github.com/tienda-labs/tienda/internal/testutil"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, DSN: ":memory:", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	s := New(db, logger)
	s.Users.SetBcryptCost(bcrypt.MinCost)
	return s
}

func mustCategory(t *testing.T, s *Store, name, slug string) int64 {
	t.Helper()
	id, err := s.Categories.Create(context.Background(), name, slug, "")
	require.NoError(t, err)
	return id
}

func mustProduct(t *testing.T, s *Store, in ProductInput) int64 {
	t.Helper()
	if in.Gender == "" {
		in.Gender = GenderUnisex
	}
	if in.Price == 0 {
		in.Price = 29900
	}
	in.Active = true
	id, err := s.Products.Create(context.Background(), in)
	require.NoError(t, err)
	return id
}

func mustUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), NewUser{
		FirstName: "Ana",
		LastName:  "López",
		Email:     email,
		Password:  "secreto1",
	})
	require.NoError(t, err)
	return u
}

// freezeTime pins the package clock and restores it after the test.
func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestShippingFor(t *testing.T) {
	tests := []struct {
		name     string
		subtotal Money
		want     Money
	}{
		{"empty cart", 0, 0},
		{"below threshold", 99999, ShippingFee},
		{"at threshold", FreeShippingThreshold, 0},
		{"above threshold", 250000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ShippingFor(tt.subtotal))
		})
	}
}
