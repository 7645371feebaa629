package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor for stored password hashes.
const DefaultBcryptCost = 12

const userColumns = `id, first_name, last_name, email, password_hash, phone, birth_date,
	gender, is_admin, active, created_at, last_login_at`

// UserStore reads and writes accounts.
type UserStore struct {
	db         querier
	logger     *slog.Logger
	bcryptCost int
}

// SetBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *UserStore) SetBcryptCost(cost int) {
	s.bcryptCost = cost
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByID returns an active user, or nil.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getWhere(ctx, "id = ? AND active = ?", id, true)
}

// GetByEmail returns an active user, or nil.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getWhere(ctx, "email = ? AND active = ?", NormalizeEmail(email), true)
}

func (s *UserStore) getWhere(ctx context.Context, cond string, args ...any) (*User, error) {
	var u User
	err := sqlxGet(ctx, s.db, &u, `SELECT `+userColumns+` FROM users WHERE `+cond, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// EmailExists reports whether any account, active or not, uses email.
func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := sqlxGet(ctx, s.db, &n, `SELECT COUNT(*) FROM users WHERE email = ?`, NormalizeEmail(email)); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}

// Create registers a customer account. The email is normalised and must be
// unused.
func (s *UserStore) Create(ctx context.Context, in NewUser) (*User, error) {
	email := NormalizeEmail(in.Email)

	exists, err := s.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := insertID(ctx, s.db,
		`INSERT INTO users (first_name, last_name, email, password_hash, phone, is_admin, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), email, string(hash),
		strings.TrimSpace(in.Phone), false, true, now())
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", id)
	return s.GetByID(ctx, id)
}

// Authenticate checks credentials and records the login time.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	ts := now()
	if _, err := exec(ctx, s.db, `UPDATE users SET last_login_at = ? WHERE id = ?`, ts, u.ID); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	u.LastLoginAt = &ts
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserStore) ChangePassword(ctx context.Context, id int64, current, next string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := exec(ctx, s.db, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), id); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

// UpdateProfile writes the user-editable profile fields.
func (s *UserStore) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) error {
	res, err := exec(ctx, s.db,
		`UPDATE users SET first_name = ?, last_name = ?, phone = ?, birth_date = ?, gender = ?
		WHERE id = ? AND active = ?`,
		strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), strings.TrimSpace(in.Phone),
		in.BirthDate, in.Gender, id, true)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectAffected(res, "user", id)
}

// Deactivate disables an account. Its sessions stop resolving on the next request.
func (s *UserStore) Deactivate(ctx context.Context, id int64) error {
	res, err := exec(ctx, s.db, `UPDATE users SET active = ? WHERE id = ?`, false, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return expectAffected(res, "user", id)
}

// SetAdmin grants or revokes administrator rights.
func (s *UserStore) SetAdmin(ctx context.Context, id int64, admin bool) error {
	res, err := exec(ctx, s.db, `UPDATE users SET is_admin = ? WHERE id = ? AND active = ?`, admin, id, true)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	return expectAffected(res, "user", id)
}

// ListAdmins returns active administrators.
func (s *UserStore) ListAdmins(ctx context.Context) ([]User, error) {
	users := []User{}
	err := sqlxSelect(ctx, s.db, &users,
		`SELECT `+userColumns+` FROM users WHERE is_admin = ? AND active = ? ORDER BY email`, true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return users, nil
}

// Recent returns the newest active accounts.
func (s *UserStore) Recent(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 10
	}
	users := []User{}
	err := sqlxSelect(ctx, s.db, &users,
		`SELECT `+userColumns+` FROM users WHERE active = ? ORDER BY created_at DESC, id DESC LIMIT ?`, true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent users: %w", err)
	}
	return users, nil
}

// Statistics counts accounts by state.
func (s *UserStore) Statistics(ctx context.Context) (*UserStats, error) {
	var st UserStats
	err := sqlxGet(ctx, s.db, &st, `SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN active = ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN is_admin = ? AND active = ? THEN 1 ELSE 0 END), 0) AS admins,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS new_last_30d
		FROM users`, true, true, true, now().Add(-30*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to compute user statistics: %w", err)
	}
	return &st, nil
}
