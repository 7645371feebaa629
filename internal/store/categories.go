package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CategoryStore reads and writes catalog categories.
type CategoryStore struct {
	db querier
}

// ListActive returns active categories ordered by name.
func (s *CategoryStore) ListActive(ctx context.Context) ([]Category, error) {
	categories := []Category{}
	err := sqlxSelect(ctx, s.db, &categories,
		`SELECT id, name, slug, description, image, active, created_at
		FROM categories WHERE active = ? ORDER BY name`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ListWithProductCount returns active categories with the number of active
// products in each.
func (s *CategoryStore) ListWithProductCount(ctx context.Context) ([]Category, error) {
	categories := []Category{}
	err := sqlxSelect(ctx, s.db, &categories,
		`SELECT c.id, c.name, c.slug, c.description, c.image, c.active, c.created_at,
			COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.active = ?
		WHERE c.active = ?
		GROUP BY c.id, c.name, c.slug, c.description, c.image, c.active, c.created_at
		ORDER BY c.name`, true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories with counts: %w", err)
	}
	return categories, nil
}

// Get returns a category by id, or nil.
func (s *CategoryStore) Get(ctx context.Context, id int64) (*Category, error) {
	return s.getWhere(ctx, "id = ?", id)
}

// GetBySlug returns a category by slug, or nil.
func (s *CategoryStore) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	return s.getWhere(ctx, "slug = ?", slug)
}

func (s *CategoryStore) getWhere(ctx context.Context, cond string, arg any) (*Category, error) {
	var c Category
	err := sqlxGet(ctx, s.db, &c,
		`SELECT id, name, slug, description, image, active, created_at FROM categories WHERE `+cond, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// NameTaken reports whether another category already uses name.
func (s *CategoryStore) NameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var n int
	err := sqlxGet(ctx, s.db, &n,
		`SELECT COUNT(*) FROM categories WHERE LOWER(name) = LOWER(?) AND id <> ?`,
		strings.TrimSpace(name), exceptID)
	if err != nil {
		return false, fmt.Errorf("failed to check category name: %w", err)
	}
	return n > 0, nil
}

// Create inserts an active category and returns its id.
func (s *CategoryStore) Create(ctx context.Context, name, slug, description string) (int64, error) {
	taken, err := s.NameTaken(ctx, name, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrCategoryTaken
	}

	id, err := insertID(ctx, s.db,
		`INSERT INTO categories (name, slug, description, active, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		strings.TrimSpace(name), slug, description, true, now())
	if err != nil {
		return 0, fmt.Errorf("failed to create category: %w", err)
	}
	return id, nil
}

// Update renames a category and toggles its visibility.
func (s *CategoryStore) Update(ctx context.Context, id int64, name, slug, description string, active bool) error {
	taken, err := s.NameTaken(ctx, name, id)
	if err != nil {
		return err
	}
	if taken {
		return ErrCategoryTaken
	}

	res, err := exec(ctx, s.db,
		`UPDATE categories SET name = ?, slug = ?, description = ?, active = ? WHERE id = ?`,
		strings.TrimSpace(name), slug, description, active, id)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return expectAffected(res, "category", id)
}
