package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

const (
	// DefaultPageSize is the catalog page size.
	DefaultPageSize = 12
	// FeaturedLimit is the number of products shown on the home page.
	FeaturedLimit = 8
	// SimilarLimit is the number of related products on a product page.
	SimilarLimit = 4
	// SearchLimit is the default number of search results.
	SearchLimit = 20
)

const productColumns = `p.id, p.name, p.description, p.price_cents, p.sale_price_cents,
	p.category_id, p.gender, p.sizes, p.colors, p.stock, p.image, p.extra_images,
	p.featured, p.active, p.created_at, p.updated_at, c.name AS category_name`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

var productOrder = map[string]string{
	SortPriceAsc:  "p.price_cents ASC, p.id ASC",
	SortPriceDesc: "p.price_cents DESC, p.id DESC",
	SortName:      "p.name ASC, p.id ASC",
	SortPopular:   "p.featured DESC, p.created_at DESC, p.id DESC",
	SortNewest:    "p.created_at DESC, p.id DESC",
}

// ValidSort reports whether s is a known sort order.
func ValidSort(s string) bool {
	_, ok := productOrder[s]
	return ok
}

// ProductStore reads and writes catalog products.
type ProductStore struct {
	db     querier
	logger *slog.Logger
}

// Get returns a product by id regardless of its active flag, or nil.
func (s *ProductStore) Get(ctx context.Context, id int64) (*Product, error) {
	return s.get(ctx, s.db, id)
}

func (s *ProductStore) get(ctx context.Context, q querier, id int64) (*Product, error) {
	var p Product
	err := sqlxGet(ctx, q, &p, `SELECT `+productColumns+productFrom+` WHERE p.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// FindByName returns the first product with exactly this name, or nil.
func (s *ProductStore) FindByName(ctx context.Context, name string) (*Product, error) {
	var p Product
	err := sqlxGet(ctx, s.db, &p, `SELECT `+productColumns+productFrom+` WHERE p.name = ? ORDER BY p.id LIMIT 1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &p, nil
}

// WithRating returns an active product with its average rating and review
// count, or nil when it does not exist or is inactive.
func (s *ProductStore) WithRating(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := sqlxGet(ctx, s.db, &p, `SELECT `+productColumns+`,
		COALESCE(AVG(r.rating), 0) AS avg_rating, COUNT(r.id) AS review_count`+
		productFrom+`
		LEFT JOIN reviews r ON r.product_id = p.id
		WHERE p.id = ? AND p.active = ?
		GROUP BY p.id, c.name`, id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product rating: %w", err)
	}
	p.AvgRating = math.Round(p.AvgRating*10) / 10
	return &p, nil
}

// where builds the filter predicate shared by List and Count.
func (f ProductFilter) where() (string, []any) {
	var conds []string
	var args []any

	if !f.IncludeInactive {
		conds = append(conds, "p.active = ?")
		args = append(args, true)
	}
	if f.Category != "" {
		conds = append(conds, "(c.slug = ? OR LOWER(c.name) = LOWER(?))")
		args = append(args, f.Category, f.Category)
	}
	if f.CategoryID > 0 {
		conds = append(conds, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Gender != "" {
		conds = append(conds, "p.gender = ?")
		args = append(args, f.Gender)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := likePattern(term)
		conds = append(conds, `(LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of products matching the filter.
func (s *ProductStore) List(ctx context.Context, f ProductFilter) ([]Product, error) {
	where, args := f.where()

	order, ok := productOrder[f.Sort]
	if !ok {
		order = productOrder[SortNewest]
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	products := []Product{}
	query := `SELECT ` + productColumns + productFrom + where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	if err := sqlxSelect(ctx, s.db, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Count returns the number of products matching the filter.
func (s *ProductStore) Count(ctx context.Context, f ProductFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := sqlxGet(ctx, s.db, &n, `SELECT COUNT(*)`+productFrom+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// CountActive returns the number of active products.
func (s *ProductStore) CountActive(ctx context.Context) (int, error) {
	return s.Count(ctx, ProductFilter{})
}

// Featured returns active featured products, newest first.
func (s *ProductStore) Featured(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = FeaturedLimit
	}
	products := []Product{}
	err := sqlxSelect(ctx, s.db, &products, `SELECT `+productColumns+productFrom+`
		WHERE p.active = ? AND p.featured = ?
		ORDER BY p.created_at DESC, p.id DESC LIMIT ?`, true, true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list featured products: %w", err)
	}
	return products, nil
}

// ByCategory returns active products in a category, featured first.
func (s *ProductStore) ByCategory(ctx context.Context, categoryID int64, limit int) ([]Product, error) {
	products := []Product{}
	err := sqlxSelect(ctx, s.db, &products, `SELECT `+productColumns+productFrom+`
		WHERE p.category_id = ? AND p.active = ?
		ORDER BY p.featured DESC, p.created_at DESC, p.id DESC LIMIT ?`, categoryID, true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by category: %w", err)
	}
	return products, nil
}

// Similar returns other active products from the same category.
func (s *ProductStore) Similar(ctx context.Context, productID, categoryID int64, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = SimilarLimit
	}
	products := []Product{}
	err := sqlxSelect(ctx, s.db, &products, `SELECT `+productColumns+productFrom+`
		WHERE p.category_id = ? AND p.id <> ? AND p.active = ?
		ORDER BY p.featured DESC, p.created_at DESC, p.id DESC LIMIT ?`, categoryID, productID, true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list similar products: %w", err)
	}
	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
// Wildcards typed by the user match literally.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// Search matches active products by name, description or category name.
func (s *ProductStore) Search(ctx context.Context, term string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = SearchLimit
	}
	like := likePattern(term)
	products := []Product{}
	err := sqlxSelect(ctx, s.db, &products, `SELECT `+productColumns+productFrom+`
		WHERE p.active = ?
		  AND (LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\'
		    OR LOWER(c.name) LIKE ? ESCAPE '\')
		ORDER BY p.featured DESC, p.name ASC LIMIT ?`, true, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// CheckStock reports whether qty units of an active product are available.
func (s *ProductStore) CheckStock(ctx context.Context, id int64, qty int) (bool, int, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, 0, err
	}
	if p == nil || !p.Active {
		return false, 0, ErrNotFound
	}
	return p.Stock >= qty, p.Stock, nil
}

// DecrementStock removes qty units, failing with ErrInsufficientStock when
// fewer are available.
func (s *ProductStore) DecrementStock(ctx context.Context, q querier, id int64, qty int) error {
	if q == nil {
		q = s.db
	}
	res, err := q.ExecContext(ctx, q.Rebind(
		`UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`),
		qty, now(), id, qty)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrInsufficientStock)
	}
	return nil
}

// Create inserts a product and returns its id.
func (s *ProductStore) Create(ctx context.Context, in ProductInput) (int64, error) {
	ts := now()
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO products
		(name, description, price_cents, sale_price_cents, category_id, gender, sizes, colors,
		 stock, image, extra_images, featured, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		in.Name, in.Description, in.Price, in.SalePrice, in.CategoryID, in.Gender,
		StringList(in.Sizes), StringList(in.Colors), in.Stock, in.Image, StringList(in.ExtraImages),
		in.Featured, in.Active, ts, ts,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	s.logger.Debug("product created", "id", id, "name", in.Name)
	return id, nil
}

// Update replaces the writable fields of a product.
func (s *ProductStore) Update(ctx context.Context, id int64, in ProductInput) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE products SET
		name = ?, description = ?, price_cents = ?, sale_price_cents = ?, category_id = ?,
		gender = ?, sizes = ?, colors = ?, stock = ?, image = ?, extra_images = ?,
		featured = ?, active = ?, updated_at = ?
		WHERE id = ?`),
		in.Name, in.Description, in.Price, in.SalePrice, in.CategoryID,
		in.Gender, StringList(in.Sizes), StringList(in.Colors), in.Stock, in.Image, StringList(in.ExtraImages),
		in.Featured, in.Active, now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectAffected(res, "product", id)
}

// Deactivate hides a product from the storefront.
func (s *ProductStore) Deactivate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE products SET active = ?, updated_at = ? WHERE id = ?`), false, now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	return expectAffected(res, "product", id)
}

func expectAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
