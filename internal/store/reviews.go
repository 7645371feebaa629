package store

import (
	"context"
	"fmt"
)

// ReviewLimit is the number of reviews shown on a product page.
const ReviewLimit = 10

// ReviewStore reads and writes product reviews.
type ReviewStore struct {
	db querier
}

// ListByProduct returns the newest reviews for a product with author names.
func (s *ReviewStore) ListByProduct(ctx context.Context, productID int64, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = ReviewLimit
	}
	reviews := []Review{}
	err := sqlxSelect(ctx, s.db, &reviews, `SELECT r.id, r.product_id, r.user_id, r.rating, r.comment,
			r.created_at, u.first_name, u.last_name
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.product_id = ?
		ORDER BY r.created_at DESC, r.id DESC LIMIT ?`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// Create stores a review and returns its id.
func (s *ReviewStore) Create(ctx context.Context, productID, userID int64, rating int, comment string) (int64, error) {
	if rating < 1 || rating > 5 {
		return 0, fmt.Errorf("rating must be between 1 and 5")
	}
	id, err := insertID(ctx, s.db, `INSERT INTO reviews (product_id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`, productID, userID, rating, comment, now())
	if err != nil {
		return 0, fmt.Errorf("failed to create review: %w", err)
	}
	return id, nil
}
