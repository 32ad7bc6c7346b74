package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
)

// CreateReview stores one review per user per product and refreshes
// the product's cached average rating. A repeat review from the same
// user is rejected, not updated.
func CreateReview(ctx context.Context, db *sql.DB, productID, userID int64, author, email, text string, rate int) (*models.Review, error) {
	var review *models.Review

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := GetProduct(ctx, tx, productID); err != nil {
			return err
		}

		review = &models.Review{}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO reviews (product_id, user_id, author, email, text, rate, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING id, product_id, user_id, author, email, text, rate, created_at`,
			productID, userID, author, email, text, rate).Scan(
			&review.ID,
			&review.ProductID,
			&review.UserID,
			&review.Author,
			&review.Email,
			&review.Text,
			&review.Rate,
			&review.CreatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return database.ErrDuplicateReview
			}
			return fmt.Errorf("create review: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE products
			 SET rating = (SELECT ROUND(AVG(rate), 1) FROM reviews WHERE product_id = $1),
			     updated_at = NOW()
			 WHERE id = $1`,
			productID)
		if err != nil {
			return fmt.Errorf("refresh rating: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return review, nil
}

func ListReviews(ctx context.Context, q database.Querier, productID int64) ([]models.Review, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, user_id, author, email, text, rate, created_at
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.UserID,
			&review.Author,
			&review.Email,
			&review.Text,
			&review.Rate,
			&review.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}
