package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
)

// GetOrCreateBasket returns the user's durable basket, creating it
// lazily on first access.
func GetOrCreateBasket(ctx context.Context, q database.Querier, userID int64) (*models.Basket, error) {
	basket := &models.Basket{}

	query := `
		INSERT INTO baskets (user_id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at`

	err := q.QueryRowContext(ctx, query, userID).Scan(
		&basket.ID,
		&basket.UserID,
		&basket.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create basket: %w", err)
	}

	return basket, nil
}

func GetBasketLines(ctx context.Context, q database.Querier, basketID int64) ([]models.BasketLine, error) {
	query := `
		SELECT id, basket_id, product_id, quantity
		FROM basket_lines
		WHERE basket_id = $1
		ORDER BY id`

	rows, err := q.QueryContext(ctx, query, basketID)
	if err != nil {
		return nil, fmt.Errorf("get basket lines: %w", err)
	}
	defer rows.Close()

	var lines []models.BasketLine
	for rows.Next() {
		var line models.BasketLine
		if err := rows.Scan(&line.ID, &line.BasketID, &line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan basket line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func getBasketLineQuantity(ctx context.Context, q database.Querier, basketID, productID int64) (int, error) {
	var quantity int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM basket_lines WHERE basket_id = $1 AND product_id = $2`,
		basketID, productID).Scan(&quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get basket line: %w", err)
	}
	return quantity, nil
}

func setBasketLineQuantity(ctx context.Context, q database.Querier, basketID, productID int64, quantity int) error {
	if quantity <= 0 {
		_, err := q.ExecContext(ctx,
			`DELETE FROM basket_lines WHERE basket_id = $1 AND product_id = $2`,
			basketID, productID)
		if err != nil {
			return fmt.Errorf("delete basket line: %w", err)
		}
		return nil
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO basket_lines (basket_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (basket_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		basketID, productID, quantity)
	if err != nil {
		return fmt.Errorf("upsert basket line: %w", err)
	}
	return nil
}

// AddToBasket accumulates quantity on the user's line for a product,
// clamped to current stock. Adding a product with zero stock is a
// no-op.
func AddToBasket(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		product, err := GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product.StockQuantity == 0 {
			return nil
		}

		basket, err := GetOrCreateBasket(ctx, tx, userID)
		if err != nil {
			return err
		}

		current, err := getBasketLineQuantity(ctx, tx, basket.ID, productID)
		if err != nil {
			return err
		}

		next := current + quantity
		if next > product.StockQuantity {
			next = product.StockQuantity
		}

		return setBasketLineQuantity(ctx, tx, basket.ID, productID, next)
	})
}

// RemoveFromBasket decrements a line by amount, deleting the line when
// the amount covers (or exceeds) the remaining quantity. A non-positive
// amount is a no-op; removal never grows a line.
func RemoveFromBasket(ctx context.Context, db *sql.DB, userID, productID int64, amount int) error {
	if amount <= 0 {
		return nil
	}
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		basket, err := GetOrCreateBasket(ctx, tx, userID)
		if err != nil {
			return err
		}

		current, err := getBasketLineQuantity(ctx, tx, basket.ID, productID)
		if err != nil {
			return err
		}
		if current == 0 {
			return nil
		}

		return setBasketLineQuantity(ctx, tx, basket.ID, productID, current-amount)
	})
}

func ClearBasket(ctx context.Context, q database.Querier, basketID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM basket_lines WHERE basket_id = $1`, basketID); err != nil {
		return fmt.Errorf("clear basket: %w", err)
	}
	return nil
}

// MergeIntoBasket folds anonymous lines into the user's durable
// basket: quantities for products already present are summed, new
// lines are created, and every result is clamped to current stock.
// Runs once, when a previously-anonymous shopper authenticates.
func MergeIntoBasket(ctx context.Context, db *sql.DB, userID int64, lines map[int64]int) error {
	if len(lines) == 0 {
		return nil
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		basket, err := GetOrCreateBasket(ctx, tx, userID)
		if err != nil {
			return err
		}

		for productID, quantity := range lines {
			product, err := GetProduct(ctx, tx, productID)
			if err != nil {
				if err == database.ErrProductNotFound {
					continue
				}
				return err
			}
			if product.StockQuantity == 0 {
				continue
			}

			current, err := getBasketLineQuantity(ctx, tx, basket.ID, productID)
			if err != nil {
				return err
			}

			next := current + quantity
			if next > product.StockQuantity {
				next = product.StockQuantity
			}

			if err := setBasketLineQuantity(ctx, tx, basket.ID, productID, next); err != nil {
				return err
			}
		}

		return nil
	})
}

// ClampBasketLine applies the clamp-down policy to one durable basket
// line: drop it when nothing is on hand, otherwise cap it at stock.
func ClampBasketLine(ctx context.Context, q database.Querier, basketID, productID int64, available int) error {
	if available <= 0 {
		return setBasketLineQuantity(ctx, q, basketID, productID, 0)
	}

	current, err := getBasketLineQuantity(ctx, q, basketID, productID)
	if err != nil {
		return err
	}
	if current > available {
		return setBasketLineQuantity(ctx, q, basketID, productID, available)
	}
	return nil
}
