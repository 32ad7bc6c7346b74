package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, title, description, price, stock_quantity, free_delivery, is_delivery, rating, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.FreeDelivery,
		&product.IsDelivery,
		&product.Rating,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func CreateProduct(ctx context.Context, db *sql.DB, sku, title, description string, price decimal.Decimal, stock int, freeDelivery bool) (*models.Product, error) {
	query := `
		INSERT INTO products (sku, title, description, price, stock_quantity, free_delivery, is_delivery, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, 0, NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query, sku, title, description, price, stock, freeDelivery))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductForUpdate locks the product row for the rest of the
// transaction. Stock checks that precede a write must go through here.
func GetProductForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	return product, nil
}

// GetProducts returns the referenced products keyed by id. Missing ids
// are simply absent from the result.
func GetProducts(ctx context.Context, q database.Querier, ids []int64) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// DecrementStock is a compare-and-decrement: it only succeeds when at
// least quantity units are still on hand, so stock can never go
// negative no matter how many payments race.
func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock_quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}
