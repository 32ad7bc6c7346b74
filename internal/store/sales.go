package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/shopspring/decimal"
)

// FindActiveSale returns the sale whose window contains at, or nil if
// none. When windows overlap, the lowest sale price wins.
func FindActiveSale(ctx context.Context, q database.Querier, productID int64, at time.Time) (*models.Sale, error) {
	sale := &models.Sale{}

	query := `
		SELECT id, product_id, sale_price, date_from, date_to
		FROM sales
		WHERE product_id = $1
		  AND date_from <= $2
		  AND date_to >= $2
		ORDER BY sale_price ASC, id ASC
		LIMIT 1`

	err := q.QueryRowContext(ctx, query, productID, at).Scan(
		&sale.ID,
		&sale.ProductID,
		&sale.SalePrice,
		&sale.DateFrom,
		&sale.DateTo,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active sale: %w", err)
	}

	return sale, nil
}

// ResolvePrice returns the effective unit price of a product at a
// given instant: the active sale price if one exists, else the list
// price. Every caller re-resolves against its own "now"; nothing is
// cached between basket view, confirmation and payment.
func ResolvePrice(ctx context.Context, q database.Querier, product *models.Product, at time.Time) (decimal.Decimal, error) {
	sale, err := FindActiveSale(ctx, q, product.ID, at)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if sale != nil {
		return sale.SalePrice, nil
	}
	return product.Price, nil
}

func CreateSale(ctx context.Context, db *sql.DB, productID int64, salePrice decimal.Decimal, dateFrom, dateTo time.Time) (*models.Sale, error) {
	sale := &models.Sale{}

	query := `
		INSERT INTO sales (product_id, sale_price, date_from, date_to)
		VALUES ($1, $2, $3, $4)
		RETURNING id, product_id, sale_price, date_from, date_to`

	err := db.QueryRowContext(ctx, query, productID, salePrice, dateFrom, dateTo).Scan(
		&sale.ID,
		&sale.ProductID,
		&sale.SalePrice,
		&sale.DateFrom,
		&sale.DateTo,
	)
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	return sale, nil
}
