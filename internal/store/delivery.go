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

// GetDeliveryType looks up a delivery type by its name. The caller
// decides whether absence is a user error or a broken deployment;
// reference data that the lifecycle falls back to (the "ordinary"
// type) is expected to exist.
func GetDeliveryType(ctx context.Context, q database.Querier, typ string) (*models.DeliveryType, error) {
	dt := &models.DeliveryType{}

	query := `
		SELECT id, type, description, price, min_amount_for_free, product_id
		FROM delivery_types
		WHERE type = $1`

	err := q.QueryRowContext(ctx, query, typ).Scan(
		&dt.ID,
		&dt.Type,
		&dt.Description,
		&dt.Price,
		&dt.MinAmountForFree,
		&dt.ProductID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery type: %w", err)
	}

	return dt, nil
}

func GetPaymentType(ctx context.Context, q database.Querier, typ string) (*models.PaymentType, error) {
	pt := &models.PaymentType{}

	err := q.QueryRowContext(ctx,
		`SELECT id, type, description FROM payment_types WHERE type = $1`, typ).Scan(
		&pt.ID,
		&pt.Type,
		&pt.Description,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment type: %w", err)
	}

	return pt, nil
}

// needsDeliveryLine decides whether an order must carry a delivery
// charge: only when the goods subtotal is under the free-delivery
// threshold and at least one product is not free-delivery flagged.
func needsDeliveryLine(subtotal decimal.Decimal, hasPaidDeliveryProduct bool, dt *models.DeliveryType) bool {
	return subtotal.LessThan(dt.MinAmountForFree) && hasPaidDeliveryProduct
}

// RecomputeDeliveryLine replaces (never stacks) the order's delivery
// line under the given delivery type. The subtotal is taken over the
// non-delivery lines at prices resolved now, so a sale starting or
// ending since the last computation changes the outcome.
func RecomputeDeliveryLine(ctx context.Context, tx *sql.Tx, orderID int64, dt *models.DeliveryType, at time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM order_lines WHERE order_id = $1 AND is_delivery`, orderID); err != nil {
		return fmt.Errorf("drop delivery line: %w", err)
	}

	lines, err := GetOrderLines(ctx, tx, orderID)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := GetProducts(ctx, tx, ids)
	if err != nil {
		return err
	}

	subtotal := decimal.Zero
	hasPaidDelivery := false
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return fmt.Errorf("order %d references missing product %d", orderID, line.ProductID)
		}

		price, err := ResolvePrice(ctx, tx, product, at)
		if err != nil {
			return err
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))

		if !product.FreeDelivery {
			hasPaidDelivery = true
		}
	}

	if !needsDeliveryLine(subtotal, hasPaidDelivery, dt) {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_lines (order_id, product_id, quantity, unit_price, is_delivery)
		 VALUES ($1, $2, 1, $3, TRUE)`,
		orderID, dt.ProductID, dt.Price)
	if err != nil {
		return fmt.Errorf("attach delivery line: %w", err)
	}

	return nil
}
