package store

import (
	"context"
	"database/sql"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
)

// StockLine is one requested (product, quantity) pair to validate
// against the stock ledger.
type StockLine struct {
	ProductID int64
	Quantity  int
}

// CheckStock validates the requested lines against current stock. A
// line is satisfied iff the product has at least the requested
// quantity on hand. It returns whether every line is satisfied and the
// products that came up short. This is the single reconciliation rule;
// both the basket-to-order and order-to-payment transitions call it.
//
// Product rows are locked for the transaction, so the answer stays
// true until the caller commits or rolls back.
func CheckStock(ctx context.Context, tx *sql.Tx, lines []StockLine) (bool, []*models.Product, error) {
	var short []*models.Product

	for _, line := range lines {
		product, err := GetProductForUpdate(ctx, tx, line.ProductID)
		if err != nil {
			return false, nil, err
		}
		if product.StockQuantity < line.Quantity {
			short = append(short, product)
		}
	}

	return len(short) == 0, short, nil
}

func shortfallIDs(short []*models.Product) []int64 {
	ids := make([]int64, 0, len(short))
	for _, p := range short {
		ids = append(ids, p.ID)
	}
	return ids
}

func stockErr(short []*models.Product) error {
	return &database.StockError{ProductIDs: shortfallIDs(short)}
}
