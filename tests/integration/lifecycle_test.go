package integration

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/safar/go-shop-backend/internal/store"
	"github.com/shopspring/decimal"
)

func confirmRequest() store.ConfirmOrderRequest {
	return store.ConfirmOrderRequest{
		FullName: "Test Shopper",
		Email:    "shopper@example.com",
		Phone:    "+100000000",
		City:     "Springfield",
		Address:  "742 Evergreen Terrace",
	}
}

func createOrderForUser(t *testing.T, db *sql.DB, userID int64, items []store.StockLine) *models.Order {
	t.Helper()
	order, err := store.CreateOrder(context.Background(), db, &userID, items)
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	return order
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-short@example.com")
	product := createTestProduct(t, db, 100, 1, false)

	_, err := store.CreateOrder(ctx, db, &user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 2},
	})

	var stockErr *database.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected stock error, got: %v", err)
	}
	if len(stockErr.ProductIDs) != 1 || stockErr.ProductIDs[0] != product.ID {
		t.Errorf("Expected shortfall [%d], got %v", product.ID, stockErr.ProductIDs)
	}

	// no order row may survive a failed create
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no orders, found %d", count)
	}
}

func TestCreateOrderClearsBasketAndAttachesDelivery(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-delivery@example.com")
	product := createTestProduct(t, db, 750, 10, false)

	if err := store.AddToBasket(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add to basket: %v", err)
	}

	// subtotal 1500 < 2000 threshold, product is not free-delivery
	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 2},
	})

	full, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}

	var deliveryLines, goodsLines int
	for _, line := range full.Lines {
		if line.IsDelivery {
			deliveryLines++
			if line.Quantity != 1 {
				t.Errorf("Expected delivery quantity 1, got %d", line.Quantity)
			}
			if !line.UnitPrice.Equal(decimal.NewFromInt(200)) {
				t.Errorf("Expected delivery price 200, got %s", line.UnitPrice)
			}
		} else {
			goodsLines++
		}
	}
	if deliveryLines != 1 || goodsLines != 1 {
		t.Errorf("Expected 1 delivery and 1 goods line, got %d/%d", deliveryLines, goodsLines)
	}

	if contents := basketContents(t, db, user.ID); len(contents) != 0 {
		t.Errorf("Expected basket cleared after order, got %v", contents)
	}

	// stock is untouched until payment
	if got := productStock(t, db, product.ID); got != 10 {
		t.Errorf("Expected stock still 10 before payment, got %d", got)
	}
}

func TestCreateOrderOverThresholdSkipsDelivery(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-free@example.com")
	product := createTestProduct(t, db, 1250, 10, false)

	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 2},
	})

	full, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	for _, line := range full.Lines {
		if line.IsDelivery {
			t.Errorf("Expected no delivery line for subtotal 2500")
		}
	}
}

func TestConfirmRecomputesDeliveryLine(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-recompute@example.com")
	product := createTestProduct(t, db, 750, 10, false)

	// 1500: delivery line attached at creation
	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 2},
	})

	// raising the list price lifts the subtotal over the threshold, so
	// the confirm-time recompute must drop the delivery line
	if _, err := db.Exec(`UPDATE products SET price = 1250 WHERE id = $1`, product.ID); err != nil {
		t.Fatalf("Update price: %v", err)
	}

	if _, err := store.ConfirmOrder(ctx, db, order.ID, confirmRequest()); err != nil {
		t.Fatalf("Confirm order: %v", err)
	}

	full, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if full.Status != models.OrderStatusAwaitingPayment {
		t.Errorf("Expected status awaiting_payment, got %s", full.Status)
	}
	for _, line := range full.Lines {
		if line.IsDelivery {
			t.Errorf("Expected delivery line removed after recompute")
		}
	}
}

func TestConfirmRequiresAddress(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-address@example.com")
	product := createTestProduct(t, db, 100, 10, false)

	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 1},
	})

	req := confirmRequest()
	req.City = ""

	_, err := store.ConfirmOrder(ctx, db, order.ID, req)
	if !errors.Is(err, database.ErrMissingAddress) {
		t.Errorf("Expected missing address error, got: %v", err)
	}
}

func TestConfirmShortfallRollsBackToBasket(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-rollback@example.com")
	product := createTestProduct(t, db, 100, 5, false)

	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 5},
	})

	// another shopper got there first
	setStock(t, db, product.ID, 3)

	_, err := store.ConfirmOrder(ctx, db, order.ID, confirmRequest())
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}

	if _, err := store.GetOrder(ctx, db, order.ID); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order deleted, got: %v", err)
	}

	if got := basketContents(t, db, user.ID)[product.ID]; got != 3 {
		t.Errorf("Expected clamped quantity 3 back in basket, got %d", got)
	}
}

func TestConfirmTerminalOrderRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-terminal@example.com")
	product := createTestProduct(t, db, 100, 10, false)

	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 1},
	})

	if _, err := store.ConfirmOrder(ctx, db, order.ID, confirmRequest()); err != nil {
		t.Fatalf("Confirm order: %v", err)
	}
	if err := store.PayOrder(ctx, db, order.ID, "4242424242424242", 12, 2099); err != nil {
		t.Fatalf("Pay order: %v", err)
	}

	_, err := store.ConfirmOrder(ctx, db, order.ID, confirmRequest())
	if !errors.Is(err, database.ErrOrderImmutable) {
		t.Errorf("Expected immutable order error, got: %v", err)
	}
}

func TestConfirmFallsBackToProfile(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-profile@example.com")
	product := createTestProduct(t, db, 100, 10, false)

	if _, err := store.SaveProfile(ctx, db, user.ID, "Saved Shopper", "+200000000", "saved@example.com"); err != nil {
		t.Fatalf("Save profile: %v", err)
	}

	order := createOrderForUser(t, db, user.ID, []store.StockLine{
		{ProductID: product.ID, Quantity: 1},
	})

	// blank contact fields fall back to the saved profile
	req := store.ConfirmOrderRequest{City: "Springfield", Address: "742 Evergreen Terrace"}
	if _, err := store.ConfirmOrder(ctx, db, order.ID, req); err != nil {
		t.Fatalf("Confirm order: %v", err)
	}

	full, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if full.FullName != "Saved Shopper" || full.Email != "saved@example.com" || full.Phone != "+200000000" {
		t.Errorf("Expected profile contacts on the order, got %q / %q / %q",
			full.FullName, full.Email, full.Phone)
	}
}

func TestBindAnonymousOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "order-bind@example.com")
	product := createTestProduct(t, db, 100, 10, false)

	order, err := store.CreateOrder(ctx, db, nil, []store.StockLine{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Create anonymous order: %v", err)
	}

	if err := store.BindOrder(ctx, db, order.ID, user.ID); err != nil {
		t.Fatalf("Bind order: %v", err)
	}

	page, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	orders, ok := page.Items.([]models.Order)
	if !ok || len(orders) != 1 || orders[0].ID != order.ID {
		t.Errorf("Expected the bound order in the user's list, got %+v", page.Items)
	}
}
