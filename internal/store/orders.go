package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
)

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s", uuid.NewString())
}

// ConfirmOrderRequest carries the shopper's checkout choices. Blank
// contact fields fall back to the profile of a registered shopper.
type ConfirmOrderRequest struct {
	FullName     string
	Email        string
	Phone        string
	City         string
	Address      string
	DeliveryType string
	PaymentType  string
}

// RecoveredLine reports a line moved back from a deleted order into a
// basket, with the stock level observed at that moment. The transport
// uses it to repair an anonymous basket it holds client-side.
type RecoveredLine struct {
	ProductID int64
	Quantity  int
	Stock     int
}

// CreateOrder builds an order in status "created" from the given
// lines. Stock is validated but not decremented; the decrement happens
// at payment. On any shortfall no order is created and the returned
// StockError names the short products so the caller can clamp the
// source basket. A registered shopper's basket is cleared on success.
func CreateOrder(ctx context.Context, db *sql.DB, userID *int64, items []StockLine) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		ok, short, err := CheckStock(ctx, tx, items)
		if err != nil {
			return err
		}
		if !ok {
			return stockErr(short)
		}

		now := time.Now()
		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, created_at, updated_at)
			 VALUES ($1, $2, $3, NOW(), NOW())
			 RETURNING id`,
			userID, generateOrderNumber(), models.OrderStatusCreated).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range items {
			product, err := GetProduct(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}

			price, err := ResolvePrice(ctx, tx, product, now)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_lines (order_id, product_id, quantity, unit_price, is_delivery)
				 VALUES ($1, $2, $3, $4, FALSE)`,
				orderID, item.ProductID, item.Quantity, price)
			if err != nil {
				return fmt.Errorf("create order line: %w", err)
			}
		}

		ordinary, err := GetDeliveryType(ctx, tx, models.DeliveryTypeOrdinary)
		if err != nil {
			return err
		}
		if ordinary == nil {
			return fmt.Errorf("delivery type %q is not configured", models.DeliveryTypeOrdinary)
		}
		if err := RecomputeDeliveryLine(ctx, tx, orderID, ordinary, now); err != nil {
			return err
		}

		if userID != nil {
			basket, err := GetOrCreateBasket(ctx, tx, *userID)
			if err != nil {
				return err
			}
			if err := ClearBasket(ctx, tx, basket.ID); err != nil {
				return err
			}
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// ConfirmOrder moves an order from "created" to "awaiting_payment".
// Stock is re-validated first: on a shortfall every recoverable unit
// is merged back into the shopper's basket, the order is deleted, and
// the shopper must re-review a degraded basket.
func ConfirmOrder(ctx context.Context, db *sql.DB, orderID int64, req ConfirmOrderRequest) ([]RecoveredLine, error) {
	var recovered []RecoveredLine

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		recovered = nil

		order, err := getOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if models.Terminal(order.Status) {
			return database.ErrOrderImmutable
		}

		lines, err := GetGoodsLines(ctx, tx, orderID)
		if err != nil {
			return err
		}

		requested := make([]StockLine, 0, len(lines))
		for _, line := range lines {
			requested = append(requested, StockLine{ProductID: line.ProductID, Quantity: line.Quantity})
		}

		ok, short, err := CheckStock(ctx, tx, requested)
		if err != nil {
			return err
		}
		if !ok {
			recovered, err = rollBackToBasket(ctx, tx, order, lines)
			if err != nil {
				return err
			}
			if err := deleteOrder(ctx, tx, orderID); err != nil {
				return err
			}
			return stockErr(short)
		}

		if req.City == "" || req.Address == "" {
			return database.ErrMissingAddress
		}

		fullName, email, phone := req.FullName, req.Email, req.Phone
		if order.UserID != nil && (fullName == "" || email == "" || phone == "") {
			profile, err := GetProfile(ctx, tx, *order.UserID)
			if err != nil {
				return err
			}
			if profile != nil {
				if fullName == "" {
					fullName = profile.FullName
				}
				if email == "" {
					email = profile.Email
				}
				if phone == "" {
					phone = profile.Phone
				}
			}
		}

		deliveryType := req.DeliveryType
		if deliveryType == "" {
			deliveryType = models.DeliveryTypeOrdinary
		}
		delivery, err := GetDeliveryType(ctx, tx, deliveryType)
		if err != nil {
			return err
		}
		if delivery == nil {
			delivery, err = GetDeliveryType(ctx, tx, models.DeliveryTypeOrdinary)
			if err != nil {
				return err
			}
		}
		if delivery == nil {
			return fmt.Errorf("delivery type %q is not configured", models.DeliveryTypeOrdinary)
		}

		paymentType := req.PaymentType
		if paymentType == "" {
			paymentType = models.PaymentTypeOnline
		}
		payment, err := GetPaymentType(ctx, tx, paymentType)
		if err != nil {
			return err
		}
		if payment == nil {
			payment, err = GetPaymentType(ctx, tx, models.PaymentTypeOnline)
			if err != nil {
				return err
			}
		}
		if payment == nil {
			return fmt.Errorf("payment type %q is not configured", models.PaymentTypeOnline)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET full_name = $1, email = $2, phone = $3, city = $4, address = $5,
			     delivery_type_id = $6, payment_type_id = $7, status = $8, updated_at = NOW()
			 WHERE id = $9`,
			fullName, email, phone, req.City, req.Address,
			delivery.ID, payment.ID, models.OrderStatusAwaitingPayment, orderID)
		if err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}

		return RecomputeDeliveryLine(ctx, tx, orderID, delivery, time.Now())
	})

	if err != nil {
		return recovered, err
	}

	return nil, nil
}

// rollBackToBasket moves up to min(on_hand, requested) of every goods
// line into the shopper's durable basket, merging with existing lines
// and never exceeding stock. Anonymous orders have no durable basket;
// the recovered lines are still reported so the transport can repair
// the client-held basket value.
func rollBackToBasket(ctx context.Context, tx *sql.Tx, order *models.Order, lines []models.OrderLine) ([]RecoveredLine, error) {
	var (
		recovered []RecoveredLine
		basket    *models.Basket
	)

	if order.UserID != nil {
		var err error
		basket, err = GetOrCreateBasket(ctx, tx, *order.UserID)
		if err != nil {
			return nil, err
		}
	}

	for _, line := range lines {
		product, err := GetProduct(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product.StockQuantity == 0 {
			continue
		}

		back := line.Quantity
		if back > product.StockQuantity {
			back = product.StockQuantity
		}
		recovered = append(recovered, RecoveredLine{
			ProductID: line.ProductID,
			Quantity:  back,
			Stock:     product.StockQuantity,
		})

		if basket == nil {
			continue
		}

		current, err := getBasketLineQuantity(ctx, tx, basket.ID, line.ProductID)
		if err != nil {
			return nil, err
		}

		addition := product.StockQuantity - current
		if addition > back {
			addition = back
		}
		if addition <= 0 {
			continue
		}

		if err := setBasketLineQuantity(ctx, tx, basket.ID, line.ProductID, current+addition); err != nil {
			return nil, err
		}
	}

	return recovered, nil
}

// PayOrder finalizes an order whose payment fields already passed
// validation. Inside one transaction it freezes final prices at the
// current resolved price, decrements stock per line with a
// compare-and-decrement, records the payment exactly once, and sets
// the order to "paid". Any failed decrement aborts the whole batch.
func PayOrder(ctx context.Context, db *sql.DB, orderID int64, cardNumber string, month, year int) error {
	return database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		order, err := getOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if models.Terminal(order.Status) {
			return database.ErrAlreadyPaid
		}
		if order.Status != models.OrderStatusAwaitingPayment {
			return database.ErrOrderNotPayable
		}

		lines, err := GetGoodsLines(ctx, tx, orderID)
		if err != nil {
			return err
		}

		now := time.Now()
		var short []int64
		for _, line := range lines {
			product, err := GetProductForUpdate(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}

			finalPrice, err := ResolvePrice(ctx, tx, product, now)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE order_lines SET final_price = $1 WHERE id = $2`,
				finalPrice, line.ID)
			if err != nil {
				return fmt.Errorf("freeze final price: %w", err)
			}

			if err := DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				if err == database.ErrInsufficientStock {
					short = append(short, line.ProductID)
					continue
				}
				return err
			}
		}
		if len(short) > 0 {
			return &database.StockError{ProductIDs: short}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO payments (order_id, card_number, card_month, card_year, created_at)
			 VALUES ($1, $2, $3, $4, NOW())`,
			orderID, cardNumber, month, year)
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.OrderStatusPaid, orderID)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		return nil
	})
}

// BindOrder attaches an anonymous order to a user. Orders that already
// belong to someone are left alone.
func BindOrder(ctx context.Context, db *sql.DB, orderID, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE orders SET user_id = $1, updated_at = NOW() WHERE id = $2 AND user_id IS NULL`,
		userID, orderID)
	if err != nil {
		return fmt.Errorf("bind order: %w", err)
	}
	return nil
}

func deleteOrder(ctx context.Context, tx *sql.Tx, orderID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, order_number, status, full_name, email, phone, city, address, delivery_type_id, payment_type_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	var fullName, email, phone, city, address sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&fullName,
		&email,
		&phone,
		&city,
		&address,
		&order.DeliveryTypeID,
		&order.PaymentTypeID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.FullName = fullName.String
	order.Email = email.String
	order.Phone = phone.String
	order.City = city.String
	order.Address = address.String
	return order, nil
}

func getOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func getOrderForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

// GetOrder returns an order with all of its lines.
func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order, err := getOrder(ctx, db, id)
	if err != nil {
		return nil, err
	}

	order.Lines, err = GetOrderLines(ctx, db, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrderLines(ctx context.Context, q database.Querier, orderID int64) ([]models.OrderLine, error) {
	return queryOrderLines(ctx, q,
		`SELECT id, order_id, product_id, quantity, unit_price, final_price, is_delivery
		 FROM order_lines
		 WHERE order_id = $1
		 ORDER BY id`, orderID)
}

// GetGoodsLines returns the order's lines excluding any delivery line.
func GetGoodsLines(ctx context.Context, q database.Querier, orderID int64) ([]models.OrderLine, error) {
	return queryOrderLines(ctx, q,
		`SELECT id, order_id, product_id, quantity, unit_price, final_price, is_delivery
		 FROM order_lines
		 WHERE order_id = $1 AND NOT is_delivery
		 ORDER BY id`, orderID)
}

func queryOrderLines(ctx context.Context, q database.Querier, query string, orderID int64) ([]models.OrderLine, error) {
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.UnitPrice,
			&line.FinalPrice,
			&line.IsDelivery,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// ListOrdersCursor pages through a user's orders newest first.
func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
