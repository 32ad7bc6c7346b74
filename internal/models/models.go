package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Profile struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"count"`
	FreeDelivery  bool            `json:"freeDelivery"`
	IsDelivery    bool            `json:"-"`
	Rating        decimal.Decimal `json:"rating"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Sale is a time-windowed discount for one product. The window is
// inclusive on both ends.
type Sale struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SalePrice decimal.Decimal `json:"salePrice"`
	DateFrom  time.Time       `json:"dateFrom"`
	DateTo    time.Time       `json:"dateTo"`
}

func (s *Sale) ActiveAt(at time.Time) bool {
	return !at.Before(s.DateFrom) && !at.After(s.DateTo)
}

type Basket struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type BasketLine struct {
	ID        int64 `json:"id"`
	BasketID  int64 `json:"basket_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type DeliveryType struct {
	ID               int64           `json:"id"`
	Type             string          `json:"type"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	MinAmountForFree decimal.Decimal `json:"min_amount_for_free"`
	// ProductID is the reserved product used to represent this
	// delivery charge as an order line.
	ProductID int64 `json:"product_id"`
}

type PaymentType struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type Order struct {
	ID             int64       `json:"id"`
	UserID         *int64      `json:"user_id,omitempty"`
	OrderNumber    string      `json:"order_number"`
	Status         string      `json:"status"`
	FullName       string      `json:"fullName,omitempty"`
	Email          string      `json:"email,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	City           string      `json:"city,omitempty"`
	Address        string      `json:"address,omitempty"`
	DeliveryTypeID *int64      `json:"delivery_type_id,omitempty"`
	PaymentTypeID  *int64      `json:"payment_type_id,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Lines          []OrderLine `json:"lines,omitempty"`
}

type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	// FinalPrice is set once, at successful payment. It records what
	// the unit was actually sold for, independent of later sales.
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
	IsDelivery bool             `json:"is_delivery"`
}

// PaymentRecord is the bookkeeping row created exactly once per paid
// order. No real settlement happens here.
type PaymentRecord struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Number    string    `json:"-"`
	Month     int       `json:"-"`
	Year      int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Text      string    `json:"text"`
	Rate      int       `json:"rate"`
	CreatedAt time.Time `json:"date"`
}

const (
	OrderStatusCreated         = "created"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusAccepted        = "accepted"
)

// Terminal reports whether an order status permits no further
// transitions.
func Terminal(status string) bool {
	return status == OrderStatusPaid || status == OrderStatusAccepted
}

const (
	DeliveryTypeOrdinary = "ordinary"
	DeliveryTypeExpress  = "express"

	PaymentTypeOnline = "online"
)
