package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderImmutable    = errors.New("order is already paid or accepted")
	ErrOrderNotPayable   = errors.New("order is not awaiting payment")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrMissingAddress    = errors.New("city and delivery address are required")
	ErrInvalidCardNumber = errors.New("invalid card number")
	ErrInvalidExpiry     = errors.New("invalid or expired card expiry")
	ErrInvalidCVV        = errors.New("invalid CVV code")
	ErrDuplicateReview   = errors.New("user already reviewed this product")
)

// StockError is ErrInsufficientStock carrying the products that came
// up short, so callers can clamp the offending lines.
type StockError struct {
	ProductIDs []int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for products %v", e.ProductIDs)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// IsBusinessError reports whether err should surface to the caller as
// a 4xx rather than crash the request.
func IsBusinessError(err error) bool {
	for _, kind := range []error{
		ErrUserNotFound,
		ErrProductNotFound,
		ErrOrderNotFound,
		ErrInsufficientStock,
		ErrOrderImmutable,
		ErrOrderNotPayable,
		ErrAlreadyPaid,
		ErrMissingAddress,
		ErrInvalidCardNumber,
		ErrInvalidExpiry,
		ErrInvalidCVV,
		ErrDuplicateReview,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
