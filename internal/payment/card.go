// Package payment performs local validation of card details. Nothing
// here talks to a gateway; a passing card is bookkeeping, not
// settlement.
package payment

import (
	"strconv"
	"strings"
	"time"

	"github.com/safar/go-shop-backend/internal/database"
)

// Card holds the raw fields as the shopper typed them.
type Card struct {
	Number string
	Month  string
	Year   string
	Code   string
}

// Validated carries the normalized card fields after a successful
// check.
type Validated struct {
	Number string
	Month  int
	Year   int
}

// Validate checks the card fields in fixed order: number, then expiry,
// then CVV. The first failure wins and nothing else is evaluated.
//
// The number rule (digits only, even, not ending in zero) is a
// deliberately simplified stand-in for a real checksum.
func Validate(card Card, now time.Time) (*Validated, error) {
	number, err := validateNumber(card.Number)
	if err != nil {
		return nil, err
	}

	month, year, err := validateExpiry(card.Month, card.Year, now)
	if err != nil {
		return nil, err
	}

	if err := validateCVV(card.Code); err != nil {
		return nil, err
	}

	return &Validated{Number: number, Month: month, Year: year}, nil
}

func validateNumber(raw string) (string, error) {
	number := strings.ReplaceAll(raw, " ", "")
	number = strings.ReplaceAll(number, "-", "")
	if number == "" {
		return "", database.ErrInvalidCardNumber
	}

	for _, r := range number {
		if r < '0' || r > '9' {
			return "", database.ErrInvalidCardNumber
		}
	}

	last := number[len(number)-1]
	if last == '0' || (last-'0')%2 != 0 {
		return "", database.ErrInvalidCardNumber
	}

	return number, nil
}

func validateExpiry(rawMonth, rawYear string, now time.Time) (int, int, error) {
	if rawMonth == "" || rawYear == "" {
		return 0, 0, database.ErrInvalidExpiry
	}
	if len(rawMonth) != 2 {
		return 0, 0, database.ErrInvalidExpiry
	}
	if len(rawYear) != 2 && len(rawYear) != 4 {
		return 0, 0, database.ErrInvalidExpiry
	}

	if !allDigits(rawMonth) || !allDigits(rawYear) {
		return 0, 0, database.ErrInvalidExpiry
	}

	month, _ := strconv.Atoi(rawMonth)
	year, _ := strconv.Atoi(rawYear)
	if len(rawYear) == 2 {
		year += 2000
	}

	if month < 1 || month > 12 {
		return 0, 0, database.ErrInvalidExpiry
	}

	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return 0, 0, database.ErrInvalidExpiry
	}

	return month, year, nil
}

func validateCVV(code string) error {
	if len(code) != 3 || !allDigits(code) {
		return database.ErrInvalidCVV
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
