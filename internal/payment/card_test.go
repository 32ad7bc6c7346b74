package payment

import (
	"testing"
	"time"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func validCard() Card {
	return Card{Number: "1234 5678 9012 3456", Month: "12", Year: "2027", Code: "123"}
}

func TestValidate_OK(t *testing.T) {
	got, err := Validate(validCard(), now)

	require.NoError(t, err)
	assert.Equal(t, "1234567890123456", got.Number)
	assert.Equal(t, 12, got.Month)
	assert.Equal(t, 2027, got.Year)
}

func TestValidate_TwoDigitYear(t *testing.T) {
	card := validCard()
	card.Year = "27"

	got, err := Validate(card, now)

	require.NoError(t, err)
	assert.Equal(t, 2027, got.Year)
}

func TestValidate_Number(t *testing.T) {
	cases := []struct {
		name   string
		number string
	}{
		{"missing", ""},
		{"separators only", "  "},
		{"letters", "1234abcd"},
		{"odd", "12345"},
		{"ends in zero", "1234567890"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := validCard()
			card.Number = tc.number

			_, err := Validate(card, now)

			assert.ErrorIs(t, err, database.ErrInvalidCardNumber)
		})
	}
}

func TestValidate_Expiry(t *testing.T) {
	cases := []struct {
		name  string
		month string
		year  string
	}{
		{"missing month", "", "2027"},
		{"missing year", "12", ""},
		{"one digit month", "1", "2027"},
		{"month not a number", "ab", "2027"},
		{"month above twelve", "13", "2027"},
		{"three digit year", "12", "202"},
		{"year not a number", "12", "20xx"},
		{"signed month", "+9", "2027"},
		{"signed year", "12", "+027"},
		{"expired year", "12", "2025"},
		{"expired month this year", "05", "2026"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := validCard()
			card.Month = tc.month
			card.Year = tc.year

			_, err := Validate(card, now)

			assert.ErrorIs(t, err, database.ErrInvalidExpiry)
		})
	}
}

func TestValidate_CurrentMonthStillValid(t *testing.T) {
	card := validCard()
	card.Month = "06"
	card.Year = "2026"

	_, err := Validate(card, now)

	assert.NoError(t, err)
}

func TestValidate_CVV(t *testing.T) {
	for _, code := range []string{"", "12", "1234", "12a", "-12"} {
		card := validCard()
		card.Code = code

		_, err := Validate(card, now)

		assert.ErrorIs(t, err, database.ErrInvalidCVV, "code %q", code)
	}
}

// The number check runs before the expiry check, so a card that is
// wrong in both ways reports the number error.
func TestValidate_Order(t *testing.T) {
	card := Card{Number: "135", Month: "13", Year: "1999", Code: "12345"}

	_, err := Validate(card, now)

	assert.ErrorIs(t, err, database.ErrInvalidCardNumber)
}
