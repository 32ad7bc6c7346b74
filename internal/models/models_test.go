package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSaleActiveAt(t *testing.T) {
	sale := &Sale{
		DateFrom: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
	}

	// the window is inclusive on both ends
	assert.True(t, sale.ActiveAt(sale.DateFrom))
	assert.True(t, sale.ActiveAt(sale.DateTo))
	assert.True(t, sale.ActiveAt(time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)))

	assert.False(t, sale.ActiveAt(sale.DateFrom.Add(-time.Second)))
	assert.False(t, sale.ActiveAt(sale.DateTo.Add(time.Second)))
}

func TestTerminal(t *testing.T) {
	assert.False(t, Terminal(OrderStatusCreated))
	assert.False(t, Terminal(OrderStatusAwaitingPayment))
	assert.True(t, Terminal(OrderStatusPaid))
	assert.True(t, Terminal(OrderStatusAccepted))
}
