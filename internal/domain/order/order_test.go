package order_test

import (
	"testing"

	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatus_IsPaid(t *testing.T) {
	assert.True(t, order.StatusProcessing.IsPaid())
	assert.True(t, order.StatusCompleted.IsPaid())
	assert.False(t, order.StatusPending.IsPaid())
	assert.False(t, order.StatusFailed.IsPaid())
}

func TestOrder_IsGuest(t *testing.T) {
	assert.True(t, (&order.Order{}).IsGuest())
	assert.False(t, (&order.Order{CustomerID: 7}).IsGuest())
}

func TestItem_GrossAmounts(t *testing.T) {
	it := order.Item{
		Quantity: 3,
		Total:    decimal.RequireFromString("25.21"),
		TotalTax: decimal.RequireFromString("4.79"),
	}
	assert.True(t, decimal.RequireFromString("30").Equal(it.GrossTotal()))
	assert.True(t, decimal.RequireFromString("10").Equal(it.GrossUnitPrice()))
}

func TestItem_GrossUnitPrice_ZeroQuantity(t *testing.T) {
	it := order.Item{Total: decimal.NewFromInt(5)}
	assert.True(t, decimal.NewFromInt(5).Equal(it.GrossUnitPrice()))
}
