package receipt_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cassiomorais/bluecode/internal/application/receipt"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPurpose(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     receipt.PurposeData
		want     string
	}{
		{
			name:     "order and shop",
			template: "Order [[ORDERID]] for [[SHOPNAME]]",
			data:     receipt.PurposeData{OrderID: "42", ShopName: "Acme"},
			want:     "Order 42 for Acme",
		},
		{
			name:     "known customer",
			template: "[[ORDERID]]/[[CUSTOMERID]]",
			data:     receipt.PurposeData{OrderID: "42", CustomerID: "7"},
			want:     "42/7",
		},
		{
			name:     "guest customer",
			template: "[[ORDERID]]/[[CUSTOMERID]]",
			data:     receipt.PurposeData{OrderID: "42"},
			want:     "42/(new customer)",
		},
		{
			name:     "zero customer id is a guest",
			template: "[[CUSTOMERID]]",
			data:     receipt.PurposeData{CustomerID: "0"},
			want:     "(new customer)",
		},
		{
			name:     "repeated placeholders",
			template: "[[ORDERID]] [[ORDERID]]",
			data:     receipt.PurposeData{OrderID: "9"},
			want:     "9 9",
		},
		{
			name:     "unknown placeholders untouched",
			template: "[[FOO]] [[SHOPNAME]]",
			data:     receipt.PurposeData{ShopName: "Acme"},
			want:     "[[FOO]] Acme",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, receipt.BuildPurpose(tt.template, tt.data, "(new customer)"))
		})
	}
}

func TestBuildReceipt(t *testing.T) {
	o := testutil.NewTestOrder(42, "23.80")
	o.Items = []order.Item{
		{
			ProductID: 101,
			Name:      "Coffee beans",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("8.50"),
			Total:     decimal.RequireFromString("17.00"),
			TotalTax:  decimal.RequireFromString("3.40"),
		},
		{
			ProductID: 202,
			Name:      "Filter",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("2.83"),
			Total:     decimal.RequireFromString("2.83"),
			TotalTax:  decimal.RequireFromString("0.57"),
		},
	}
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	req := receipt.BuildReceipt(receipt.Input{
		Order:        o,
		BranchID:     "branch-1",
		AcquirerTxID: "acq-1",
		Shop:         receipt.Shop{Name: "Acme", URL: "https://shop.test", Street: "Main St 1", Zip: "1010", City: "Vienna"},
		Notes:        "Thank you for your purchase!",
		At:           at,
	})

	assert.Equal(t, "branch-1", req.BranchExtID)
	assert.Equal(t, "acq-1", req.AcquirerTxID)

	doc := req.Receipt
	assert.Equal(t, "42", doc.InvoiceNumber)
	assert.Equal(t, "2026-03-01T12:30:00Z", doc.TransactionDateAndTime)
	assert.Equal(t, int64(2380), doc.TotalAmount.Amount)
	assert.Equal(t, "EUR", doc.TotalAmount.Currency)
	assert.Equal(t, "acq-1", doc.Signature.QRCodeValue)
	assert.Equal(t, "branch-1", doc.Merchant.Branch.Name)
	assert.Equal(t, "Vienna", doc.Merchant.Branch.City)
	assert.Equal(t, "Acme", doc.Merchant.Name)
	assert.True(t, doc.DisplayConfiguration.ShowQuantity)
	assert.False(t, doc.DisplayConfiguration.ShowTaxCategory)

	require.Len(t, doc.Items, 2)
	assert.Equal(t, "Coffee beans", doc.Items[0].Description)
	assert.Equal(t, "101", doc.Items[0].EAN)
	assert.Equal(t, 2, doc.Items[0].Quantity)
	assert.Equal(t, int64(1020), doc.Items[0].SingleAmount.Amount)
	assert.Equal(t, int64(2040), doc.Items[0].TotalAmount.Amount)
	assert.Equal(t, int64(340), doc.Items[1].TotalAmount.Amount)

	require.Len(t, doc.Payments, 1)
	assert.Equal(t, "Bluecode", doc.Payments[0].Type)
	assert.Equal(t, int64(2380), doc.Payments[0].Paid.Amount)
}

func TestBuildReceipt_JSONShape(t *testing.T) {
	req := receipt.BuildReceipt(receipt.Input{
		Order:        testutil.NewTestOrder(7, "10.00"),
		BranchID:     "b",
		AcquirerTxID: "acq",
		At:           time.Unix(0, 0).UTC(),
	})

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Contains(t, m, "branch_ext_id")
	doc := m["receipt"].(map[string]any)
	for _, key := range []string{"display_configuration", "invoice_number", "items", "merchant", "notes", "payments", "signature", "total_amount", "transaction_date_and_time"} {
		assert.Contains(t, doc, key)
	}
}
