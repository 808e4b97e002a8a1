package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the storefront-side order status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// IsPaid reports whether the order has been paid for.
func (s Status) IsPaid() bool {
	return s == StatusProcessing || s == StatusCompleted
}

// Order is the storefront order paid through the gateway.
type Order struct {
	ID         int64
	Number     string
	CustomerID int64
	Currency   string
	Total      decimal.Decimal
	Status     Status
	// TransactionID is the provider's acquirer transaction id, set once paid.
	TransactionID string
	Items         []Item
	ReturnURL     string
	CancelURL     string
	PaymentURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// IsGuest reports whether the order was placed without a customer account.
func (o *Order) IsGuest() bool {
	return o.CustomerID == 0
}

// Item is one order line.
type Item struct {
	ProductID int64
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	TotalTax  decimal.Decimal
}

// GrossTotal is the line total including tax.
func (i Item) GrossTotal() decimal.Decimal {
	return i.Total.Add(i.TotalTax)
}

// GrossUnitPrice is the per-unit price including tax.
func (i Item) GrossUnitPrice() decimal.Decimal {
	if i.Quantity <= 0 {
		return i.GrossTotal()
	}
	return i.GrossTotal().Div(decimal.NewFromInt(int64(i.Quantity)))
}

// Note is a free-text entry on the order history.
type Note struct {
	OrderID   int64
	Text      string
	CreatedAt time.Time
}
