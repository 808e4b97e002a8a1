package receipt

import (
	"strconv"
	"time"

	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
)

const paymentType = "Bluecode"

// Shop is the storefront identity printed on receipts.
type Shop struct {
	Name   string
	URL    string
	Street string
	Zip    string
	City   string
}

// Input is everything a receipt is built from.
type Input struct {
	Order        *order.Order
	BranchID     string
	AcquirerTxID string
	Shop         Shop
	Notes        string
	At           time.Time
}

// BuildReceipt assembles the receipt document for a paid order.
func BuildReceipt(in Input) *bluecode.ReceiptRequest {
	o := in.Order
	currency := o.Currency

	items := make([]bluecode.ReceiptItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, bluecode.ReceiptItem{
			Description: it.Name,
			EAN:         strconv.FormatInt(it.ProductID, 10),
			Quantity:    it.Quantity,
			SingleAmount: bluecode.Money{
				Amount:   bluecode.DecimalToMinorUnits(it.GrossUnitPrice()),
				Currency: currency,
			},
			TotalAmount: bluecode.Money{
				Amount:   bluecode.DecimalToMinorUnits(it.GrossTotal()),
				Currency: currency,
			},
		})
	}

	total := bluecode.Money{Amount: bluecode.DecimalToMinorUnits(o.Total), Currency: currency}

	return &bluecode.ReceiptRequest{
		BranchExtID:  in.BranchID,
		AcquirerTxID: in.AcquirerTxID,
		Receipt: bluecode.ReceiptDocument{
			DisplayConfiguration: bluecode.DisplayConfiguration{
				ShowQuantity:     true,
				ShowSingleAmount: true,
			},
			InvoiceNumber: strconv.FormatInt(o.ID, 10),
			Items:         items,
			Merchant: bluecode.ReceiptMerchant{
				Branch: bluecode.ReceiptBranch{
					Name:    in.BranchID,
					Street:  in.Shop.Street,
					Zip:     in.Shop.Zip,
					City:    in.Shop.City,
					Website: in.Shop.URL,
				},
				Name: in.Shop.Name,
			},
			Notes: in.Notes,
			Payments: []bluecode.ReceiptPayment{{
				AcquirerTxID: in.AcquirerTxID,
				Paid:         total,
				Type:         paymentType,
			}},
			Signature:              bluecode.ReceiptSignature{QRCodeValue: in.AcquirerTxID},
			TotalAmount:            total,
			TransactionDateAndTime: in.At.Format(time.RFC3339),
		},
	}
}
