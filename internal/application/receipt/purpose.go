// Package receipt formats the slip text and the digital receipt sent to the
// provider. Nothing here performs I/O.
package receipt

import "strings"

const (
	PlaceholderOrderID    = "[[ORDERID]]"
	PlaceholderShopName   = "[[SHOPNAME]]"
	PlaceholderCustomerID = "[[CUSTOMERID]]"
)

// PurposeData fills the slip template. An empty CustomerID marks a guest.
type PurposeData struct {
	OrderID    string
	ShopName   string
	CustomerID string
}

// BuildPurpose substitutes every placeholder in template. newCustomer
// replaces [[CUSTOMERID]] when the buyer has no account.
func BuildPurpose(template string, data PurposeData, newCustomer string) string {
	customer := data.CustomerID
	if customer == "" || customer == "0" {
		customer = newCustomer
	}
	return strings.NewReplacer(
		PlaceholderOrderID, data.OrderID,
		PlaceholderShopName, data.ShopName,
		PlaceholderCustomerID, customer,
	).Replace(template)
}
