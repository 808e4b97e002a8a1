package bluecode

import "github.com/shopspring/decimal"

// ToMinorUnits converts a major-unit amount to integer minor units, rounding
// half away from zero. The provider expects exactly this rounding.
func ToMinorUnits(amount float64) int64 {
	return DecimalToMinorUnits(decimal.NewFromFloat(amount))
}

// DecimalToMinorUnits is ToMinorUnits for decimal amounts.
func DecimalToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a major-unit decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
