package postgres

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are read as ::text so NUMERIC values keep their exact scale.

func parseNumeric(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty numeric string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func numericString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
