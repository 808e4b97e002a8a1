package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric_Success(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"whole euros", "100", "100"},
		{"euros with cents", "100.50", "100.5"},
		{"cents only", "0.99", "0.99"},
		{"zero", "0.00", "0"},
		{"keeps sub-cent precision", "19.995", "19.995"},
		{"with whitespace", "  50.25  ", "50.25"},
		{"negative amount", "-10.50", "-10.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNumeric(tt.input)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestParseNumeric_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1,50"} {
		_, err := parseNumeric(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNumericString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "0.00"},
		{"5.5", "5.50"},
		{"19.995", "20.00"},
		{"10.004", "10.00"},
		{"-10.5", "-10.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, numericString(decimal.RequireFromString(tt.input)))
	}
}
