package main

import (
	"bytes"
	"testing"

	"stock-trading-sim-go/internal/catalog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUSD(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"12.5", "$12.50"},
		{"1234.56", "$1,234.56"},
		{"0.005", "$0.01"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, usd(decimal.RequireFromString(tc.in)), tc.in)
	}
}

func TestPrintQuotes(t *testing.T) {
	var buf bytes.Buffer
	printQuotes(&buf, []catalog.Quote{{
		Ticker:       "ACME",
		Name:         "Acme Corp",
		CurrentPrice: decimal.RequireFromString("10.25"),
		Volume:       7,
		Available:    93,
	}})

	out := buf.String()
	assert.Contains(t, out, "TICKER")
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "$10.25")
}
