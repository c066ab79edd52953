// Package core holds the budget domain: transactions, periods, the
// reconciliation of manual and synced records, and the derived budget view.
//
// This file contains amount parsing and rounding helpers.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input into a positive amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil (half-up)
//	ParseAmount("")       -> 0, ErrEmptyAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// sumAmounts adds amounts in decimal so long sequences do not drift.
func sumAmounts(records []Transaction, keep func(Transaction) bool) float64 {
	total := decimal.Zero
	for _, r := range records {
		if keep(r) {
			total = total.Add(decimal.NewFromFloat(r.Amount))
		}
	}
	return total.InexactFloat64()
}

// roundHalfUp rounds to the nearest integer, with .5 going towards +Inf.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
