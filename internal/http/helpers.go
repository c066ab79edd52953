package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"nettracker/internal/core"
)

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// queryBool reads a boolean query parameter; anything unparsable is false.
func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

// parseBudgetLimit reads a budget limit the same way amounts are read.
func parseBudgetLimit(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: budget limit %q is not a number", core.ErrValidation, raw)
	}
	f, _ := d.Float64()
	return f, nil
}

// orEmpty keeps empty collections encoding as [] rather than null.
func orEmpty(list []core.Transaction) []core.Transaction {
	if list == nil {
		return []core.Transaction{}
	}
	return list
}
