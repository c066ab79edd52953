// Package sheets defines the monthly statement export port.
package sheets

import (
	"context"

	"nettracker/internal/core"
)

// Statement is one period's budget picture plus the records behind it.
type Statement struct {
	View         core.BudgetView
	Transactions []core.Transaction
}

// Ports for outbound adapters.
type (
	// MonthlyExporter writes a statement somewhere durable and returns a
	// reference to what it wrote.
	MonthlyExporter interface {
		ExportMonth(ctx context.Context, st Statement) (ref string, err error)
	}
)

// Rows renders a statement as a table: a summary block, a blank row, then
// one row per transaction.
func Rows(st Statement) [][]any {
	v := st.View
	rows := [][]any{
		{"Period", v.Month},
		{"Budget", v.BudgetLimit},
		{"Spent", v.Spent},
		{"Remaining", v.Remaining},
		{"Daily safe", v.DailySafe},
		{},
		{"Date", "Description", "Amount", "Origin", "ID"},
	}
	for _, t := range st.Transactions {
		rows = append(rows, []any{
			t.Date.Format("2006-01-02"),
			t.Description,
			t.Amount,
			string(t.Origin),
			string(t.ID),
		})
	}
	return rows
}
