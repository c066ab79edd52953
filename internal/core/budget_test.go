package core

import (
	"testing"
	"time"
)

func TestPeriodTotal(t *testing.T) {
	p := Period{Year: 2025, Month: time.March, Location: time.UTC}
	records := []Transaction{
		{ID: "m-1", Amount: 500, Description: "Groceries", Date: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), Origin: OriginManual},
		{ID: "2", Amount: 300, Description: "Settled up", Date: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), Origin: OriginSynced},
		{ID: "3", Amount: 100, Description: "Old", Date: time.Date(2025, 2, 4, 9, 0, 0, 0, time.UTC), Origin: OriginSynced},
	}
	if got := PeriodTotal(records, p); got != 500 {
		t.Fatalf("PeriodTotal = %v, want 500", got)
	}
}

func TestPeriodTotalDoesNotDrift(t *testing.T) {
	p := Period{Year: 2025, Month: time.March, Location: time.UTC}
	records := make([]Transaction, 10)
	for i := range records {
		records[i] = Transaction{Amount: 0.1, Description: "x", Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Origin: OriginManual}
	}
	if got := PeriodTotal(records, p); got != 1 {
		t.Fatalf("PeriodTotal = %v, want 1", got)
	}
}

func TestTodayTotal(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	records := []Transaction{
		{Amount: 12, Description: "Lunch", Date: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
		{Amount: 3, Description: "Coffee", Date: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)},
		{Amount: 50, Description: "settle", Date: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{Amount: 99, Description: "Yesterday", Date: time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)},
	}
	if got := TodayTotal(records, now); got != 15 {
		t.Fatalf("TodayTotal = %v, want 15", got)
	}
}

func TestDailySafeToSpend(t *testing.T) {
	cases := []struct {
		name         string
		limit, spent float64
		now          time.Time
		want         float64
	}{
		{"15th of a 30-day month", 20000, 14000, time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC), 375},
		{"last day uses a single day", 1000, 400, time.Date(2025, 4, 30, 10, 0, 0, 0, time.UTC), 600},
		{"over budget floors at zero", 1000, 1500, time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC), 0},
		{"rounds half up", 10, 5, time.Date(2025, 4, 29, 10, 0, 0, 0, time.UTC), 3},
		{"first day of a 31-day month", 3100, 0, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DailySafeToSpend(tc.limit, tc.spent, tc.now); got != tc.want {
				t.Fatalf("DailySafeToSpend = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	var records []Transaction
	for i := 0; i < 7; i++ {
		records = append(records, Transaction{
			ID:          RemoteID(int64(i)),
			Amount:      2000,
			Description: "Rent share",
			Date:        time.Date(2025, 4, 14-i, 10, 0, 0, 0, time.UTC),
			Origin:      OriginSynced,
		})
	}
	records = append(records, Transaction{ID: "m-x", Amount: 100, Description: "Settle up", Date: now, Origin: OriginManual})

	view := Summarize(records, Settings{BudgetLimit: 20000}, now)

	if view.Spent != 14000 || view.Remaining != 6000 || view.DailySafe != 375 {
		t.Fatalf("unexpected totals: %+v", view)
	}
	if view.RemainingDays != 16 || view.Month != "2025-04" {
		t.Fatalf("unexpected period fields: %+v", view)
	}
	if view.PercentRemaining != 30 || view.IsLow {
		t.Fatalf("percent = %v, low = %v", view.PercentRemaining, view.IsLow)
	}
	if len(view.Recent) != 5 || view.Recent[0].ID != "0" {
		t.Fatalf("recent = %+v", view.Recent)
	}
	if view.SpentToday != 0 {
		t.Fatalf("settlements must not count for today: %v", view.SpentToday)
	}

	over := Summarize(records, Settings{BudgetLimit: 10000}, now)
	if over.PercentRemaining != 0 || !over.IsLow || over.DailySafe != 0 {
		t.Fatalf("over budget view: %+v", over)
	}
	zero := Summarize(nil, Settings{BudgetLimit: 0}, now)
	if zero.PercentRemaining != 0 || !zero.IsLow {
		t.Fatalf("zero budget view: %+v", zero)
	}
}
