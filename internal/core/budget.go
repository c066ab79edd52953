package core

import "time"

const (
	recentLimit      = 5
	lowBudgetPercent = 20
)

// BudgetView is the derived monthly picture shown to the user.
type BudgetView struct {
	Period           Period        `json:"-"`
	Month            string        `json:"month"`
	BudgetLimit      float64       `json:"budgetLimit"`
	Spent            float64       `json:"spent"`
	SpentToday       float64       `json:"spentToday"`
	Remaining        float64       `json:"remaining"`
	RemainingDays    int           `json:"remainingDays"`
	DailySafe        float64       `json:"dailySafe"`
	PercentRemaining float64       `json:"percentRemaining"`
	IsLow            bool          `json:"isLow"`
	Recent           []Transaction `json:"recent"`
}

// PeriodTotal sums the amounts of non-settlement records dated in p.
func PeriodTotal(records []Transaction, p Period) float64 {
	return sumAmounts(records, func(t Transaction) bool {
		return p.Contains(t.Date) && !t.IsSettlement()
	})
}

// TodayTotal sums the amounts of non-settlement records dated on now's
// calendar day.
func TodayTotal(records []Transaction, now time.Time) float64 {
	return sumAmounts(records, func(t Transaction) bool {
		return IsToday(t.Date, now) && !t.IsSettlement()
	})
}

// RemainingDays counts the days left in now's month, today included, and is
// never less than one.
func RemainingDays(now time.Time) int {
	days := DaysInMonth(now) - now.Day() + 1
	if days < 1 {
		return 1
	}
	return days
}

// DailySafeToSpend spreads what is left of the budget evenly over the
// remaining days of the month, rounded to a whole unit and floored at zero.
func DailySafeToSpend(budgetLimit, periodTotal float64, now time.Time) float64 {
	perDay := roundHalfUp((budgetLimit - periodTotal) / float64(RemainingDays(now)))
	if perDay < 0 {
		return 0
	}
	return perDay
}

// MonthlyTransactions returns the non-settlement records dated in p, in
// store order.
func MonthlyTransactions(records []Transaction, p Period) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range records {
		if p.Contains(t.Date) && !t.IsSettlement() {
			out = append(out, t)
		}
	}
	return out
}

// Summarize builds the budget view for now's period.
func Summarize(records []Transaction, settings Settings, now time.Time) BudgetView {
	p := PeriodOf(now)
	spent := PeriodTotal(records, p)
	remaining := settings.BudgetLimit - spent

	percent := 0.0
	if settings.BudgetLimit > 0 {
		percent = remaining * 100 / settings.BudgetLimit
	}
	percent = min(max(percent, 0), 100)

	monthly := MonthlyTransactions(records, p)
	recent := monthly
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return BudgetView{
		Period:           p,
		Month:            p.String(),
		BudgetLimit:      settings.BudgetLimit,
		Spent:            spent,
		SpentToday:       TodayTotal(records, now),
		Remaining:        remaining,
		RemainingDays:    RemainingDays(now),
		DailySafe:        DailySafeToSpend(settings.BudgetLimit, spent, now),
		PercentRemaining: percent,
		IsLow:            percent < lowBudgetPercent,
		Recent:           recent,
	}
}
