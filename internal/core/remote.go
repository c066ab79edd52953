package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// RemoteExpense is an expense as reported by the shared-expense service,
	// before any filtering.
	RemoteExpense struct {
		ID          int64
		Description string
		Date        time.Time
		DeletedAt   *time.Time
		Payment     bool
		Users       []RemoteShare
	}

	// RemoteShare is one participant's part of a remote expense. OwedShare
	// is kept as the decimal string the service sends.
	RemoteShare struct {
		UserID    int64
		OwedShare string
	}
)

// OwedShare returns userID's owed share of e. A missing participant or an
// unparsable share counts as zero.
func OwedShare(e RemoteExpense, userID int64) decimal.Decimal {
	for _, u := range e.Users {
		if u.UserID != userID {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(u.OwedShare))
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

// SkipReason explains why a remote expense does not become a transaction.
// The empty string means the expense is kept.
func SkipReason(e RemoteExpense, userID int64) string {
	switch {
	case e.DeletedAt != nil:
		return "deleted"
	case e.Payment:
		return "payment"
	case IsSettlement(e.Description):
		return "settlement"
	case OwedShare(e, userID).IsZero():
		return "zero_share"
	}
	return ""
}

// FilterRemote turns a remote batch into synced transactions for userID,
// dropping deleted expenses, payments, settlements and expenses where the
// user owes nothing.
func FilterRemote(expenses []RemoteExpense, userID int64) []Transaction {
	out := make([]Transaction, 0, len(expenses))
	for _, e := range expenses {
		if SkipReason(e, userID) != "" {
			continue
		}
		out = append(out, Transaction{
			ID:          RemoteID(e.ID),
			Amount:      OwedShare(e, userID).InexactFloat64(),
			Description: e.Description,
			Date:        e.Date,
			Origin:      OriginSynced,
		})
	}
	return out
}
