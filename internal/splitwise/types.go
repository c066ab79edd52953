package splitwise

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"nettracker/internal/core"
)

type currentUserResponse struct {
	User struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

type expensesResponse struct {
	Expenses []expense `json:"expenses"`
}

type expense struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	DeletedAt   *time.Time `json:"deleted_at"`
	Payment     bool       `json:"payment"`
	Users       []share    `json:"users"`
}

type share struct {
	UserID    int64  `json:"user_id"`
	OwedShare amount `json:"owed_share"`
}

// amount is a decimal the API sends as a string. Bare numbers and null are
// tolerated.
type amount string

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("owed_share: %w", err)
		}
		*a = amount(n.String())
	}
	return nil
}

func (e expense) toCore() core.RemoteExpense {
	users := make([]core.RemoteShare, len(e.Users))
	for i, u := range e.Users {
		users[i] = core.RemoteShare{UserID: u.UserID, OwedShare: string(u.OwedShare)}
	}
	return core.RemoteExpense{
		ID:          e.ID,
		Description: e.Description,
		Date:        e.Date,
		DeletedAt:   e.DeletedAt,
		Payment:     e.Payment,
		Users:       users,
	}
}
