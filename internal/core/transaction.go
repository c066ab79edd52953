package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OriginManual Origin = "manual"
	OriginSynced Origin = "synced"

	// legacyOriginRemote is the "type" value older stored records used for
	// imported expenses.
	legacyOriginRemote = "splitwise"

	manualIDPrefix = "m-"

	MaxDescriptionLength = 200

	DefaultBudgetLimit = 20000
)

type (
	Origin string

	// TransactionID identifies a record in the store. Manual ids carry the
	// "m-" prefix; synced ids are the remote service's numeric id.
	TransactionID string

	Transaction struct {
		ID          TransactionID `json:"id"`
		Amount      float64       `json:"amount"`
		Description string        `json:"description"`
		Date        time.Time     `json:"date"`
		Origin      Origin        `json:"origin"`
	}

	Settings struct {
		BudgetLimit float64 `json:"budgetLimit"`
		APIKey      string  `json:"apiKey"`
	}
)

// NewManualID returns a fresh id in the manual id space.
func NewManualID() TransactionID {
	return TransactionID(manualIDPrefix + uuid.NewString())
}

// RemoteID maps a remote expense id into the synced id space.
func RemoteID(id int64) TransactionID {
	return TransactionID(strconv.FormatInt(id, 10))
}

// IsManual reports whether the id belongs to the manual id space.
func (id TransactionID) IsManual() bool {
	return strings.HasPrefix(string(id), manualIDPrefix)
}

// UnmarshalJSON accepts both string ids and the numeric ids written by
// older versions of the store.
func (id *TransactionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TransactionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	*id = TransactionID(n.String())
	return nil
}

func (o Origin) Valid() bool {
	return o == OriginManual || o == OriginSynced
}

// UnmarshalJSON reads the current shape and the legacy one, where the
// origin lived under "type" and imported records were tagged "splitwise".
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var raw struct {
		plain
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction(raw.plain)
	if t.Origin == "" {
		if raw.Type == legacyOriginRemote || raw.Type == string(OriginSynced) {
			t.Origin = OriginSynced
		} else {
			t.Origin = OriginManual
		}
	}
	return nil
}

// Validate checks a manually entered record.
func (t Transaction) Validate() error {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	if !t.Origin.Valid() {
		return fmt.Errorf("%w: unknown origin %q", ErrValidation, t.Origin)
	}
	return nil
}

// NewManualTransaction validates user input and builds a manual record dated
// at now.
func NewManualTransaction(amount, description string, now time.Time) (Transaction, error) {
	if strings.TrimSpace(amount) == "" {
		return Transaction{}, ErrEmptyAmount
	}
	if strings.TrimSpace(description) == "" {
		return Transaction{}, ErrEmptyDescription
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		ID:          NewManualID(),
		Amount:      value,
		Description: strings.TrimSpace(description),
		Date:        now,
		Origin:      OriginManual,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// DefaultSettings returns the settings used when nothing has been stored yet.
func DefaultSettings() Settings {
	return Settings{BudgetLimit: DefaultBudgetLimit}
}

func (s Settings) Validate() error {
	if s.BudgetLimit < 0 {
		return ErrInvalidBudget
	}
	return nil
}

// HasCredential reports whether a remote API key is configured.
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.APIKey) != ""
}
