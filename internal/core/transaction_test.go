package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewManualTransaction(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	got, err := NewManualTransaction("12,50", "  Coffee  ", now)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got.Amount != 12.5 || got.Description != "Coffee" || !got.Date.Equal(now) {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Origin != OriginManual {
		t.Fatalf("origin = %q, want manual", got.Origin)
	}
	if !got.ID.IsManual() {
		t.Fatalf("id %q is not in the manual id space", got.ID)
	}

	cases := []struct {
		amount, desc string
		want         error
	}{
		{"", "Coffee", ErrEmptyAmount},
		{"5", "", ErrEmptyDescription},
		{"5", "   ", ErrEmptyDescription},
		{"abc", "Coffee", ErrInvalidAmount},
		{"0", "Coffee", ErrInvalidAmount},
		{"5", strings.Repeat("x", MaxDescriptionLength+1), ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		_, err := NewManualTransaction(tc.amount, tc.desc, now)
		if !errors.Is(err, tc.want) {
			t.Errorf("(%q, %q): expected %v, got %v", tc.amount, tc.desc, tc.want, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("(%q, %q): expected a validation error, got %v", tc.amount, tc.desc, err)
		}
	}
}

func TestManualAndRemoteIDsAreDisjoint(t *testing.T) {
	seen := map[TransactionID]bool{}
	for i := 0; i < 100; i++ {
		id := NewManualID()
		if seen[id] {
			t.Fatalf("duplicate manual id %q", id)
		}
		seen[id] = true
	}
	for _, n := range []int64{0, 1, 42, 1733000000000} {
		id := RemoteID(n)
		if id.IsManual() {
			t.Fatalf("remote id %q classified as manual", id)
		}
		if seen[id] {
			t.Fatalf("remote id %q collides with a manual id", id)
		}
	}
}

func TestTransactionJSON(t *testing.T) {
	in := Transaction{
		ID:          "m-abc",
		Amount:      12.5,
		Description: "Lunch",
		Date:        time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
		Origin:      OriginManual,
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"amount":12.5`) {
		t.Fatalf("amount must be a plain number: %s", data)
	}
	if !strings.Contains(string(data), `"origin":"manual"`) {
		t.Fatalf("origin missing: %s", data)
	}

	var out Transaction
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID || out.Amount != in.Amount || out.Description != in.Description ||
		!out.Date.Equal(in.Date) || out.Origin != in.Origin {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestTransactionUnmarshalLegacy(t *testing.T) {
	cases := []struct {
		name       string
		payload    string
		wantID     TransactionID
		wantOrigin Origin
	}{
		{
			name:       "legacy manual record with numeric id",
			payload:    `{"id":1733000000000,"amount":25,"description":"Taxi","date":"2025-01-05T10:00:00.000Z","type":"manual"}`,
			wantID:     "1733000000000",
			wantOrigin: OriginManual,
		},
		{
			name:       "legacy imported record",
			payload:    `{"id":3456,"amount":10.5,"description":"Dinner","date":"2025-01-04T19:00:00Z","type":"splitwise"}`,
			wantID:     "3456",
			wantOrigin: OriginSynced,
		},
		{
			name:       "legacy record without type",
			payload:    `{"id":1,"amount":1,"description":"x","date":"2025-01-04T19:00:00Z"}`,
			wantID:     "1",
			wantOrigin: OriginManual,
		},
		{
			name:       "current shape",
			payload:    `{"id":"m-1","amount":1,"description":"x","date":"2025-01-04T19:00:00Z","origin":"synced"}`,
			wantID:     "m-1",
			wantOrigin: OriginSynced,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Transaction
			if err := json.Unmarshal([]byte(tc.payload), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.ID != tc.wantID {
				t.Errorf("id = %q, want %q", got.ID, tc.wantID)
			}
			if got.Origin != tc.wantOrigin {
				t.Errorf("origin = %q, want %q", got.Origin, tc.wantOrigin)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if DefaultSettings().BudgetLimit != 20000 {
		t.Fatalf("default budget = %v", DefaultSettings().BudgetLimit)
	}
	if err := (Settings{BudgetLimit: -1}).Validate(); !errors.Is(err, ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
	if (Settings{APIKey: "  "}).HasCredential() {
		t.Fatalf("blank key should not count as a credential")
	}
}
