package core

import "strings"

const settlementKeyword = "settle"

// IsSettlement reports whether a description marks a debt settlement between
// participants rather than real spending. Matching is a case-insensitive
// substring test.
func IsSettlement(description string) bool {
	return strings.Contains(strings.ToLower(description), settlementKeyword)
}

// IsSettlement reports whether the record is a settlement.
func (t Transaction) IsSettlement() bool {
	return IsSettlement(t.Description)
}
