package core

import (
	"errors"
	"fmt"
)

// Error categories. Callers match them with errors.Is; concrete failures wrap
// one of these with fmt.Errorf("...: %w", ...).
var (
	ErrAuth       = errors.New("authentication failed")
	ErrNetwork    = errors.New("network failure")
	ErrParse      = errors.New("malformed persisted state")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("transaction not found")
)

var (
	ErrEmptyAmount        = fmt.Errorf("%w: empty amount", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: empty description", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, MaxDescriptionLength)
	ErrInvalidBudget      = fmt.Errorf("%w: budget limit must not be negative", ErrValidation)
)
