// Package storage persists the budget state as JSON documents in a small
// key-value store.
package storage

import "context"

// KV is the persistence collaborator behind Store. Get reports ok=false for
// an absent key; only backend failures are returned as errors.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
