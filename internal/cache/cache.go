// Package cache provides a small in-process cache with TTL expiry.
package cache

import "time"

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Nop is a Cache that never stores anything. It stands in when caching is
// disabled.
type Nop[T any] struct{}

func (Nop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}
func (Nop[T]) Set(string, T) {}
func (Nop[T]) Delete(string) {}
func (Nop[T]) Size() int     { return 0 }

// New returns an LRU cache, or a Nop cache when ttl is not positive.
func New[T any](maxSize int, ttl time.Duration) Cache[T] {
	if ttl <= 0 || maxSize <= 0 {
		return Nop[T]{}
	}
	return NewLRUCache[T](maxSize, ttl)
}
