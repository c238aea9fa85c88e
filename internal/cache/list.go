// Package cache holds the client-side copies of server resource lists.
//
// A List is trusted until the next explicit fetch replaces it; there is no
// expiry. Local mutations mirror successful server writes so a write does not
// need a refetch.
package cache

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/metrics"
)

// Identified is a record with a server-assigned id.
type Identified interface {
	RecordID() domain.ID
}

// List is an ordered, concurrency-safe cache of records.
type List[T Identified] struct {
	resource string
	metrics  *metrics.Metrics

	mu        sync.RWMutex
	items     []T
	fetchedAt time.Time
}

// NewList creates an empty list. resource labels the cache size gauge.
func NewList[T Identified](resource string, m *metrics.Metrics) *List[T] {
	return &List[T]{resource: resource, metrics: m}
}

// Set replaces the whole list with a fresh server response.
func (l *List[T]) Set(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)

	l.mu.Lock()
	l.items = cp
	l.fetchedAt = time.Now()
	n := len(l.items)
	l.mu.Unlock()

	l.metrics.SetCacheSize(l.resource, n)
}

// Items returns a copy of the cached records in order.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of cached records.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Loaded reports whether Set has been called.
func (l *List[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.fetchedAt.IsZero()
}

// FetchedAt returns when the list was last replaced.
func (l *List[T]) FetchedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fetchedAt
}

// Prepend inserts item at the head.
func (l *List[T]) Prepend(item T) {
	l.mu.Lock()
	l.items = append([]T{item}, l.items...)
	n := len(l.items)
	l.mu.Unlock()

	l.metrics.SetCacheSize(l.resource, n)
}

// Append inserts item at the tail.
func (l *List[T]) Append(item T) {
	l.mu.Lock()
	l.items = append(l.items, item)
	n := len(l.items)
	l.mu.Unlock()

	l.metrics.SetCacheSize(l.resource, n)
}

// Replace swaps the record with item's id for item. It reports whether one was found.
func (l *List[T]) Replace(item T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := item.RecordID()
	for i := range l.items {
		if l.items[i].RecordID() == id {
			l.items[i] = item
			return true
		}
	}
	return false
}

// Remove deletes the record with id and returns it.
func (l *List[T]) Remove(id domain.ID) (T, bool) {
	l.mu.Lock()
	var (
		removed T
		found   bool
	)
	for i := range l.items {
		if l.items[i].RecordID() == id {
			removed = l.items[i]
			found = true
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			break
		}
	}
	n := len(l.items)
	l.mu.Unlock()

	if found {
		l.metrics.SetCacheSize(l.resource, n)
	}
	return removed, found
}

// Find returns the record with id.
func (l *List[T]) Find(id domain.ID) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if item.RecordID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns the records for which keep is true.
func (l *List[T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []T
	for _, item := range l.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Mutate applies fn to every record in place.
func (l *List[T]) Mutate(fn func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		fn(&l.items[i])
	}
}

// Clear empties the list and marks it unloaded.
func (l *List[T]) Clear() {
	l.mu.Lock()
	l.items = nil
	l.fetchedAt = time.Time{}
	l.mu.Unlock()

	l.metrics.SetCacheSize(l.resource, 0)
}
