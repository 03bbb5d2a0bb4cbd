// Package ringlog provides a fixed-capacity, concurrency-safe log that keeps
// the most recent items and silently drops the oldest once full.
//
// Snapshots are always copies, ordered oldest to newest, so readers never see
// the backing array while writers are appending.
//
// # Example
//
//	l, err := ringlog.New[string](3)
//	if err != nil {
//	    return err
//	}
//	for _, s := range []string{"a", "b", "c", "d"} {
//	    l.Add(s)
//	}
//	l.Snapshot() // [b c d]
package ringlog

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidCapacity is returned when a log is created with a capacity below one.
var ErrInvalidCapacity = errors.New("ring log capacity must be at least 1")

// Log is a bounded history of items.
type Log[T any] struct {
	mu      sync.RWMutex
	items   []T // protected by mu
	head    int // index of the oldest item, protected by mu
	size    int // protected by mu
	onEvict func(T)
}

// Option configures a Log.
type Option[T any] func(*Log[T])

// WithEvictHook registers a function called with every item pushed out of the
// log. The hook runs after the log's lock is released.
func WithEvictHook[T any](hook func(T)) Option[T] {
	return func(l *Log[T]) {
		l.onEvict = hook
	}
}

// New creates a log holding at most capacity items.
func New[T any](capacity int, opts ...Option[T]) (*Log[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	l := &Log[T]{
		items: make([]T, capacity),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Add appends item as the newest entry, evicting the oldest one when the log is full.
func (l *Log[T]) Add(item T) {
	evicted, ok := l.add(item)
	if ok && l.onEvict != nil {
		l.onEvict(evicted)
	}
}

func (l *Log[T]) add(item T) (evicted T, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.items)
	if l.size < capacity {
		l.items[(l.head+l.size)%capacity] = item
		l.size++
		return evicted, false
	}

	// Full: the slot of the oldest item becomes the newest.
	evicted = l.items[l.head]
	l.items[l.head] = item
	l.head = (l.head + 1) % capacity
	return evicted, true
}

// Snapshot returns a copy of the current items, oldest first.
func (l *Log[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]T, l.size)
	capacity := len(l.items)
	for i := 0; i < l.size; i++ {
		result[i] = l.items[(l.head+i)%capacity]
	}
	return result
}

// Len returns the number of items currently held.
func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Cap returns the fixed capacity of the log.
func (l *Log[T]) Cap() int {
	return len(l.items)
}
