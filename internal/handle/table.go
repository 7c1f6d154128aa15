// Package handle maps opaque integer handles to Go values so that callers
// on the other side of an API boundary never hold Go pointers.
package handle

import "sync"

// Handle is an opaque reference into a Table. Zero is never issued.
type Handle uint64

// Table is a concurrency-safe registry of live values.
type Table[T any] struct {
	mu    sync.RWMutex
	next  Handle
	items map[Handle]T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[Handle]T)}
}

// Put stores v and returns its new handle.
func (t *Table[T]) Put(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next
	t.items[h] = v
	return h
}

// Get returns the value for h.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.items[h]
	return v, ok
}

// Take removes h and returns its value. Taking an unknown handle reports
// false.
func (t *Table[T]) Take(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return v, ok
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
