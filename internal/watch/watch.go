// Package watch holds latest-value slots: one writer stores, any number of
// readers load the current value or wait for the next change. Writers never
// block on readers and readers never see a queue of stale values.
package watch

import "sync"

type Value[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Watch returns the current value together with a channel that is closed on
// the next Store.
func (v *Value[T]) Watch() (T, <-chan struct{}) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.changed
}

// Version counts stores since creation.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Store replaces the value and wakes every waiting reader.
func (v *Value[T]) Store(value T) {
	v.mu.Lock()
	v.value = value
	v.version++
	close(v.changed)
	v.changed = make(chan struct{})
	v.mu.Unlock()
}
