package stream

import "sync/atomic"

// Latest holds the most recent value of T. The zero value is empty.
type Latest[T any] struct {
	p atomic.Pointer[T]
}

// Store replaces the held value.
func (l *Latest[T]) Store(v T) {
	l.p.Store(&v)
}

// Load returns the held value, or nil if nothing was stored yet.
func (l *Latest[T]) Load() *T {
	p := l.p.Load()
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
