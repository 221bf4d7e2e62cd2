package mocks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// Capture records the argument at a given position of a mocked call so the
// test can drive the registered callback afterwards.
type Capture[T any] struct {
	mu    sync.Mutex
	index int
	items []T
	added chan struct{}
}

// NewCapture captures argument index of each matching call.
func NewCapture[T any](index int) *Capture[T] {
	return &Capture[T]{index: index, added: make(chan struct{}, 64)}
}

// Run is passed to mock.Call.Run.
func (c *Capture[T]) Run(args mock.Arguments) {
	c.mu.Lock()
	c.items = append(c.items, args.Get(c.index).(T))
	c.mu.Unlock()
	c.added <- struct{}{}
}

// Wait blocks until the n-th captured value (1-based) is available and returns it.
func (c *Capture[T]) Wait(t *testing.T, n int) T {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		c.mu.Lock()
		if len(c.items) >= n {
			v := c.items[n-1]
			c.mu.Unlock()
			return v
		}
		c.mu.Unlock()
		select {
		case <-c.added:
		case <-deadline:
			t.Fatalf("argument %d captured %d times, want %d", c.index, c.Len(), n)
		}
	}
}

// Len returns the number of captured values.
func (c *Capture[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
