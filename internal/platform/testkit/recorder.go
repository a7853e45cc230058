package testkit

import (
	"context"
	"sync"
	"time"
)

// Recorder collects values handed to Record. Record has the shape of a
// message handler, so messaging.HandlerFunc(rec.Record) subscribes it.
type Recorder[T any] struct {
	mu     sync.Mutex
	items  []T
	err    error
	notify chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{notify: make(chan struct{}, 1)}
}

// Record stores v and returns the configured error, if any.
func (r *Recorder[T]) Record(_ context.Context, v T) error {
	r.mu.Lock()
	r.items = append(r.items, v)
	err := r.err
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return err
}

// FailWith makes subsequent Record calls return err.
func (r *Recorder[T]) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Items returns a copy of everything recorded so far.
func (r *Recorder[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

// Len reports how many values were recorded.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// WaitFor blocks until at least n values arrived or timeout elapsed.
func (r *Recorder[T]) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Len() >= n
		}
	}
}
