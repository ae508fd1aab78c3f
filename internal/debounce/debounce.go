// Package debounce coalesces rapid writes to the same key into one trailing
// write. Each key owns a capacity-1 slot: producers replace its contents
// and a timer, re-armed on every push, drains it.
package debounce

import (
	"sync"
	"time"
)

type slot[V any] struct {
	pending chan V
	timer   *time.Timer
	writing sync.Mutex
}

type Debouncer[V any] struct {
	window time.Duration
	write  func(key string, v V)

	mu     sync.Mutex
	slots  map[string]*slot[V]
	closed bool
}

// New returns a Debouncer that calls write at most once per quiet window
// for each key, with the last value pushed.
func New[V any](window time.Duration, write func(key string, v V)) *Debouncer[V] {
	return &Debouncer[V]{
		window: window,
		write:  write,
		slots:  make(map[string]*slot[V]),
	}
}

// Push replaces the pending value for key and restarts its window.
func (d *Debouncer[V]) Push(key string, v V) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	s, ok := d.slots[key]
	if !ok {
		s = &slot[V]{pending: make(chan V, 1)}
		d.slots[key] = s
	}
	select {
	case <-s.pending:
	default:
	}
	s.pending <- v

	if s.timer == nil {
		s.timer = time.AfterFunc(d.window, func() { d.Flush(key) })
	} else {
		s.timer.Reset(d.window)
	}
}

// Flush writes the pending value for key now, if there is one, and reports
// whether it wrote. Writes for one key never overlap.
func (d *Debouncer[V]) Flush(key string) bool {
	d.mu.Lock()
	s, ok := d.slots[key]
	if ok && s.timer != nil {
		s.timer.Stop()
	}
	d.mu.Unlock()
	if !ok {
		return false
	}

	s.writing.Lock()
	defer s.writing.Unlock()
	select {
	case v := <-s.pending:
		d.write(key, v)
		return true
	default:
		return false
	}
}

// Drop discards the pending value for key without writing it. It waits for
// a write of key already in progress to finish.
func (d *Debouncer[V]) Drop(key string) {
	d.mu.Lock()
	s, ok := d.slots[key]
	if ok && s.timer != nil {
		s.timer.Stop()
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	s.writing.Lock()
	defer s.writing.Unlock()
	select {
	case <-s.pending:
	default:
	}
}

// Pending reports whether key has a value waiting to be written.
func (d *Debouncer[V]) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[key]
	return ok && len(s.pending) > 0
}

// Close flushes every pending value and drops later pushes.
func (d *Debouncer[V]) Close() {
	d.mu.Lock()
	d.closed = true
	keys := make([]string, 0, len(d.slots))
	for k := range d.slots {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	for _, k := range keys {
		d.Flush(k)
	}
}
