package kvstore

import (
	"reflect"
	"sync"
)

// mailbox delivers queued values to one callback, in order, on its own
// goroutine, so that publishers never run callbacks while holding locks.
type mailbox[T any] struct {
	mu      sync.Mutex
	queue   []T
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	deliver func(T)
}

func newMailbox[T any](deliver func(T)) *mailbox[T] {
	m := &mailbox[T]{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		deliver: deliver,
	}
	go m.run()
	return m
}

func (m *mailbox[T]) push(v T) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
}

func (m *mailbox[T]) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			if m.closed || len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			v := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			m.deliver(v)
		}
	}
}

type watch struct {
	path string
	box  *mailbox[any]
	last any
	seen bool
}

// Watched identifies one live subscription.
type Watched struct {
	ID   uint64
	Path string
}

// Fanout is the subscription registry shared by the store implementations.
// It de-duplicates unchanged values per subscription and tracks connection
// state listeners.
type Fanout struct {
	mu        sync.Mutex
	nextID    uint64
	watches   map[uint64]*watch
	conns     map[uint64]*mailbox[bool]
	connected bool
}

func NewFanout(connected bool) *Fanout {
	return &Fanout{
		watches:   make(map[uint64]*watch),
		conns:     make(map[uint64]*mailbox[bool]),
		connected: connected,
	}
}

// Watch registers fn for path. Nothing is delivered until the first Offer.
func (f *Fanout) Watch(path string, fn ValueFunc) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.watches[id] = &watch{
		path: Clean(path),
		box:  newMailbox(func(v any) { fn(v) }),
	}
	return id
}

// Unwatch removes a subscription. Safe to call more than once.
func (f *Fanout) Unwatch(id uint64) {
	f.mu.Lock()
	w, ok := f.watches[id]
	delete(f.watches, id)
	f.mu.Unlock()
	if ok {
		w.box.close()
	}
}

// Offer queues value for subscription id unless it equals the last value
// delivered. The first offer is always delivered.
func (f *Fanout) Offer(id uint64, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.watches[id]
	if !ok {
		return
	}
	if w.seen && reflect.DeepEqual(w.last, value) {
		return
	}
	w.seen = true
	w.last = Clone(value)
	w.box.push(Clone(value))
}

// Reset forgets the last delivered value so that the next Offer is always
// delivered. Used after reconnecting.
func (f *Fanout) Reset(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.watches[id]; ok {
		w.seen = false
	}
}

// Affected lists subscriptions whose path overlaps any written path.
func (f *Fanout) Affected(written ...string) []Watched {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Watched
	for id, w := range f.watches {
		for _, p := range written {
			if Overlaps(w.path, p) {
				out = append(out, Watched{ID: id, Path: w.path})
				break
			}
		}
	}
	return out
}

// All lists every live subscription.
func (f *Fanout) All() []Watched {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Watched, 0, len(f.watches))
	for id, w := range f.watches {
		out = append(out, Watched{ID: id, Path: w.path})
	}
	return out
}

// WatchConnection delivers the current state to fn and then every change.
func (f *Fanout) WatchConnection(fn ConnectionFunc) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	box := newMailbox(func(v bool) { fn(v) })
	f.conns[id] = box
	box.push(f.connected)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.conns, id)
		f.mu.Unlock()
		box.close()
	}
}

// SetConnected records a connection state and notifies listeners on change.
func (f *Fanout) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected == connected {
		return
	}
	f.connected = connected
	for _, box := range f.conns {
		box.push(connected)
	}
}

func (f *Fanout) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Close drops every subscription and connection listener.
func (f *Fanout) Close() {
	f.mu.Lock()
	watches := f.watches
	conns := f.conns
	f.watches = make(map[uint64]*watch)
	f.conns = make(map[uint64]*mailbox[bool])
	f.mu.Unlock()
	for _, w := range watches {
		w.box.close()
	}
	for _, c := range conns {
		c.close()
	}
}
