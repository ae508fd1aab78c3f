package kvstore

import (
	"context"
	"sync"
)

// Tree is an in-process Store. The relay serves one when no database is
// configured, and tests use it as a stand-in for the remote backend.
type Tree struct {
	mu     sync.Mutex
	root   any
	fanout *Fanout
	closed bool
}

var _ Store = (*Tree)(nil)

func NewTree() *Tree {
	return &Tree{fanout: NewFanout(true)}
}

// SetConnected simulates losing or regaining the backend. While
// disconnected every operation fails with ErrUnavailable.
func (t *Tree) SetConnected(connected bool) {
	t.fanout.SetConnected(connected)
}

func (t *Tree) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed {
		return ErrClosed
	}
	if !t.fanout.Connected() {
		return ErrUnavailable
	}
	return nil
}

func (t *Tree) Get(ctx context.Context, path string) (any, error) {
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	return Clone(Lookup(t.root, segs)), nil
}

func (t *Tree) Set(ctx context.Context, path string, value any) error {
	return t.MultiPathUpdate(ctx, map[string]any{Clean(path): value})
}

func (t *Tree) Update(ctx context.Context, path string, fields Object) error {
	updates, err := Expand(path, fields)
	if err != nil {
		return err
	}
	return t.MultiPathUpdate(ctx, updates)
}

func (t *Tree) Remove(ctx context.Context, path string) error {
	return t.Set(ctx, path, nil)
}

func (t *Tree) MultiPathUpdate(ctx context.Context, updates map[string]any) error {
	paths, err := SortedPaths(updates)
	if err != nil {
		return err
	}
	normalized := make(map[string]any, len(paths))
	for _, p := range paths {
		v, err := Normalize(updates[p])
		if err != nil {
			return err
		}
		normalized[p] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return err
	}
	for _, p := range paths {
		segs, _ := Split(p)
		t.root = Put(t.root, segs, Clone(normalized[p]))
	}
	// Offers are queued under t.mu so every subscriber sees writes in
	// commit order.
	for _, w := range t.fanout.Affected(paths...) {
		segs, _ := Split(w.Path)
		t.fanout.Offer(w.ID, Lookup(t.root, segs))
	}
	return nil
}

func (t *Tree) Subscribe(path string, fn ValueFunc) (func(), error) {
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	id := t.fanout.Watch(path, fn)
	t.fanout.Offer(id, Lookup(t.root, segs))
	return func() { t.fanout.Unwatch(id) }, nil
}

func (t *Tree) SubscribeConnectionState(fn ConnectionFunc) func() {
	return t.fanout.WatchConnection(fn)
}

// Close stops all deliveries. Further operations fail with ErrClosed.
func (t *Tree) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.fanout.Close()
	return nil
}
