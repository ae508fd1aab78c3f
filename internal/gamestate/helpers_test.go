package gamestate

import (
	"context"
	"sync"
	"testing"
	"time"

	"northstar/internal/events"
	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
	"northstar/internal/retry"
	"northstar/internal/session"
)

// flakyStore fails writes and reads on demand. A negative count fails
// forever.
type flakyStore struct {
	*kvstore.Tree
	mu         sync.Mutex
	failWrites int
	failReads  int
	writes     int
}

func newFlaky() *flakyStore {
	return &flakyStore{Tree: kvstore.NewTree()}
}

func (f *flakyStore) take(n *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *n == 0 {
		return false
	}
	if *n > 0 {
		*n--
	}
	return true
}

func (f *flakyStore) setFailures(writes, reads int) {
	f.mu.Lock()
	f.failWrites, f.failReads = writes, reads
	f.mu.Unlock()
}

func (f *flakyStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *flakyStore) Get(ctx context.Context, path string) (any, error) {
	if f.take(&f.failReads) {
		return nil, kvstore.ErrUnavailable
	}
	return f.Tree.Get(ctx, path)
}

func (f *flakyStore) MultiPathUpdate(ctx context.Context, updates map[string]any) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	if f.take(&f.failWrites) {
		return kvstore.ErrUnavailable
	}
	return f.Tree.MultiPathUpdate(ctx, updates)
}

func (f *flakyStore) Set(ctx context.Context, path string, v any) error {
	return f.MultiPathUpdate(ctx, map[string]any{kvstore.Clean(path): v})
}

func (f *flakyStore) Update(ctx context.Context, path string, fields kvstore.Object) error {
	updates, err := kvstore.Expand(path, fields)
	if err != nil {
		return err
	}
	return f.MultiPathUpdate(ctx, updates)
}

func (f *flakyStore) Remove(ctx context.Context, path string) error {
	return f.Set(ctx, path, nil)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testOptions(clock *fakeClock, bus *events.Bus) Options {
	return Options{
		Config:     gamedata.DefaultConfig(),
		Retry:      retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		EchoWindow: DefaultEchoWindow,
		Bus:        bus,
		Clock:      clock.Now,
	}
}

func newPlayer(t *testing.T, id string, remote kvstore.Store, opts Options) *Store {
	t.Helper()
	s := New(session.Session{PlayerID: id}, remote, kvstore.NewTree(), opts)
	t.Cleanup(s.Close)
	return s
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle gives asynchronous subscription deliveries time to land.
func settle() {
	time.Sleep(50 * time.Millisecond)
}
