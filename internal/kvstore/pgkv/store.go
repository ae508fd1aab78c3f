// Package pgkv is the remote backend on PostgreSQL. Writes commit as one
// transaction per call and announce every written path with NOTIFY; a
// pq.Listener turns those announcements into path-scoped subscription
// deliveries and its connection events into connection-state callbacks.
package pgkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"northstar/internal/db"
	"northstar/internal/kvstore"
	"northstar/internal/metrics"
)

const (
	changeChannel        = "kv_changes"
	minReconnectInterval = 200 * time.Millisecond
	maxReconnectInterval = 10 * time.Second
	pingInterval         = 90 * time.Second
	refreshTimeout       = 5 * time.Second
)

type Store struct {
	db       *db.DB
	listener *pq.Listener
	fanout   *kvstore.Fanout
	resync   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

var _ kvstore.Store = (*Store)(nil)

// Open connects, applies migrations and starts listening for changes.
func Open(ctx context.Context, dsn string) (*Store, error) {
	d, err := db.Connect(ctx, db.Postgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kvstore.ErrUnavailable, err)
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	s := &Store{
		db:     d,
		fanout: kvstore.NewFanout(false),
		resync: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.listener = pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, s.onListenerEvent)
	if err := s.listener.Listen(changeChannel); err != nil {
		s.listener.Close()
		d.Close()
		return nil, fmt.Errorf("listen %s: %w", changeChannel, err)
	}
	s.fanout.SetConnected(true)

	s.wg.Add(1)
	go s.dispatch()
	return s, nil
}

func (s *Store) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		s.fanout.SetConnected(true)
	case pq.ListenerEventReconnected:
		log.Println("[KV] Postgres listener reconnected")
		s.fanout.SetConnected(true)
		select {
		case s.resync <- struct{}{}:
		default:
		}
	case pq.ListenerEventDisconnected:
		log.Printf("[KV] Postgres listener disconnected: %v\n", err)
		s.fanout.SetConnected(false)
	case pq.ListenerEventConnectionAttemptFailed:
		log.Printf("[KV] Postgres listener reconnect failed: %v\n", err)
	}
}

func (s *Store) dispatch() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case n := <-s.listener.Notify:
			// pq sends nil after re-establishing the connection; anything
			// announced while it was down is lost, so re-read everything.
			if n == nil {
				s.refresh(s.fanout.All())
				continue
			}
			s.refresh(s.fanout.Affected(n.Extra))
		case <-s.resync:
			s.refresh(s.fanout.All())
		case <-ticker.C:
			go s.listener.Ping()
		}
	}
}

func (s *Store) refresh(watched []kvstore.Watched) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	for _, w := range watched {
		v, err := s.db.ReadTree(ctx, w.Path)
		if err != nil {
			log.Printf("[KV] refresh %q: %v\n", w.Path, err)
			continue
		}
		s.fanout.Offer(w.ID, v)
	}
}

func (s *Store) Get(ctx context.Context, path string) (any, error) {
	if _, err := kvstore.Split(path); err != nil {
		return nil, err
	}
	v, err := s.db.ReadTree(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kvstore.ErrUnavailable, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.MultiPathUpdate(ctx, map[string]any{kvstore.Clean(path): value})
}

func (s *Store) Update(ctx context.Context, path string, fields kvstore.Object) error {
	updates, err := kvstore.Expand(path, fields)
	if err != nil {
		return err
	}
	return s.MultiPathUpdate(ctx, updates)
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) MultiPathUpdate(ctx context.Context, updates map[string]any) error {
	normalized := make(map[string]any, len(updates))
	for p, v := range updates {
		n, err := kvstore.Normalize(v)
		if err != nil {
			return err
		}
		normalized[kvstore.Clean(p)] = n
	}
	if _, err := kvstore.SortedPaths(normalized); err != nil {
		return err
	}
	err := s.db.WriteTree(ctx, normalized, announce)
	metrics.ObserveWrite("postgres", err)
	if err != nil {
		return fmt.Errorf("%w: %v", kvstore.ErrUnavailable, err)
	}
	return nil
}

// announce queues one notification per written path. Postgres delivers them
// only if the transaction commits.
func announce(ctx context.Context, tx *sql.Tx, paths []string) error {
	for _, p := range paths {
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, p); err != nil {
			return fmt.Errorf("notify %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Subscribe(path string, fn kvstore.ValueFunc) (func(), error) {
	if _, err := kvstore.Split(path); err != nil {
		return nil, err
	}
	select {
	case <-s.done:
		return nil, kvstore.ErrClosed
	default:
	}
	id := s.fanout.Watch(path, fn)
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	v, err := s.db.ReadTree(ctx, path)
	if err != nil {
		s.fanout.Unwatch(id)
		return nil, fmt.Errorf("%w: %v", kvstore.ErrUnavailable, err)
	}
	s.fanout.Offer(id, v)
	return func() { s.fanout.Unwatch(id) }, nil
}

func (s *Store) SubscribeConnectionState(fn kvstore.ConnectionFunc) func() {
	return s.fanout.WatchConnection(fn)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close stops the listener and releases the pool.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.fanout.Close()
		err = errors.Join(s.listener.Close(), s.db.Close())
	})
	return err
}
