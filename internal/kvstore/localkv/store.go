// Package localkv is the per-device fallback store: a SQLite file holding
// the same tree the remote backend would, without live subscriptions.
package localkv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"northstar/internal/db"
	"northstar/internal/kvstore"
	"northstar/internal/metrics"
)

const defaultPath = "northstar-local.db"

type Store struct {
	db   *db.DB
	path string
}

var _ kvstore.PointStore = (*Store)(nil)

// Open creates or opens the local store at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	d, err := db.Connect(ctx, db.SQLite, path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps SQLite from reporting SQLITE_BUSY under
	// concurrent goroutines.
	d.Conn().SetMaxOpenConns(1)
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return &Store{db: d, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(ctx context.Context, path string) (any, error) {
	if _, err := kvstore.Split(path); err != nil {
		return nil, err
	}
	return s.db.ReadTree(ctx, path)
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
	err := s.db.WriteTree(ctx, normalized, nil)
	metrics.ObserveWrite("local", err)
	return err
}
