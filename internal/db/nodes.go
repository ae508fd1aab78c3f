package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"northstar/internal/kvstore"
)

// The tree is stored one row per scalar leaf, keyed by full path. Reading a
// subtree is a prefix scan; overwriting one deletes the old leaves (and any
// leaf sitting on an ancestor) before inserting the new ones.

// TxHook runs inside a write transaction after every path has been applied.
type TxHook func(ctx context.Context, tx *sql.Tx, paths []string) error

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ReadTree returns the subtree stored at p, nil when absent.
func (d *DB) ReadTree(ctx context.Context, p string) (any, error) {
	p = kvstore.Clean(p)
	var (
		rows *sql.Rows
		err  error
	)
	if p == "" {
		rows, err = d.conn.QueryContext(ctx, `SELECT path, value FROM kv_nodes`)
	} else {
		rows, err = d.conn.QueryContext(ctx, d.dialect.Rebind(
			`SELECT path, value FROM kv_nodes WHERE path = ? OR path LIKE ? ESCAPE '\'`),
			p, escapeLike(p)+"/%")
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", p, err)
	}
	defer rows.Close()

	leaves := make(map[string]any)
	for rows.Next() {
		var leafPath, raw string
		if err := rows.Scan(&leafPath, &raw); err != nil {
			return nil, fmt.Errorf("scanning leaf: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding leaf %q: %w", leafPath, err)
		}
		leaves[leafPath] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %q: %w", p, err)
	}
	return kvstore.Unflatten(p, leaves), nil
}

// WriteTree overwrites each path in updates inside one transaction. Values
// must already be normalized and paths must not overlap.
func (d *DB) WriteTree(ctx context.Context, updates map[string]any, hook TxHook) (retErr error) {
	paths, err := kvstore.SortedPaths(updates)
	if err != nil {
		return err
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range paths {
		if err := d.writePath(ctx, tx, p, updates[p]); err != nil {
			return err
		}
	}
	if hook != nil {
		if err := hook(ctx, tx, paths); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (d *DB) writePath(ctx context.Context, tx *sql.Tx, p string, v any) error {
	if p == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_nodes`); err != nil {
			return fmt.Errorf("clearing tree: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, d.dialect.Rebind(
			`DELETE FROM kv_nodes WHERE path = ? OR path LIKE ? ESCAPE '\'`),
			p, escapeLike(p)+"/%"); err != nil {
			return fmt.Errorf("clearing %q: %w", p, err)
		}
		for _, a := range kvstore.Ancestors(p) {
			if _, err := tx.ExecContext(ctx, d.dialect.Rebind(
				`DELETE FROM kv_nodes WHERE path = ?`), a); err != nil {
				return fmt.Errorf("clearing ancestor %q: %w", a, err)
			}
		}
	}

	for leafPath, leaf := range kvstore.Flatten(p, v) {
		raw, err := json.Marshal(leaf)
		if err != nil {
			return fmt.Errorf("encoding leaf %q: %w", leafPath, err)
		}
		if _, err := tx.ExecContext(ctx, d.dialect.Rebind(
			`INSERT INTO kv_nodes (path, value) VALUES (?, ?)
			 ON CONFLICT (path) DO UPDATE SET value = excluded.value`),
			leafPath, string(raw)); err != nil {
			return fmt.Errorf("writing leaf %q: %w", leafPath, err)
		}
	}
	return nil
}
