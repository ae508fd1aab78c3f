package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"northstar/internal/kvstore"
)

func getTestDBs(t *testing.T) map[string]*DB {
	t.Helper()
	ctx := context.Background()
	out := make(map[string]*DB)

	lite, err := Connect(ctx, SQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Connect(sqlite) error: %v", err)
	}
	if err := lite.Migrate(ctx); err != nil {
		t.Fatalf("Migrate(sqlite) error: %v", err)
	}
	t.Cleanup(func() { lite.Close() })
	out["sqlite"] = lite

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		pg, err := Connect(ctx, Postgres, dsn)
		if err != nil {
			t.Fatalf("Connect(postgres) error: %v", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			t.Fatalf("Migrate(postgres) error: %v", err)
		}
		pg.conn.Exec("DELETE FROM kv_nodes")
		t.Cleanup(func() {
			pg.conn.Exec("DELETE FROM kv_nodes")
			pg.Close()
		})
		out["postgres"] = pg
	}
	return out
}

func write(t *testing.T, d *DB, updates map[string]any) {
	t.Helper()
	normalized := make(map[string]any, len(updates))
	for p, v := range updates {
		n, err := kvstore.Normalize(v)
		if err != nil {
			t.Fatal(err)
		}
		normalized[p] = n
	}
	if err := d.WriteTree(context.Background(), normalized, nil); err != nil {
		t.Fatalf("WriteTree error: %v", err)
	}
}

func TestRebind(t *testing.T) {
	got := Postgres.Rebind(`SELECT 1 WHERE a = ? AND b = ?`)
	if got != `SELECT 1 WHERE a = $1 AND b = $2` {
		t.Errorf("Rebind = %q", got)
	}
	if got := SQLite.Rebind(`a = ?`); got != `a = ?` {
		t.Errorf("SQLite Rebind = %q", got)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	for name, d := range getTestDBs(t) {
		if err := d.Migrate(context.Background()); err != nil {
			t.Errorf("%s: second Migrate() error: %v", name, err)
		}
	}
}

func TestWriteReadTree(t *testing.T) {
	ctx := context.Background()
	for name, d := range getTestDBs(t) {
		write(t, d, map[string]any{
			"teams/t1/meta": map[string]any{"teamName": "One", "score": 10},
		})
		got, err := d.ReadTree(ctx, "teams/t1/meta")
		if err != nil {
			t.Fatalf("%s: ReadTree error: %v", name, err)
		}
		want := map[string]any{"teamName": "One", "score": float64(10)}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: meta = %v, want %v", name, got, want)
		}

		leaf, _ := d.ReadTree(ctx, "teams/t1/meta/score")
		if leaf != float64(10) {
			t.Errorf("%s: leaf = %v", name, leaf)
		}
	}
}

func TestWriteTree_OverwriteReplacesSubtree(t *testing.T) {
	ctx := context.Background()
	for name, d := range getTestDBs(t) {
		write(t, d, map[string]any{"a": map[string]any{"x": 1, "y": map[string]any{"z": 2}}})
		write(t, d, map[string]any{"a": map[string]any{"w": 3}})

		got, _ := d.ReadTree(ctx, "a")
		if !reflect.DeepEqual(got, map[string]any{"w": float64(3)}) {
			t.Errorf("%s: a = %v", name, got)
		}
	}
}

func TestWriteTree_ReplacesScalarAncestor(t *testing.T) {
	ctx := context.Background()
	for name, d := range getTestDBs(t) {
		write(t, d, map[string]any{"a": "scalar"})
		write(t, d, map[string]any{"a/b": true})

		got, _ := d.ReadTree(ctx, "a")
		if !reflect.DeepEqual(got, map[string]any{"b": true}) {
			t.Errorf("%s: a = %v", name, got)
		}
	}
}

func TestWriteTree_LikeWildcardsAreLiteral(t *testing.T) {
	ctx := context.Background()
	for name, d := range getTestDBs(t) {
		write(t, d, map[string]any{
			"q_1/x":  1,
			"qa1/x":  2,
			"q%2/x":  3,
			"q_1x/y": 4,
		})
		write(t, d, map[string]any{"q_1": nil})

		got, _ := d.ReadTree(ctx, "")
		want := map[string]any{
			"qa1":  map[string]any{"x": float64(2)},
			"q%2":  map[string]any{"x": float64(3)},
			"q_1x": map[string]any{"y": float64(4)},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: tree = %v, want %v", name, got, want)
		}
	}
}

func TestWriteTree_AtomicOnHookFailure(t *testing.T) {
	ctx := context.Background()
	for name, d := range getTestDBs(t) {
		updates := map[string]any{"a/x": float64(1), "b/y": float64(2)}
		err := d.WriteTree(ctx, updates, func(context.Context, *sql.Tx, []string) error {
			return context.Canceled
		})
		if err == nil {
			t.Fatalf("%s: expected hook error", name)
		}
		got, _ := d.ReadTree(ctx, "")
		if got != nil {
			t.Errorf("%s: tree = %v after rollback, want nil", name, got)
		}
	}
}
