package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Dialect captures the differences between the SQL backends that hold the
// game tree.
type Dialect struct {
	Name       string
	Driver     string
	numbered   bool // $1, $2 placeholders instead of ?
	migrations string
}

var (
	Postgres = Dialect{Name: "PostgreSQL", Driver: "postgres", numbered: true, migrations: "migrations/postgres"}
	SQLite   = Dialect{Name: "SQLite", Driver: "sqlite", migrations: "migrations/sqlite"}
)

// Rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// Connect opens and pings the database. The caller must import the driver
// for d.Driver.
func Connect(ctx context.Context, d Dialect, dsn string) (*DB, error) {
	conn, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	log.Printf("[DB] Connected to %s\n", d.Name)
	return &DB{conn: conn, dialect: d}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Conn exposes the pool for integration tests.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Migrate applies every migration for the dialect in file-name order.
// Migrations are written to be re-runnable.
func (d *DB) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir(d.dialect.migrations)
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := migrationsFS.ReadFile(path.Join(d.dialect.migrations, name))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := d.conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		log.Printf("[DB] Applied migration: %s\n", name)
	}
	return nil
}
