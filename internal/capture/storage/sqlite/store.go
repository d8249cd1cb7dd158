// Package sqlite provides the durable SQLite backend for the dispatch
// kernel. One database file holds the session projection, the event
// journal, the idempotency ledger and the review and validation side
// tables, so a dispatch commits or rolls back as a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/tabulara/tabulara/internal/platform/storage/sqlitemigrate"

	"github.com/tabulara/tabulara/internal/capture/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// ErrNestedTransaction indicates WithinTx was called from inside a
// transaction body.
var ErrNestedTransaction = errors.New("nested transaction is not supported")

type txKey struct{}

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements capture persistence over SQLite.
type Store struct {
	sqlDB *sql.DB

	// Now stamps record timestamps; defaults to time.Now.
	Now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a capture SQLite store at the provided path and applies
// bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, Now: time.Now}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB returns the raw database handle for maintenance callers.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// db routes queries through the transaction carried by ctx, falling back
// to the shared handle outside a unit of work.
func (s *Store) db(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.sqlDB
}

// WithinTx runs fn inside one SQL transaction carried on the context. All
// store methods invoked from fn share the transaction; an error rolls
// every write back. Idempotency entries are written outside the unit of
// work, so a rollback leaves them in place for the failure mark.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if ctx.Value(txKey{}) != nil {
		return ErrNestedTransaction
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
