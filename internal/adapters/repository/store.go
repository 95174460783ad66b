// Package repository persists the score ledger, profiles and every entity
// whose mutations feed it, on SQLite.
//
// All access goes through Store.WithTx. The store keeps a single database
// connection, so transactions are serialized: a ledger write and the
// recompute of the affected profile always commit together and no two
// writers ever interleave on one profile.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/kudos/pkg/logger"
	_ "modernc.org/sqlite"
)

const currentVersion = 2

// Store is the SQLite backed repository.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger logger.Logger
}

// New opens (or creates) the SQLite database at path and runs migrations.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: an in-memory database lives and dies with it, and
	// every transaction holds the only writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(ctx context.Context, opts ...Option) (*Store, error) {
	return New(ctx, ":memory:", opts...)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside one transaction. Any error from fn rolls the whole
// transaction back; nil commits it.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{tx: sqlTx, now: s.now}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error(ctx, "rollback failed", logger.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if _, err := s.db.ExecContext(ctx, schemaV1); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}
	if version < 2 {
		if _, err := s.db.ExecContext(ctx, schemaV2); err != nil {
			return fmt.Errorf("migrate v2: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Tx is one open transaction. It implements ledger.Writer and the entity
// queries the service needs; it must not be used after WithTx returns.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}
