// Package db owns the single relational database handle that holds
// sentiment history. The local file is SQLite; a Postgres URL swaps the
// backend without changing any query.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	ErrNotInitialized = errors.New("database not initialized")
	ErrClosed         = errors.New("database already closed")
)

// Dialect selects the schema flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var schemas = map[Dialect][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS sentiment_history (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    coin      TEXT,
    date      TEXT,
    sentiment TEXT,
    price     REAL
)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_history_coin_date
    ON sentiment_history (coin, date DESC)`,
	},
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS sentiment_history (
    id        BIGSERIAL PRIMARY KEY,
    coin      TEXT,
    date      TEXT,
    sentiment TEXT,
    price     DOUBLE PRECISION
)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_history_coin_date
    ON sentiment_history (coin, date DESC)`,
	},
}

var openDB = sqlx.Open

// Store wraps the database handle. Initialize must run before any query.
type Store struct {
	db          *sqlx.DB
	dialect     Dialect
	initialized atomic.Bool
	closed      atomic.Bool
}

// OpenSQLite opens (creating if absent) the database file at path.
func OpenSQLite(path string) (*Store, error) {
	conn, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	return NewStore(conn, DialectSQLite), nil
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(dsn string) (*Store, error) {
	conn, err := openDB("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewStore(conn, DialectPostgres), nil
}

// NewStore wraps an existing handle.
func NewStore(conn *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: conn, dialect: dialect}
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Initialize connects and ensures the sentiment table exists. Idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		log.Error("database connect failed", "dialect", s.dialect, "err", err)
		return fmt.Errorf("connect: %w", err)
	}

	statements, ok := schemas[s.dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", s.dialect)
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			log.Error("database schema setup failed", "err", err)
			return fmt.Errorf("create schema: %w", err)
		}
	}

	s.initialized.Store(true)
	log.Debug("database ready", "dialect", s.dialect)
	return nil
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		log.Error("database error", "err", err)
		return nil, err
	}
	return res, nil
}

// SelectMany scans every row into dest, which must be a pointer to a slice.
func (s *Store) SelectMany(ctx context.Context, dest any, query string, args ...any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...); err != nil {
		log.Error("database error", "err", err)
		return err
	}
	return nil
}

// SelectOne scans the first row into dest. It reports false when no row matched.
func (s *Store) SelectOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		log.Error("database error", "err", err)
		return false, err
	}
	return true, nil
}

// Close releases the handle. Only the first call closes it.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}
