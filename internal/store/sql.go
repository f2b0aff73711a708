// ABOUTME: SQL implementation of note persistence for sqlite and postgres
// ABOUTME: Opens the configured driver, runs migrations, and manages transactions

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/2389/notebox/internal/config"
)

// Dialect selects placeholder style and migration set.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// SQLStore implements note persistence on database/sql
type SQLStore struct {
	*Queries

	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to the configured database, applies pending migrations, and
// returns a ready store. Parent directories of a sqlite path are created.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	logger := slog.Default().With("component", "store")

	driverName, dsn, dialect, err := connectionString(cfg)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLStore{
		Queries: &Queries{conn: db, dialect: dialect},
		db:      db,
		dialect: dialect,
		logger:  logger,
	}

	if err := Migrate(driverName, dsn, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("store initialized", "driver", driverName, "dialect", dialect.String())
	return s, nil
}

// connectionString maps the database config onto a driver name and DSN.
func connectionString(cfg config.DatabaseConfig) (driverName, dsn string, dialect Dialect, err error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return "sqlite", "file:" + cfg.Path +
			"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate",
			DialectSQLite, nil
	case config.DriverSQLite3:
		return "sqlite3", "file:" + cfg.Path +
			"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate",
			DialectSQLite, nil
	case config.DriverPostgres:
		return "postgres", cfg.DSN, DialectPostgres, nil
	case config.DriverPGX:
		return "pgx", cfg.DSN, DialectPostgres, nil
	default:
		return "", "", 0, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Dialect reports which SQL dialect the store speaks.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database is reachable
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	s.logger.Info("closing store")
	return s.db.Close()
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise, including when fn panics.
func (s *SQLStore) InTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{conn: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every data access method. It is bound either to the
// connection pool or to a single transaction.
type Queries struct {
	conn    conn
	dialect Dialect
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.conn.ExecContext(ctx, q.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.conn.QueryContext(ctx, q.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.conn.QueryRowContext(ctx, q.rebind(query), args...)
}

// rebind converts ? placeholders to $1, $2, etc. for postgres
func (q *Queries) rebind(query string) string {
	if q.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a UNIQUE constraint violation on
// any of the supported drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}
