// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store provides the relational persistence layer: connection
// pooling with bounded acquisition, transactions, embedded migrations and
// hand-written queries that run on SQLite, MySQL and PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql
	_ "modernc.org/sqlite"             // SQLite driver for database/sql
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect identifies the SQL flavour of the connected database.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// sqlitePragmas are applied to every pooled SQLite connection through the DSN.
var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",     // Enforce foreign key constraints
	"_pragma=busy_timeout(5000)",  // Wait 5s when database is locked
	"_pragma=journal_mode(WAL)",   // Write-Ahead Logging for better concurrency
	"_pragma=synchronous(NORMAL)", // Good balance of safety and speed
	"_pragma=temp_store(MEMORY)",  // Store temp tables in memory
	"_time_format=sqlite",         // Sortable text timestamps
	"_txlock=immediate",           // Take the write lock at BEGIN
}

// Config holds database configuration options.
type Config struct {
	Driver string
	DSN    string
	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int
	// MaxIdleConns is the maximum number of connections in the idle connection pool.
	MaxIdleConns int
	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	ConnMaxIdleTime time.Duration
	// AcquireTimeout bounds how long a caller waits for a pooled connection.
	AcquireTimeout time.Duration
}

// DefaultConfig returns pool defaults for the given driver and DSN.
func DefaultConfig(driver, dsn string) Config {
	return Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		AcquireTimeout:  5 * time.Second,
	}
}

// Store owns the connection pool. All queries run through Do or Tx so
// that every connection is checked out under the acquisition deadline and
// returned on every exit path.
type Store struct {
	db             *sql.DB
	dialect        Dialect
	acquireTimeout time.Duration
}

// New wraps an already opened database.
func New(db *sql.DB, dialect Dialect, acquireTimeout time.Duration) *Store {
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &Store{db: db, dialect: dialect, acquireTimeout: acquireTimeout}
}

// Open opens the configured database, applies the pool settings and
// verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		driverName string
		dsn        string
		dialect    Dialect
	)

	switch cfg.Driver {
	case "sqlite":
		driverName, dsn, dialect = "sqlite", sqliteDSN(cfg.DSN), DialectSQLite
	case "mysql":
		mdsn, err := mysqlDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		driverName, dsn, dialect = "mysql", mdsn, DialectMySQL
	case "postgres":
		driverName, dsn, dialect = "pgx", cfg.DSN, DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return New(db, dialect, cfg.AcquireTimeout), nil
}

// sqliteDSN appends the connection pragmas unless the caller already set some.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(sqlitePragmas, "&")
}

// mysqlDSN forces UTC time parsing so DATETIME columns scan into time.Time,
// and makes RowsAffected count matched rather than changed rows.
func mysqlDSN(dsn string) (string, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.Loc = time.UTC
	mcfg.ClientFoundRows = true
	if mcfg.Params == nil {
		mcfg.Params = map[string]string{}
	}
	if _, ok := mcfg.Params["time_zone"]; !ok {
		mcfg.Params["time_zone"] = "'+00:00'"
	}
	return mcfg.FormatDSN(), nil
}

// DB returns the underlying pool (used by the SQL session stores).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the connected SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs all pending database migrations for the store's dialect.
func (s *Store) Migrate() error {
	goose.SetBaseFS(migrations)

	gooseDialect := map[Dialect]string{
		DialectSQLite:   "sqlite3",
		DialectMySQL:    "mysql",
		DialectPostgres: "postgres",
	}[s.dialect]

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations/"+string(s.dialect)); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// acquire checks out a dedicated connection, waiting at most acquireTimeout.
func (s *Store) acquire(ctx context.Context) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.db.Conn(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return conn, nil
}

// Do runs fn with queries bound to one pooled connection.
func (s *Store) Do(ctx context.Context, fn func(q *Queries) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	return fn(&Queries{db: conn, dialect: s.dialect})
}

// Tx runs fn inside a transaction on one pooled connection. It commits when
// fn returns nil and rolls back on error or panic; panics are rethrown.
func (s *Store) Tx(ctx context.Context, fn func(q *Queries) error) (err error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("committing transaction: %w", cerr)
		}
	}()

	return fn(&Queries{db: tx, dialect: s.dialect})
}

// DBTX is the subset of database/sql shared by *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries executes the application's SQL against a connection or transaction.
type Queries struct {
	db      DBTX
	dialect Dialect
}

// NewQueries binds queries to db; used by tests that manage their own handle.
func NewQueries(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (q *Queries) rebind(query string) string {
	return rebind(q.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	return res, classify(err)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(query), args...)
	return rows, classify(err)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

// insert runs an INSERT and returns the new row id. PostgreSQL has no
// LastInsertId, so the statement gets a RETURNING clause there.
func (q *Queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if q.dialect == DialectPostgres {
		var id int64
		err := q.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, classify(err)
	}

	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	return id, nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// likePattern builds a case-insensitive contains pattern escaped with '!'.
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}
