// Package store persists clean records to MySQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	"github.com/ccollicutt/logsift/pkg/config"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Executor runs SQL statements. An empty database runs the statement at
// server level with no default schema selected. Statements that return rows
// (SELECT, SHOW) yield them; all others return nil rows.
type Executor interface {
	Execute(ctx context.Context, database, statement string, args ...any) ([]Row, error)
}

// Opener opens a database handle for a DSN.
type Opener func(dsn string) (*sql.DB, error)

func openMySQL(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

// MySQLExecutor is an Executor backed by database/sql and the MySQL driver.
// It keeps one connection pool per database name.
type MySQLExecutor struct {
	cfg  config.DatabaseConfig
	open Opener

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// ExecutorOption configures a MySQLExecutor.
type ExecutorOption func(*MySQLExecutor)

// WithOpener replaces sql.Open, mainly for tests.
func WithOpener(open Opener) ExecutorOption {
	return func(e *MySQLExecutor) {
		e.open = open
	}
}

// NewMySQLExecutor creates an executor for the server in cfg. No connection
// is made until the first statement.
func NewMySQLExecutor(cfg config.DatabaseConfig, opts ...ExecutorOption) *MySQLExecutor {
	e := &MySQLExecutor{
		cfg:  cfg,
		open: openMySQL,
		dbs:  make(map[string]*sql.DB),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DSN returns the driver connection string for database.
func (e *MySQLExecutor) DSN(database string) string {
	c := mysql.NewConfig()
	c.User = e.cfg.User
	c.Passwd = e.cfg.Password
	c.Net = "tcp"
	c.Addr = e.cfg.Addr()
	c.DBName = database
	c.Timeout = e.cfg.Timeout
	return c.FormatDSN()
}

func (e *MySQLExecutor) db(database string) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.dbs[database]; ok {
		return db, nil
	}

	db, err := e.open(e.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", database, err)
	}
	e.dbs[database] = db
	return db, nil
}

// Execute implements Executor.
func (e *MySQLExecutor) Execute(ctx context.Context, database, statement string, args ...any) ([]Row, error) {
	db, err := e.db(database)
	if err != nil {
		return nil, err
	}

	if !returnsRows(statement) {
		if _, err := db.ExecContext(ctx, statement, args...); err != nil {
			return nil, fmt.Errorf("exec failed: %w", err)
		}
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Ping checks that the server is reachable with the configured credentials.
func (e *MySQLExecutor) Ping(ctx context.Context) error {
	db, err := e.db("")
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot reach %s: %w", e.cfg.Addr(), err)
	}
	return nil
}

// Close closes every pool the executor opened.
func (e *MySQLExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var first error
	for name, db := range e.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(e.dbs, name)
	}
	return first
}

func returnsRows(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "DESCRIBE", "EXPLAIN":
		return true
	}
	return false
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return out, nil
}
