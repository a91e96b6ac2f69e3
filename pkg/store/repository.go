package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ccollicutt/logsift/pkg/logging"
	"github.com/ccollicutt/logsift/pkg/normalizer"
	"github.com/ccollicutt/logsift/pkg/parser"
)

// DatetimeLayout is the MySQL DATETIME literal format.
const DatetimeLayout = "2006-01-02 15:04:05"

// Row conversion errors.
var (
	ErrBadTimestamp = errors.New("timestamp does not match log layout")
	ErrBadNumber    = errors.New("value is not an integer")
)

// Repository stores clean records in a single table.
type Repository struct {
	exec     Executor
	database string
	table    string
	logger   logging.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLogger sets the logger used for per-row failures.
func WithLogger(l logging.Logger) RepositoryOption {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRepository creates a Repository writing to database.table through exec.
func NewRepository(exec Executor, database, table string, opts ...RepositoryOption) *Repository {
	r := &Repository{
		exec:     exec,
		database: database,
		table:    table,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// quoteIdent quotes a MySQL identifier.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// CreateDatabaseStatement returns the schema creation statement.
func (r *Repository) CreateDatabaseStatement() string {
	return "CREATE DATABASE IF NOT EXISTS " + quoteIdent(r.database)
}

// CreateTableStatement returns the table creation statement.
func (r *Repository) CreateTableStatement() string {
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(r.table) + ` (
    id INT AUTO_INCREMENT PRIMARY KEY,
    ip VARCHAR(255),
    timestamp DATETIME,
    method VARCHAR(255),
    url TEXT,
    status INT,
    size INT,
    query_params JSON
)`
}

func (r *Repository) insertStatement() string {
	return "INSERT INTO " + quoteIdent(r.table) +
		" (ip, timestamp, method, url, status, size, query_params) VALUES (?, ?, ?, ?, ?, ?, ?)"
}

// Setup creates the database and table if they do not exist.
func (r *Repository) Setup(ctx context.Context) error {
	if _, err := r.exec.Execute(ctx, "", r.CreateDatabaseStatement()); err != nil {
		return fmt.Errorf("creating database %s: %w", r.database, err)
	}
	if _, err := r.exec.Execute(ctx, r.database, r.CreateTableStatement()); err != nil {
		return fmt.Errorf("creating table %s: %w", r.table, err)
	}
	return nil
}

// RowFailure is a record that could not be stored.
type RowFailure struct {
	// Index is the record's position in the batch.
	Index  int
	Record normalizer.CleanRecord
	Err    error
}

// Error describes the failed row and its cause.
func (f RowFailure) Error() string {
	return fmt.Sprintf("row %d (%s %s): %v", f.Index, f.Record.IP, f.Record.Timestamp, f.Err)
}

// SaveResult reports a batch insert.
type SaveResult struct {
	Inserted int
	Failed   []RowFailure
}

// Save inserts each record as its own statement. Conversion and insert
// errors are collected per row and the batch continues; only cancellation
// stops it early.
func (r *Repository) Save(ctx context.Context, records []normalizer.CleanRecord) (*SaveResult, error) {
	result := &SaveResult{}
	stmt := r.insertStatement()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		args, err := InsertArgs(rec)
		if err == nil {
			_, err = r.exec.Execute(ctx, r.database, stmt, args...)
		}
		if err != nil {
			f := RowFailure{Index: i, Record: rec, Err: err}
			result.Failed = append(result.Failed, f)
			r.logger.Warn("failed to store record",
				logging.Int("index", i),
				logging.String("ip", rec.IP),
				logging.String("timestamp", rec.Timestamp),
				logging.String("url", rec.URL),
				logging.String("error", err.Error()),
			)
			continue
		}
		result.Inserted++
	}

	r.logger.Info("records stored",
		logging.Int("inserted", result.Inserted),
		logging.Int("failed", len(result.Failed)),
		logging.String("table", r.database+"."+r.table),
	)
	return result, nil
}

// Count returns the number of rows in the table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	rows, err := r.exec.Execute(ctx, r.database, "SELECT COUNT(*) AS n FROM "+quoteIdent(r.table))
	if err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("counting rows: expected 1 row, got %d", len(rows))
	}
	return toInt64(rows[0]["n"])
}

// InsertArgs converts a record to column values in insert order. The
// timestamp is stored in UTC.
func InsertArgs(rec normalizer.CleanRecord) ([]any, error) {
	ts, err := parser.ParseTimestamp(rec.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimestamp, rec.Timestamp)
	}

	status, err := strconv.Atoi(rec.Status)
	if err != nil {
		return nil, fmt.Errorf("status %w: %q", ErrBadNumber, rec.Status)
	}

	size, err := strconv.Atoi(strings.ReplaceAll(rec.Size, ",", ""))
	if err != nil {
		return nil, fmt.Errorf("size %w: %q", ErrBadNumber, rec.Size)
	}

	return []any{
		rec.IP,
		ts.UTC().Format(DatetimeLayout),
		rec.Method,
		rec.URL,
		status,
		size,
		rec.QueryParams,
	}, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
