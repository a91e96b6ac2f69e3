package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/logsift/pkg/normalizer"
)

// call is one statement seen by recordingExecutor.
type call struct {
	database  string
	statement string
	args      []any
}

// recordingExecutor records statements and fails those containing failOn.
type recordingExecutor struct {
	calls  []call
	failOn string
	rows   []Row
}

func (e *recordingExecutor) Execute(_ context.Context, database, statement string, args ...any) ([]Row, error) {
	e.calls = append(e.calls, call{database, statement, args})
	if e.failOn != "" {
		for _, a := range args {
			if s, ok := a.(string); ok && s == e.failOn {
				return nil, errors.New("duplicate entry")
			}
		}
	}
	if returnsRows(statement) {
		return e.rows, nil
	}
	return nil, nil
}

func cleanRecord(ip, ts, status, size string) normalizer.CleanRecord {
	return normalizer.CleanRecord{
		IP:          ip,
		Timestamp:   ts,
		Method:      "GET",
		URL:         "/downloads/product_1",
		Status:      status,
		Size:        size,
		QueryParams: `{"a":"1"}`,
	}
}

func TestSetup(t *testing.T) {
	exec := &recordingExecutor{}
	repo := NewRepository(exec, "log_analysis", "logs")

	require.NoError(t, repo.Setup(context.Background()))
	require.Len(t, exec.calls, 2)

	assert.Equal(t, "", exec.calls[0].database)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `log_analysis`", exec.calls[0].statement)

	assert.Equal(t, "log_analysis", exec.calls[1].database)
	stmt := exec.calls[1].statement
	assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS `logs`"))
	for _, col := range []string{
		"id INT AUTO_INCREMENT PRIMARY KEY",
		"ip VARCHAR(255)",
		"timestamp DATETIME",
		"method VARCHAR(255)",
		"url TEXT",
		"status INT",
		"size INT",
		"query_params JSON",
	} {
		assert.Contains(t, stmt, col)
	}
}

func TestSetupStopsOnDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS `log_analysis`").
		WillReturnError(errors.New("access denied"))

	exec := NewMySQLExecutor(testDBConfig(), WithOpener(func(string) (*sql.DB, error) { return db, nil }))
	err = NewRepository(exec, "log_analysis", "logs").Setup(context.Background())

	assert.ErrorContains(t, err, "access denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave(t *testing.T) {
	exec := &recordingExecutor{failOn: "10.0.0.4"}
	repo := NewRepository(exec, "log_analysis", "logs")

	records := []normalizer.CleanRecord{
		cleanRecord("10.0.0.1", "17/May/2015:08:05:32 +0000", "200", "1,024"),
		cleanRecord("10.0.0.2", "2015-05-17 08:05:32", "200", "10"),
		cleanRecord("10.0.0.3", "17/May/2015:08:05:32 +0200", "OK", "10"),
		cleanRecord("10.0.0.4", "17/May/2015:08:05:32 +0000", "500", "0"),
		cleanRecord("10.0.0.5", "17/May/2015:08:05:32 +0000", "304", "abc"),
	}

	result, err := repo.Save(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Failed, 4)
	assert.ErrorIs(t, result.Failed[0].Err, ErrBadTimestamp)
	assert.ErrorIs(t, result.Failed[1].Err, ErrBadNumber)
	assert.ErrorContains(t, result.Failed[2].Err, "duplicate entry")
	assert.ErrorIs(t, result.Failed[3].Err, ErrBadNumber)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{
		result.Failed[0].Index, result.Failed[1].Index, result.Failed[2].Index, result.Failed[3].Index,
	})

	// The converted row and the failed insert both reached the executor.
	require.Len(t, exec.calls, 2)
	first := exec.calls[0]
	assert.Equal(t, "log_analysis", first.database)
	assert.Equal(t, "INSERT INTO `logs` (ip, timestamp, method, url, status, size, query_params) VALUES (?, ?, ?, ?, ?, ?, ?)", first.statement)
	assert.Equal(t, []any{"10.0.0.1", "2015-05-17 08:05:32", "GET", "/downloads/product_1", 200, 1024, `{"a":"1"}`}, first.args)
}

func TestSaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &recordingExecutor{}
	result, err := NewRepository(exec, "db", "logs").Save(ctx, []normalizer.CleanRecord{
		cleanRecord("10.0.0.1", "17/May/2015:08:05:32 +0000", "200", "1"),
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Inserted)
	assert.Empty(t, exec.calls)
}

func TestInsertArgsUTC(t *testing.T) {
	args, err := InsertArgs(cleanRecord("1.1.1.1", "17/May/2015:10:05:32 +0200", "200", "5"))
	require.NoError(t, err)
	assert.Equal(t, "2015-05-17 08:05:32", args[1])
}

func TestCount(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"text", "42", 42, false},
		{"bytes", []byte("7"), 7, false},
		{"garbage", "x", 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{rows: []Row{{"n": tt.value}}}
			got, err := NewRepository(exec, "db", "logs").Count(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "SELECT COUNT(*) AS n FROM `logs`", exec.calls[0].statement)
		})
	}
}

func TestCountNoRows(t *testing.T) {
	_, err := NewRepository(&recordingExecutor{}, "db", "logs").Count(context.Background())
	assert.ErrorContains(t, err, "expected 1 row")
}

func TestRowFailureError(t *testing.T) {
	f := RowFailure{Index: 3, Record: cleanRecord("1.1.1.1", "ts", "200", "1"), Err: ErrBadNumber}
	assert.Equal(t, "row 3 (1.1.1.1 ts): value is not an integer", f.Error())
}
