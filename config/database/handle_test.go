package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogLevelsFor(t *testing.T) {
	cases := map[string][]LogLevel{
		"development": {LogQuery, LogError, LogWarn},
		"test":        {LogQuery, LogError, LogWarn},
		"production":  {LogError},
	}
	for env, want := range cases {
		assert.Equal(t, want, LogLevelsFor(env), env)
	}
}

func TestLogLevelsFor_ProductionNeverLogsQueries(t *testing.T) {
	assert.NotContains(t, LogLevelsFor("production"), LogQuery)
	assert.NotContains(t, LogLevelsFor("production"), LogWarn)
}

func newObservedHandle(t *testing.T, levels []LogLevel) (*Handle, sqlmock.Sqlmock, *observer.ObservedLogs) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	core, logs := observer.New(zapcore.DebugLevel)
	return NewHandle(db, "postgres", levels, zap.New(core)), mock, logs
}

func TestHandle_VerboseLogsQueries(t *testing.T) {
	h, mock, logs := newObservedHandle(t, LogLevelsFor("development"))

	mock.ExpectExec("DELETE FROM documents").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := h.ExecContext(context.Background(), "DELETE FROM documents WHERE id = $1", "doc-1")
	require.NoError(t, err)

	queries := logs.FilterMessage("query").All()
	require.Len(t, queries, 1)
	assert.Equal(t, "DELETE FROM documents WHERE id = $1", queries[0].ContextMap()["sql"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_ProductionLogsOnlyErrors(t *testing.T) {
	h, mock, logs := newObservedHandle(t, LogLevelsFor("production"))

	mock.ExpectQuery("SELECT id FROM documents").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("UPDATE documents").WillReturnError(errors.New("connection reset"))

	rows, err := h.QueryContext(context.Background(), "SELECT id FROM documents")
	require.NoError(t, err)
	rows.Close()

	_, err = h.ExecContext(context.Background(), "UPDATE documents SET title = $1", "x")
	require.Error(t, err)

	assert.Equal(t, 0, logs.FilterMessage("query").Len())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
	assert.Equal(t, "query failed", logs.All()[0].Message)
}

func TestHandle_NoRowsIsNotAnError(t *testing.T) {
	h, mock, logs := newObservedHandle(t, LogLevelsFor("production"))

	mock.ExpectQuery("SELECT user_id FROM documents").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	var owner string
	err := h.QueryRowContext(context.Background(), "SELECT user_id FROM documents WHERE id = $1", "x").Scan(&owner)
	require.Error(t, err)
	assert.Equal(t, 0, logs.Len())
}

func TestHandle_LogLevelsIsACopy(t *testing.T) {
	h, _, _ := newObservedHandle(t, LogLevelsFor("development"))

	levels := h.LogLevels()
	levels[0] = "tampered"

	assert.Equal(t, LogQuery, h.LogLevels()[0])
	assert.True(t, h.Enabled(LogQuery))
}

func TestHandle_CloseIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	h := NewHandle(db, "postgres", LogLevelsFor("test"), nil)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
