package database

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sync"
	"time"

	"naskah/config"

	"go.uber.org/zap"
)

// LogLevel is one category of statement diagnostics a Handle may emit.
type LogLevel string

const (
	LogQuery LogLevel = "query"
	LogError LogLevel = "error"
	LogWarn  LogLevel = "warn"
)

// LogLevelsFor returns the diagnostic categories enabled for env.
// Production only reports errors; every other environment is verbose.
func LogLevelsFor(env string) []LogLevel {
	if env == config.EnvProduction {
		return []LogLevel{LogError}
	}
	return []LogLevel{LogQuery, LogError, LogWarn}
}

// Handle is the single shared client to the persistent store. It is safe for
// concurrent use; all pooling is delegated to database/sql.
type Handle struct {
	db     *sql.DB
	driver string
	key    string
	levels []LogLevel
	slow   time.Duration
	log    *zap.Logger

	registered bool
	refs       int // owners of a registered handle; guarded by registry
	closeOnce  sync.Once
	closeErr   error
}

// NewHandle wraps an already opened *sql.DB. Open is the normal entry point;
// this exists for tests that supply a sqlmock connection.
func NewHandle(db *sql.DB, driver string, levels []LogLevel, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{
		db:     db,
		driver: driver,
		levels: slices.Clone(levels),
		slow:   200 * time.Millisecond,
		log:    log,
	}
}

// DB returns the raw pool for libraries that need it (migrations).
func (h *Handle) DB() *sql.DB { return h.db }

// Driver returns the database/sql driver name the handle was opened with.
func (h *Handle) Driver() string { return h.driver }

// LogLevels returns a copy of the enabled diagnostic categories.
func (h *Handle) LogLevels() []LogLevel { return slices.Clone(h.levels) }

// Enabled reports whether level diagnostics are emitted.
func (h *Handle) Enabled(level LogLevel) bool { return slices.Contains(h.levels, level) }

func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := h.db.ExecContext(ctx, query, args...)
	h.observe(query, start, err)
	return res, err
}

func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := h.db.QueryContext(ctx, query, args...)
	h.observe(query, start, err)
	return rows, err
}

func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := h.db.QueryRowContext(ctx, query, args...)
	h.observe(query, start, row.Err())
	return row
}

func (h *Handle) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := h.db.BeginTx(ctx, opts)
	if err != nil && h.Enabled(LogError) {
		h.log.Error("begin transaction failed", zap.Error(err))
	}
	return tx, err
}

// Ping verifies the store is reachable.
func (h *Handle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close releases the caller's reference. Outside production every Open of a
// registered handle must be paired with one Close; the pool is closed and the
// handle leaves the registry only when the last owner releases it. Calling
// Close on a released handle returns the first result.
func (h *Handle) Close() error {
	if h.registered && !release(h) {
		h.log.Debug("database handle released", zap.String("driver", h.driver))
		return nil
	}
	h.closeOnce.Do(func() {
		h.closeErr = h.db.Close()
		h.log.Info("database handle closed", zap.String("driver", h.driver))
	})
	return h.closeErr
}

func (h *Handle) observe(query string, start time.Time, err error) {
	elapsed := time.Since(start)

	switch {
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		if h.Enabled(LogError) {
			h.log.Error("query failed", zap.String("sql", query), zap.Duration("elapsed", elapsed), zap.Error(err))
		}
	case h.slow > 0 && elapsed > h.slow:
		if h.Enabled(LogWarn) {
			h.log.Warn("slow query", zap.String("sql", query), zap.Duration("elapsed", elapsed))
		}
	}

	if h.Enabled(LogQuery) {
		h.log.Debug("query", zap.String("sql", query), zap.Duration("elapsed", elapsed))
	}
}
