package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"naskah/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// registry keeps the live handle per driver+DSN outside production, so an
// application that is torn down and rebuilt in the same process (dev reload,
// test suites) reuses one connection pool instead of leaking new ones.
var registry = struct {
	sync.Mutex
	handles map[string]*Handle
}{handles: make(map[string]*Handle)}

// Open returns the Data-Access Handle for cfg. Outside production a live
// handle registered under the same driver and DSN is returned with one more
// owner;
// otherwise a new pool is opened, verified with a ping and migrated when
// cfg.Migrate is set. Connection failures are returned to the caller.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Handle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	key := cfg.DBDriver + "|" + cfg.DatabaseURL

	if cfg.IsProduction() {
		return connect(ctx, cfg, key, log)
	}

	registry.Lock()
	defer registry.Unlock()

	if h, ok := registry.handles[key]; ok {
		h.refs++
		log.Debug("reusing database handle", zap.String("driver", h.driver))
		return h, nil
	}

	h, err := connect(ctx, cfg, key, log)
	if err != nil {
		return nil, err
	}
	h.registered = true
	h.refs = 1
	registry.handles[key] = h
	return h, nil
}

func connect(ctx context.Context, cfg *config.Config, key string, log *zap.Logger) (*Handle, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.DBDriver, err)
	}

	h := NewHandle(db, cfg.DBDriver, LogLevelsFor(cfg.Env), log)
	h.key = key
	if cfg.SlowQueryMillis > 0 {
		h.slow = time.Duration(cfg.SlowQueryMillis) * time.Millisecond
	}

	if cfg.Migrate {
		if err := Migrate(cfg, h); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s database: %w", cfg.DBDriver, err)
		}
	}

	log.Info("Successfully connected to the database",
		zap.String("driver", cfg.DBDriver),
		zap.Any("log_levels", h.levels),
	)
	return h, nil
}

// release drops one owner of h and reports whether it was the last one, in
// which case h is removed from the registry.
func release(h *Handle) bool {
	registry.Lock()
	defer registry.Unlock()
	if h.refs > 1 {
		h.refs--
		return false
	}
	h.refs = 0
	if registry.handles[h.key] == h {
		delete(registry.handles, h.key)
	}
	return true
}
