package database

import (
	"embed"
	"errors"
	"fmt"

	"naskah/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema to the store behind h. Postgres
// migrations run over their own short-lived connection built from the DSN;
// sqlite runs over the handle's pool, which the sqlite driver would close on
// m.Close, so only the source is released there.
func Migrate(cfg *config.Config, h *Handle) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var m *migrate.Migrate
	closeAll := false

	switch cfg.DBDriver {
	case "sqlite":
		driver, err := sqlite.WithInstance(h.DB(), &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("sqlite migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", driver)
		if err != nil {
			return err
		}
	default:
		m, err = migrate.NewWithSourceInstance("iofs", src, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		closeAll = true
	}

	err = m.Up()
	if closeAll {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	} else {
		_ = src.Close()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		h.log.Debug("database schema already in latest version")
		return nil
	}
	return err
}
