// Package app wires the process-wide components into one context object that
// is built once at start-up and passed to the router.
package app

import (
	"context"
	"errors"
	"fmt"

	"naskah/config"
	"naskah/config/database"
	"naskah/internal/auth"
	"naskah/internal/cache"
	"naskah/socket"

	"go.uber.org/zap"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger

	// DB builds the Data-Access Handle on first use and owns its lifetime.
	DB    *database.Provider
	Cache *cache.Cache // nil without REDIS_URL
	Auth  *auth.Authority
	Users *auth.UserRepository
	Hub   *socket.Hub

	stopHub context.CancelFunc
	hubDone chan struct{}
}

// New builds the application. A missing AUTH_SECRET or an unreachable
// database does not fail start-up; a configured but unreachable Redis does.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		Config: cfg,
		Log:    log,
		DB:     database.NewProvider(cfg, log.Named("database")),
	}
	a.Users = auth.NewUserRepository(a.DB)

	opts := []auth.Option{auth.WithProviders(auth.NewCredentialsProvider(a.Users))}
	if cfg.TrustedIssuerSecret != "" {
		opts = append(opts, auth.WithProviders(auth.NewTokenProvider(cfg.TrustedIssuerSecret)))
	}
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg, log.Named("cache"))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Cache = c
		opts = append(opts, auth.WithRevoker(c))
		log.Info("session revocation backed by redis")
	}
	a.Auth = auth.New(cfg, log.Named("auth"), opts...)

	hubCtx, stop := context.WithCancel(context.Background())
	a.Hub = socket.NewHub(log.Named("socket"))
	a.stopHub = stop
	a.hubDone = make(chan struct{})
	go func() {
		defer close(a.hubDone)
		a.Hub.Run(hubCtx)
	}()

	if !cfg.IsProduction() {
		a.seedUser(ctx)
	}
	return a, nil
}

// seedUser creates the AUTH_SEED_EMAIL account for local development.
func (a *App) seedUser(ctx context.Context) {
	if a.Config.SeedEmail == "" || a.Config.SeedPassword == "" {
		return
	}
	_, err := a.Users.FindByEmail(ctx, a.Config.SeedEmail)
	if err == nil {
		return
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		a.Log.Warn("skipping seed user", zap.Error(err))
		return
	}
	if _, err := a.Users.Create(ctx, a.Config.SeedEmail, "Seed User", a.Config.SeedPassword); err != nil {
		a.Log.Warn("failed to create seed user", zap.Error(err))
		return
	}
	a.Log.Info("created seed user", zap.String("email", a.Config.SeedEmail))
}

// Close stops the feed hub, then releases the revocation cache and the
// database handle. It is registered as a shutdown hook and safe to call once
// the HTTP server has stopped.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	a.stopHub()
	select {
	case <-a.hubDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop hub: %w", ctx.Err()))
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
