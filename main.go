package main

import (
	"context"
	"os"
	"time"

	"naskah/config"
	"naskah/internal/app"
	"naskah/internal/server"
	"naskah/pkg/logger"
	"naskah/router"

	"go.uber.org/zap"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		logger.Init(config.EnvDevelopment).Fatal("Failed to load configuration", zap.Error(err))
	}

	log := logger.Init(cfg.Env)
	defer func() { _ = log.Sync() }()

	if !dotenv {
		log.Info("No .env file found, using environment variables from OS")
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	application, err := app.New(startCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise application", zap.Error(err))
	}

	srv := server.New(router.Setup(application), cfg.Port, cfg.ReadTimeout, cfg.WriteTimeout, cfg.ShutdownTimeout, log)
	srv.OnShutdown("application", application.Close)

	if err := srv.Run(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
