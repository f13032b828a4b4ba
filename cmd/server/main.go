package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/newsletter-billing/config"
	"github.com/Dhoini/newsletter-billing/internal/app"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.ERROR).Fatalw("Failed to load configuration", "error", err)
	}

	log := newLogger(cfg.Logging)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.Errorw("Server stopped with error", "error", err)
		return
	}
	log.Infow("Server stopped gracefully")
}

func newLogger(cfg config.LoggingConfig) *logger.Logger {
	var opts []logger.Option
	if cfg.Format == "json" {
		opts = append(opts, logger.WithJSON())
	}
	if cfg.File != "" {
		opts = append(opts, logger.WithFile(cfg.File))
	}
	return logger.New(logger.ParseLevel(cfg.Level), opts...)
}
