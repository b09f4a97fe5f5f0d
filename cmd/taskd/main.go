// Package main implements the entry point for the taskd server, which
// schedules background tasks for interactive users and pushes their
// progress to connected clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/inception-project/taskd/internal/config"
	"github.com/inception-project/taskd/internal/platform/logger"
	"github.com/inception-project/taskd/internal/platform/postgres"
	"github.com/inception-project/taskd/internal/service/auth"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	migrateOnly := flag.Bool("migrate", false, "apply history migrations and exit")
	tokenFor := flag.String("token", "", "print an access token for the given username and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *migrateOnly, *tokenFor); err != nil {
		log.Fatalf("taskd: %v", err)
	}
}

func run(ctx context.Context, configPath string, migrateOnly bool, tokenFor string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"workers", cfg.Scheduler.Workers,
		"queue_size", cfg.Scheduler.QueueSize,
		"history_enabled", cfg.Database.URL != "",
		"schedules", len(cfg.Schedules))

	if tokenFor != "" {
		return printToken(ctx, cfg.Auth, tokenFor)
	}

	if migrateOnly {
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for -migrate")
		}
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.DefaultPoolConfig(), l)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck
		return postgres.Migrate(ctx, db, l)
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// printToken writes a signed access token for username to stdout.
func printToken(ctx context.Context, cfg config.AuthConfig, username string) error {
	jwtService, err := auth.NewJWTService(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	token, err := jwtService.GenerateToken(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	fmt.Println(token)
	return nil
}
