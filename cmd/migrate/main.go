package main

import (
	"errors"
	"flag"
	"fmt"

	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/storage/postgres"
	"expenses/internal/storage/sqlite"
)

func main() {
	backendFlag := flag.String("backend", "", "override DATA_BACKEND (sqlite or postgres)")
	flag.Parse()

	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger("info", log.ComponentMigrate), "Configuration validation failed", err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentMigrate)
	if envErr != nil {
		logger.Warn("Ignoring .env file", log.FieldError, envErr)
	}
	if *backendFlag != "" {
		cfg.DataBackend = *backendFlag
	}

	if err := migrate(cfg, logger); err != nil {
		cli.Fatal(logger, "Migration failed", err)
	}
}

func migrate(cfg *config.Config, logger *log.Logger) error {
	switch backend.BackendType(cfg.DataBackend) {
	case backend.SQLiteBackend:
		logger.Info("Applying sqlite migrations", "path", cfg.SQLiteDBPath)
		if err := sqlite.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	case backend.PostgresBackend:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres")
		}
		logger.Info("Applying postgres migrations")
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	default:
		return fmt.Errorf("backend %q has no schema to migrate", cfg.DataBackend)
	}
	logger.Info("Migrations applied", log.FieldBackend, cfg.DataBackend)
	return nil
}
