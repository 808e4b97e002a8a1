package main

import (
	"errors"
	"flag"
	"os"

	"github.com/cassiomorais/bluecode/internal/infrastructure/config"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		direction string
		dbURL     string
		path      string
		steps     int
	)

	flag.StringVar(&direction, "direction", "up", "Migration direction: up, down or version")
	flag.StringVar(&dbURL, "db", "", "Database URL (or set DATABASE_URL env var)")
	flag.StringVar(&path, "path", "migrations", "Path to migration files")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply or roll back (0 = all)")
	flag.Parse()

	logger := observability.InitLogger(os.Getenv("LOG_LEVEL"), "bluecode-migrate", os.Stdout)

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal().Err(err).Msg("No database URL given and config could not be loaded")
		}
		dbURL = cfg.Database.MigrateURL()
	}

	m, err := migrate.New("file://"+path, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logger.Fatal().Err(verr).Msg("Failed to read schema version")
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
		return
	default:
		logger.Fatal().Str("direction", direction).Msg("Unknown direction (use up, down or version)")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("direction", direction).Msg("Migration failed")
	}
	logger.Info().Str("direction", direction).Msg("Migrations finished")
}
