// Command migrate runs goose migrations against the configured database.
//
// Usage:
//
//	migrate up
//	migrate down
//	migrate status
//	migrate version
//	migrate up-to <version>
//	migrate create <name>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/universepro/estore-backend/pkg/config"
	"github.com/universepro/estore-backend/pkg/db"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "estore-migrate"})
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|version|up-to|create> [args]")
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, "no .env file loaded")
	}

	if err := run(ctx, logg, command, args); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, command string, args []string) error {
	dir := migrate.DefaultDir
	if env := os.Getenv("ESTORE_MIGRATIONS_DIR"); env != "" {
		dir = env
	}
	if err := migrate.ValidateDir(dir); err != nil {
		return err
	}

	// create needs no database at all
	if command == "create" {
		if len(args) != 1 {
			return fmt.Errorf("usage: migrate create <name>")
		}
		path, err := migrate.CreateSQLMigration(dir, args[0])
		if err != nil {
			return err
		}
		logg.Info(ctx, "created "+path)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}

	if command == "up-to" {
		if len(args) != 1 {
			return fmt.Errorf("usage: migrate up-to <version>")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dir, args[0])
	}
	return migrate.Run(ctx, sqlDB, dir, command, args...)
}
