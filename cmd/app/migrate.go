// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/database"
	"codeberg.org/clubedagente/backoffice/internal/server"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	step := func(name, usage string, fn func(*sql.DB, database.Dialect) error) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Flags: config.DatabaseFlags(),
			Action: func(_ context.Context, cmd *cli.Command) error {
				return withConnection(cmd, func(db *sql.DB, dialect database.Dialect) error {
					if err := fn(db, dialect); err != nil {
						return fmt.Errorf("migrate %s: %w", name, err)
					}
					slog.Info("migrate_done", "step", name, "dialect", dialect)
					return nil
				})
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			step("up", "Apply all pending migrations", database.RunMigrations),
			step("down", "Roll back the latest migration", database.MigrateDown),
			step("reset", "Roll back all migrations", database.MigrateReset),
			step("status", "Show the migration status", database.MigrateStatus),
		},
	}
}

// withConnection opens the configured database without migrating it.
func withConnection(cmd *cli.Command, fn func(*sql.DB, database.Dialect) error) error {
	server.SetupLogger(cmd.String("log-level"), cmd.String("log-format"))

	db, err := database.Connect(cmd.String("database-dsn"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return fn(db.DB, database.DialectOfDB(db))
}
