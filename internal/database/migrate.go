// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

func prepare(dialect Dialect) (string, error) {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(string(dialect)); err != nil {
		return "", err
	}

	if dialect == DialectPostgres {
		return "migrations/postgres", nil
	}
	return "migrations/sqlite", nil
}

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Up(db, dir)
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Down(db, dir)
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Reset(db, dir)
}

// MigrateStatus logs the status of every migration.
func MigrateStatus(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Status(db, dir)
}
