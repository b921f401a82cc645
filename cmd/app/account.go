// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/database"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/server"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
	"github.com/urfave/cli/v3"
)

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Manage back-office accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an account",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Login email", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Initial password", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Full name"},
					&cli.StringFlag{Name: "cpf", Usage: "CPF, masked or digits only"},
					&cli.StringFlag{Name: "profile", Usage: "Authorization profile (perfil)"},
					&cli.StringFlag{Name: "role", Usage: "Role"},
					&cli.StringFlag{Name: "status", Value: string(models.StatusActive), Usage: "Account status"},
					&cli.BoolFlag{Name: "legacy", Usage: "Store the password in plaintext, as legacy accounts do"},
				}, config.DatabaseFlags()...),
				Action: createAccount,
			},
			{
				Name:  "status",
				Usage: "Change the status of an account",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Login email", Required: true},
					&cli.StringFlag{Name: "status", Usage: "New status", Required: true},
				}, config.DatabaseFlags()...),
				Action: setAccountStatus,
			},
			{
				Name:   "list",
				Usage:  "List accounts",
				Flags:  config.DatabaseFlags(),
				Action: listAccounts,
			},
		},
	}
}

func createAccount(ctx context.Context, cmd *cli.Command) error {
	status := models.AccountStatus(cmd.String("status"))
	if !status.Known() {
		return fmt.Errorf("unknown status %q", status)
	}

	// Login trims the password before hashing, so the stored value must match.
	password := strings.TrimSpace(cmd.String("password"))
	if password == "" {
		return errors.New("password must not be blank")
	}
	hash := digest.Password(password)
	if cmd.Bool("legacy") {
		hash = password
	}

	return withRepository(cmd, func(repo *repository.Repository) error {
		account, err := repo.CreateAccount(ctx, repository.NewAccount{
			FullName:       cmd.String("name"),
			Email:          cmd.String("email"),
			CPF:            cmd.String("cpf"),
			CredentialHash: hash,
			Status:         status,
			Profile:        cmd.String("profile"),
			Role:           cmd.String("role"),
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		slog.Info("account_created", "id", account.ID, "email", account.Email, "status", account.Status)
		return nil
	})
}

func setAccountStatus(ctx context.Context, cmd *cli.Command) error {
	status := models.AccountStatus(cmd.String("status"))
	if !status.Known() {
		return fmt.Errorf("unknown status %q", status)
	}

	return withRepository(cmd, func(repo *repository.Repository) error {
		err := repo.UpdateAccountStatus(ctx, cmd.String("email"), status)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("no account with email %q", cmd.String("email"))
		}
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		slog.Info("account_status_changed", "email", cmd.String("email"), "status", status)
		return nil
	})
}

func listAccounts(ctx context.Context, cmd *cli.Command) error {
	return withRepository(cmd, func(repo *repository.Repository) error {
		total, err := repo.CountAccounts(ctx)
		if err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		accounts, err := repo.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}

		w := tabwriter.NewWriter(cmd.Root().Writer, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tEMAIL\tNAME\tSTATUS\tPROFILE")
		for i := range accounts {
			a := &accounts[i]
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Email, a.DisplayName(), a.Status, a.ProfileLabel())
		}
		_, _ = fmt.Fprintf(w, "\n%d account(s)\n", total)
		return w.Flush()
	})
}

// withRepository opens and migrates the configured database.
func withRepository(cmd *cli.Command, fn func(*repository.Repository) error) error {
	server.SetupLogger(cmd.String("log-level"), cmd.String("log-format"))

	db, err := database.Open(cmd.String("database-dsn"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return fn(repository.New(db))
}
