// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"codeberg.org/clubedagente/backoffice/internal/database"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/auth"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	return newCommand().Run(context.Background(), append([]string{"backoffice"}, args...))
}

func openRepo(t *testing.T, dsn string) *repository.Repository {
	t.Helper()
	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.New(db)
}

func TestAccountCreate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")

	err := run(t, "account", "create",
		"--database-dsn", dsn,
		"--email", "ana@clube.com",
		"--password", "segredo123",
		"--name", "Ana Souza",
		"--cpf", "123.456.789-09",
	)
	require.NoError(t, err)

	account, err := openRepo(t, dsn).FindAccountByEmail(context.Background(), "ana@clube.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", account.DisplayName())
	assert.Equal(t, models.StatusActive, account.Status)
	assert.True(t, digest.Matches(account.CredentialHash, digest.Password("segredo123")))
}

func TestAccountCreate_Legacy(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")

	require.NoError(t, run(t, "account", "create",
		"--database-dsn", dsn,
		"--email", "legado@clube.com",
		"--password", "senha123",
		"--legacy",
	))

	account, err := openRepo(t, dsn).FindAccountByEmail(context.Background(), "legado@clube.com")
	require.NoError(t, err)
	assert.Equal(t, "senha123", account.CredentialHash)
}

func TestAccountCreate_UnknownStatus(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")

	err := run(t, "account", "create",
		"--database-dsn", dsn,
		"--email", "ana@clube.com",
		"--password", "segredo123",
		"--status", "PAUSADO",
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestAccountCreate_PasswordUsableForLogin(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
	}{
		{"digest", false},
		{"legacy", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := filepath.Join(t.TempDir(), "backoffice.db")
			args := []string{"account", "create",
				"--email", "ana@clube.com", "--password", " Segredo1 ", "--database-dsn", dsn}
			if tt.legacy {
				args = append(args, "--legacy")
			}
			require.NoError(t, run(t, args...))

			svc := auth.NewService(openRepo(t, dsn), nil, nil)
			session, err := svc.Authenticate(context.Background(), "ana@clube.com", " Segredo1 ")
			require.NoError(t, err)
			assert.Equal(t, "ana@clube.com", session.Email)
		})
	}
}

func TestAccountCreate_BlankPassword(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")

	err := run(t, "account", "create", "--email", "ana@clube.com", "--password", "   ", "--database-dsn", dsn)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "blank")
}

func TestAccountStatus(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")
	require.NoError(t, run(t, "account", "create",
		"--database-dsn", dsn, "--email", "ana@clube.com", "--password", "segredo123"))

	require.NoError(t, run(t, "account", "status",
		"--database-dsn", dsn, "--email", "ana@clube.com", "--status", string(models.StatusSuspended)))

	account, err := openRepo(t, dsn).FindAccountByEmail(context.Background(), "ana@clube.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, account.Status)

	err = run(t, "account", "status",
		"--database-dsn", dsn, "--email", "ninguem@clube.com", "--status", string(models.StatusActive))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account")
}

func TestAccountList(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")
	require.NoError(t, run(t, "account", "create",
		"--email", "ana@clube.com", "--password", "segredo123", "--name", "Ana Souza",
		"--profile", "MASTER", "--database-dsn", dsn))

	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	require.NoError(t, cmd.Run(context.Background(), []string{"backoffice", "account", "list", "--database-dsn", dsn}))

	assert.Contains(t, out.String(), "ana@clube.com")
	assert.Contains(t, out.String(), "Ana Souza")
	assert.Contains(t, out.String(), "MASTER")
	assert.Contains(t, out.String(), "1 account(s)")
}

func TestMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "backoffice.db")

	require.NoError(t, run(t, "migrate", "up", "--database-dsn", dsn))
	require.NoError(t, run(t, "migrate", "status", "--database-dsn", dsn))
	require.NoError(t, run(t, "migrate", "reset", "--database-dsn", dsn))
}
