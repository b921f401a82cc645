// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"codeberg.org/clubedagente/backoffice/internal/database"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// TestPassword is the password of accounts created by NewTestAccount.
const TestPassword = "segredo123"

// TestCPF is the CPF of accounts created by NewTestAccount, stored masked.
const TestCPF = "123.456.789-09"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// AccountOption customizes an account created by NewTestAccount.
type AccountOption func(*repository.NewAccount)

// WithStatus sets the account status.
func WithStatus(status models.AccountStatus) AccountOption {
	return func(a *repository.NewAccount) { a.Status = status }
}

// WithLegacyPassword stores the password in plaintext, as older rows do.
func WithLegacyPassword(password string) AccountOption {
	return func(a *repository.NewAccount) { a.CredentialHash = password }
}

// WithCPF overrides the stored CPF.
func WithCPF(cpf string) AccountOption {
	return func(a *repository.NewAccount) { a.CPF = cpf }
}

// WithName sets the full name.
func WithName(name string) AccountOption {
	return func(a *repository.NewAccount) { a.FullName = name }
}

// NewTestAccount creates an active account with TestPassword and TestCPF.
func NewTestAccount(t *testing.T, repo *repository.Repository, email string, opts ...AccountOption) *models.Account {
	t.Helper()
	params := repository.NewAccount{
		FullName:       "Conta de Teste",
		Email:          email,
		CPF:            TestCPF,
		CredentialHash: digest.Password(TestPassword),
		Status:         models.StatusActive,
	}
	for _, opt := range opts {
		opt(&params)
	}
	account, err := repo.CreateAccount(context.Background(), params)
	require.NoError(t, err)
	return account
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
