// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/clubedagente/backoffice/internal/models"
	"github.com/google/uuid"
)

const accountColumns = `id, uuid, nome_completo, nome, email, cpf, senha_hash, status_conta,
	perfil, role, foto_perfil_url, preferencia_tema, created_at, updated_at`

// cpfDigitsExpr strips the mask characters the admin screens store with the CPF.
const cpfDigitsExpr = `replace(replace(replace(coalesce(cpf, ''), '.', ''), '-', ''), ' ', '')`

// NewAccount holds the fields needed to create an account.
type NewAccount struct {
	FullName       string
	Email          string
	CPF            string
	CredentialHash string
	Status         models.AccountStatus
	Profile        string
	Role           string
}

// CreateAccount inserts a new account and returns it.
func (r *Repository) CreateAccount(ctx context.Context, a NewAccount) (*models.Account, error) {
	status := a.Status
	if status == "" {
		status = models.StatusActive
	}

	var id int64
	err := r.db.GetContext(ctx, &id, r.q(`
		INSERT INTO tb_usuarios (uuid, nome_completo, email, cpf, senha_hash, status_conta, perfil, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		uuid.NewString(), models.Ptr(a.FullName), strings.TrimSpace(a.Email), models.Ptr(a.CPF),
		a.CredentialHash, status, models.Ptr(a.Profile), models.Ptr(a.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return r.GetAccountByID(ctx, id)
}

// GetAccountByID retrieves an account by its ID.
func (r *Repository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, r.q(`SELECT `+accountColumns+` FROM tb_usuarios WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// FindAccountByEmail retrieves the single account registered under email.
// Emails are compared case-insensitively; ErrMultipleMatches is returned when
// the comparison is ambiguous.
func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts,
		r.q(`SELECT `+accountColumns+` FROM tb_usuarios WHERE lower(email) = lower(?) LIMIT 2`),
		strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return single(accounts)
}

// FindAccountByCPF retrieves the single account whose CPF digits equal cpf's digits.
func (r *Repository) FindAccountByCPF(ctx context.Context, cpf string) (*models.Account, error) {
	digits := models.Digits(cpf)
	if digits == "" {
		return nil, ErrNotFound
	}

	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts,
		r.q(`SELECT `+accountColumns+` FROM tb_usuarios WHERE `+cpfDigitsExpr+` = ? LIMIT 2`), digits)
	if err != nil {
		return nil, err
	}
	return single(accounts)
}

// FindAccountByIdentifier looks an account up by email or, when the identifier
// has no @, by CPF.
func (r *Repository) FindAccountByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	if strings.Contains(identifier, "@") {
		return r.FindAccountByEmail(ctx, identifier)
	}
	return r.FindAccountByCPF(ctx, identifier)
}

// UpdateCredentialHash replaces the stored credential hash.
func (r *Repository) UpdateCredentialHash(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE tb_usuarios SET senha_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		hash, id)
	if err != nil {
		return err
	}
	return expectAffected(res.RowsAffected())
}

// UpdateAccountStatus sets status_conta for the account registered under email.
func (r *Repository) UpdateAccountStatus(ctx context.Context, email string, status models.AccountStatus) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE tb_usuarios SET status_conta = ?, updated_at = CURRENT_TIMESTAMP WHERE lower(email) = lower(?)`),
		status, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	return expectAffected(res.RowsAffected())
}

// ListAccounts returns all accounts, newest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts, `SELECT `+accountColumns+` FROM tb_usuarios ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// CountAccounts returns the total number of accounts.
func (r *Repository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tb_usuarios`)
	return count, err
}

func expectAffected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
