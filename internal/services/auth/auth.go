// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth verifies back-office credentials and produces the session snapshot.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/metrics"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/background"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
)

var (
	ErrEmptyInput     = errors.New("identifier and password are required")
	ErrConfiguration  = errors.New("credential store unavailable")
	ErrNotFound       = errors.New("account not found")
	ErrAccountBlocked = errors.New("account blocked")
	ErrBadCredentials = errors.New("incorrect password")
)

// AccountBlockedError carries the reason a non-active account was refused.
type AccountBlockedError struct {
	Reason models.BlockReason
}

func (e *AccountBlockedError) Error() string {
	return "account " + string(e.Reason)
}

func (e *AccountBlockedError) Unwrap() error {
	return ErrAccountBlocked
}

// AccountStore is the part of the data store the verifier needs.
type AccountStore interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	FindAccountByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	UpdateCredentialHash(ctx context.Context, id int64, hash string) error
}

// AuditRecorder records best-effort audit events.
type AuditRecorder interface {
	Record(ctx context.Context, userID int64, action, table, description string)
}

// TaskRunner schedules best-effort work.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn background.Task)
}

// Option configures a Service.
type Option func(*Service)

// WithCPFLogin accepts the CPF as identifier besides the email.
func WithCPFLogin(enabled bool) Option {
	return func(s *Service) { s.allowCPF = enabled }
}

// WithMetrics counts login outcomes on m.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source of the session snapshot.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the credential verifier.
type Service struct {
	accounts AccountStore
	audit    AuditRecorder
	tasks    TaskRunner
	metrics  *metrics.Registry
	now      func() time.Time
	allowCPF bool
}

// NewService creates a verifier. A nil accounts store makes every attempt fail
// with ErrConfiguration.
func NewService(accounts AccountStore, audit AuditRecorder, tasks TaskRunner, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		audit:    audit,
		tasks:    tasks,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate checks identifier and password and returns a session snapshot.
// Legacy plaintext credentials are accepted once and rewritten as digests in
// the background.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.Session, error) {
	session, err := s.authenticate(ctx, identifier, password)
	s.metrics.Login(Outcome(err))
	return session, err
}

func (s *Service) authenticate(ctx context.Context, identifier, password string) (*models.Session, error) {
	identifier = strings.TrimSpace(identifier)
	password = strings.TrimSpace(password)
	if identifier == "" || password == "" {
		return nil, ErrEmptyInput
	}
	if s.accounts == nil {
		return nil, ErrConfiguration
	}

	account, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrMultipleMatches) {
			slog.Warn("login_failed", "identifier", identifier, "reason", "account_not_found")
			return nil, ErrNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Error("login_failed", "identifier", identifier, "reason", "store_error", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if reason, blocked := account.Status.LoginBlock(); blocked {
		slog.Warn("login_failed", "user_id", account.ID, "reason", "account_blocked", "status", account.Status)
		return nil, &AccountBlockedError{Reason: reason}
	}

	candidate := digest.Password(password)
	switch {
	case digest.Matches(account.CredentialHash, candidate):
	case account.CredentialHash == password:
		s.migrateCredential(ctx, account.ID, candidate)
	default:
		slog.Warn("login_failed", "user_id", account.ID, "reason", "invalid_password")
		return nil, ErrBadCredentials
	}

	session := models.NewSession(account, s.now())
	s.recordAudit(ctx, session.ID, models.AuditLogin,
		fmt.Sprintf("Usuário %s realizou login no painel.", session.Name))

	slog.Info("login_success", "user_id", session.ID, "profile", session.Profile)
	return session, nil
}

// Logout records the end of a session.
func (s *Service) Logout(ctx context.Context, session *models.Session) {
	if session == nil {
		return
	}
	s.recordAudit(ctx, session.ID, models.AuditLogout,
		fmt.Sprintf("Usuário %s saiu do painel.", session.Name))
	slog.Info("logout", "user_id", session.ID)
}

func (s *Service) lookup(ctx context.Context, identifier string) (*models.Account, error) {
	if s.allowCPF {
		return s.accounts.FindAccountByIdentifier(ctx, identifier)
	}
	return s.accounts.FindAccountByEmail(ctx, identifier)
}

func (s *Service) migrateCredential(ctx context.Context, accountID int64, hash string) {
	if s.tasks == nil {
		return
	}
	s.tasks.Go(ctx, "credential_migration", func(ctx context.Context) error {
		if err := s.accounts.UpdateCredentialHash(ctx, accountID, hash); err != nil {
			return fmt.Errorf("failed to migrate credential of account %d: %w", accountID, err)
		}
		s.metrics.CredentialMigrated()
		slog.Info("credential_migrated", "user_id", accountID)
		return nil
	})
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action, description string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, userID, action, models.AuditTableSystem, description)
}

// Outcome returns a short label for err, used in metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAccountBlocked):
		return "blocked"
	case errors.Is(err, ErrBadCredentials):
		return "bad_credentials"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}

// MessageID returns the translation id of the single user-facing message for err.
func MessageID(err error) string {
	var blocked *AccountBlockedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "login_error_empty"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBadCredentials):
		return "login_error_invalid_credentials"
	case errors.As(err, &blocked):
		switch blocked.Reason {
		case models.BlockSuspended:
			return "login_error_suspended"
		case models.BlockCancelled:
			return "login_error_cancelled"
		default:
			return "login_error_pending_cancellation"
		}
	case errors.Is(err, ErrConfiguration):
		return "login_error_configuration"
	default:
		return "login_error_unexpected"
	}
}
