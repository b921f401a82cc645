// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package recovery implements the three-step password recovery wizard:
// identity confirmation, code validation and new password commit.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/metrics"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
)

var (
	ErrIdentityNotFound          = errors.New("no account registered with this email")
	ErrMismatchedSecondaryFactor = errors.New("identity data does not match")
	ErrDeliveryFailed            = errors.New("recovery code could not be delivered")
	ErrCodeFormat                = errors.New("code must have 6 digits")
	ErrIncorrectCode             = errors.New("incorrect code")
	ErrCooldownActive            = errors.New("resend cooldown active")
	ErrPasswordRequired          = errors.New("new password and confirmation are required")
	ErrPasswordTooShort          = errors.New("new password is too short")
	ErrPasswordMismatch          = errors.New("passwords do not match")
	ErrWrongStep                 = errors.New("operation not allowed in the current step")
	ErrTechnical                 = errors.New("technical error, try again")
	ErrBusy                      = errors.New("another operation is in progress")
	ErrTicketExpired             = errors.New("recovery code expired")
	ErrTooManyAttempts           = errors.New("too many incorrect codes")
	ErrCancelled                 = errors.New("recovery flow was restarted")
)

// CooldownError is returned by Resend while the cooldown runs.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend available in %s", e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}

// Step is a state of the wizard.
type Step int

const (
	StepIdentity Step = iota + 1
	StepCode
	StepNewPassword
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepIdentity:
		return "identity"
	case StepCode:
		return "code"
	case StepNewPassword:
		return "new_password"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// AccountStore is the part of the data store the wizard needs.
type AccountStore interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateCredentialHash(ctx context.Context, id int64, hash string) error
}

// Notifier delivers a recovery code out of band.
type Notifier interface {
	SendRecoveryCode(ctx context.Context, to, name, code string) error
}

// AuditRecorder records best-effort audit events.
type AuditRecorder interface {
	Record(ctx context.Context, userID int64, action, table, description string)
}

// Option configures a Service.
type Option func(*Service)

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *Service) { s.generate = gen }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics counts wizard outcomes on m.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit records completed resets.
func WithAudit(a AuditRecorder) Option {
	return func(s *Service) { s.audit = a }
}

// Service holds the collaborators shared by all wizards.
type Service struct { //nolint:govet // fieldalignment not critical
	accounts AccountStore
	notifier Notifier
	audit    AuditRecorder
	metrics  *metrics.Registry
	generate CodeGenerator
	now      func() time.Time
	cfg      config.RecoveryConfig
}

// NewService creates the wizard factory.
func NewService(accounts AccountStore, notifier Notifier, cfg *config.RecoveryConfig, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		notifier: notifier,
		generate: RandomCode,
		now:      time.Now,
	}
	if cfg != nil {
		s.cfg = *cfg
	}
	if s.cfg.ResendCooldown <= 0 {
		s.cfg.ResendCooldown = 60 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWizard starts a flow in StepIdentity.
func (s *Service) NewWizard() *Wizard {
	return &Wizard{svc: s, step: StepIdentity}
}

// ticket is the state bound to one identity confirmation.
type ticket struct { //nolint:govet // fieldalignment not critical
	email     string
	cpf       string
	name      string
	codeHash  []byte
	accountID int64
	attempts  int
	sentAt    time.Time
	expiresAt time.Time
}

// Wizard is one recovery flow. It is safe for concurrent use; a second
// operation started while one is running fails with ErrBusy.
type Wizard struct {
	svc        *Service
	ticket     *ticket
	cancel     context.CancelFunc
	generation uint64
	mu         sync.Mutex
	step       Step
	busy       bool
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Busy reports whether an operation is running.
func (w *Wizard) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Email returns the email of the confirmed identity, if any.
func (w *Wizard) Email() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ticket == nil {
		return ""
	}
	return w.ticket.email
}

// ResendIn returns how long until Resend is allowed; zero when it is.
func (w *Wizard) ResendIn() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ticket == nil {
		return 0
	}
	return max(0, w.ticket.sentAt.Add(w.svc.cfg.ResendCooldown).Sub(w.svc.now()))
}

// ConfirmIdentity looks up the account by email, checks the CPF and sends a
// fresh code. Delivery failures keep the wizard in StepIdentity.
func (w *Wizard) ConfirmIdentity(ctx context.Context, email, cpf string) error {
	err := w.confirmIdentity(ctx, email, cpf)
	w.svc.metrics.Recovery("confirm_identity", outcome(err))
	return err
}

func (w *Wizard) confirmIdentity(ctx context.Context, email, cpf string) error {
	op, err := w.begin(ctx, StepIdentity)
	if err != nil {
		return err
	}
	defer op.end()

	code, err := w.svc.generate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTechnical, err)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return ErrIdentityNotFound
	}
	if w.svc.accounts == nil {
		return ErrTechnical
	}

	account, err := w.svc.accounts.FindAccountByEmail(op.ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrMultipleMatches) {
			slog.Warn("recovery_identity_failed", "email", email, "reason", "account_not_found")
			return ErrIdentityNotFound
		}
		return op.failure("recovery_lookup_failed", err)
	}

	if !sameCPF(account.CPFDigits(), cpf) {
		slog.Warn("recovery_identity_failed", "user_id", account.ID, "reason", "cpf_mismatch")
		return ErrMismatchedSecondaryFactor
	}

	hash, err := hashCode(code)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTechnical, err)
	}

	name := account.DisplayNameOr("")
	if err := w.dispatch(op, account.Email, name, code); err != nil {
		return err
	}

	now := w.svc.now()
	t := &ticket{
		email:     account.Email,
		cpf:       FormatCPF(cpf),
		name:      name,
		codeHash:  hash,
		accountID: account.ID,
		sentAt:    now,
		expiresAt: w.expiry(now),
	}
	return op.commit(func() {
		w.ticket = t
		w.step = StepCode
		slog.Info("recovery_code_sent", "user_id", account.ID)
	})
}

// ValidateCode compares code with the ticket. A match moves to StepNewPassword.
func (w *Wizard) ValidateCode(ctx context.Context, code string) error {
	err := w.validateCode(ctx, code)
	w.svc.metrics.Recovery("validate_code", outcome(err))
	return err
}

func (w *Wizard) validateCode(ctx context.Context, code string) error {
	op, err := w.begin(ctx, StepCode)
	if err != nil {
		return err
	}
	defer op.end()

	code = strings.TrimSpace(code)
	if !ValidCodeFormat(code) {
		return ErrCodeFormat
	}
	if op.expired(w.svc.now()) {
		return op.restart(ErrTicketExpired)
	}

	if codeMatches(op.ticket.codeHash, code) {
		now := w.svc.now()
		return op.commit(func() {
			w.ticket.expiresAt = w.expiry(now)
			w.step = StepNewPassword
		})
	}

	var exhausted bool
	if err := op.commit(func() {
		w.ticket.attempts++
		exhausted = w.svc.cfg.MaxAttempts > 0 && w.ticket.attempts >= w.svc.cfg.MaxAttempts
	}); err != nil {
		return err
	}
	if exhausted {
		slog.Warn("recovery_code_locked", "user_id", op.ticket.accountID)
		return op.restart(ErrTooManyAttempts)
	}
	return ErrIncorrectCode
}

// Resend issues a new code once the cooldown has passed. The previous code
// stops working and the attempt counter is reset.
func (w *Wizard) Resend(ctx context.Context) error {
	err := w.resend(ctx)
	w.svc.metrics.Recovery("resend", outcome(err))
	return err
}

func (w *Wizard) resend(ctx context.Context) error {
	op, err := w.begin(ctx, StepCode)
	if err != nil {
		return err
	}
	defer op.end()

	now := w.svc.now()
	if remaining := op.ticket.sentAt.Add(w.svc.cfg.ResendCooldown).Sub(now); remaining > 0 {
		return &CooldownError{Remaining: remaining}
	}

	code, err := w.svc.generate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTechnical, err)
	}
	hash, err := hashCode(code)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTechnical, err)
	}
	if err := w.dispatch(op, op.ticket.email, op.ticket.name, code); err != nil {
		return err
	}

	sent := w.svc.now()
	return op.commit(func() {
		w.ticket.codeHash = hash
		w.ticket.attempts = 0
		w.ticket.sentAt = sent
		w.ticket.expiresAt = w.expiry(sent)
		slog.Info("recovery_code_resent", "user_id", w.ticket.accountID)
	})
}

// CommitPassword validates and stores the new password. Validation never
// touches the data store.
func (w *Wizard) CommitPassword(ctx context.Context, newPassword, confirm string) error {
	err := w.commitPassword(ctx, newPassword, confirm)
	w.svc.metrics.Recovery("commit_password", outcome(err))
	return err
}

func (w *Wizard) commitPassword(ctx context.Context, newPassword, confirm string) error {
	op, err := w.begin(ctx, StepNewPassword)
	if err != nil {
		return err
	}
	defer op.end()

	if err := ValidateNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if op.expired(w.svc.now()) {
		return op.restart(ErrTicketExpired)
	}
	if w.svc.accounts == nil {
		return ErrTechnical
	}

	hash := digest.Password(strings.TrimSpace(newPassword))
	if err := w.svc.accounts.UpdateCredentialHash(op.ctx, op.ticket.accountID, hash); err != nil {
		return op.failure("recovery_commit_failed", err)
	}

	accountID, name := op.ticket.accountID, op.ticket.name
	if err := op.commit(func() {
		w.ticket = nil
		w.step = StepDone
	}); err != nil {
		return err
	}

	slog.Info("password_reset", "user_id", accountID)
	if w.svc.audit != nil {
		if name == "" {
			name = models.DefaultDisplayName
		}
		w.svc.audit.Record(ctx, accountID, models.AuditPasswordReset, models.AuditTableSystem,
			fmt.Sprintf("Usuário %s redefiniu a senha pelo assistente de recuperação.", name))
	}
	return nil
}

// Back returns from StepCode to StepIdentity and discards the ticket.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepCode {
		return ErrWrongStep
	}
	w.resetLocked()
	return nil
}

// Cancel discards the flow from any step, aborting a running operation.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Wizard) resetLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.generation++
	w.busy = false
	w.ticket = nil
	w.step = StepIdentity
}

func (w *Wizard) expiry(from time.Time) time.Time {
	if w.svc.cfg.TicketTTL <= 0 {
		return time.Time{}
	}
	return from.Add(w.svc.cfg.TicketTTL)
}

func (w *Wizard) dispatch(op *operation, to, name, code string) error {
	if w.svc.notifier == nil {
		return ErrDeliveryFailed
	}
	if err := w.svc.notifier.SendRecoveryCode(op.ctx, to, name, code); err != nil {
		if ctxErr := op.ctx.Err(); ctxErr != nil {
			return op.abort()
		}
		slog.Error("recovery_delivery_failed", "email", to, "error", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// operation is one running wizard call. State changes go through commit,
// which drops them when the flow was reset in the meantime.
type operation struct {
	w      *Wizard
	ctx    context.Context
	cancel context.CancelFunc
	ticket *ticket
	gen    uint64
}

func (w *Wizard) begin(ctx context.Context, expected Step) (*operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return nil, ErrBusy
	}
	if w.step != expected {
		return nil, ErrWrongStep
	}

	opCtx, cancel := context.WithCancel(ctx)
	w.busy = true
	w.cancel = cancel

	op := &operation{w: w, ctx: opCtx, cancel: cancel, gen: w.generation}
	if w.ticket != nil {
		t := *w.ticket
		op.ticket = &t
	}
	return op, nil
}

func (op *operation) end() {
	op.cancel()
	op.w.mu.Lock()
	defer op.w.mu.Unlock()
	if op.w.generation == op.gen {
		op.w.busy = false
		op.w.cancel = nil
	}
}

// commit applies fn unless the flow was reset or the caller went away.
func (op *operation) commit(fn func()) error {
	op.w.mu.Lock()
	defer op.w.mu.Unlock()
	if op.w.generation != op.gen {
		return ErrCancelled
	}
	if err := op.ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// restart discards the ticket and returns to StepIdentity, then returns cause.
func (op *operation) restart(cause error) error {
	op.w.mu.Lock()
	defer op.w.mu.Unlock()
	if op.w.generation != op.gen {
		return ErrCancelled
	}
	op.w.ticket = nil
	op.w.step = StepIdentity
	op.w.generation++
	op.w.busy = false
	op.w.cancel = nil
	return cause
}

func (op *operation) abort() error {
	op.w.mu.Lock()
	defer op.w.mu.Unlock()
	if op.w.generation != op.gen {
		return ErrCancelled
	}
	return op.ctx.Err()
}

// failure maps a data store error to ErrTechnical, or to the cancellation
// cause when the operation was aborted.
func (op *operation) failure(event string, err error) error {
	if op.ctx.Err() != nil {
		return op.abort()
	}
	slog.Error(event, "error", err)
	return fmt.Errorf("%w: %w", ErrTechnical, err)
}

func (op *operation) expired(now time.Time) bool {
	return op.ticket != nil && !op.ticket.expiresAt.IsZero() && now.After(op.ticket.expiresAt)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrIdentityNotFound):
		return "identity_not_found"
	case errors.Is(err, ErrMismatchedSecondaryFactor):
		return "mismatched_cpf"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrCodeFormat), errors.Is(err, ErrIncorrectCode):
		return "incorrect_code"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, ErrPasswordRequired), errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordMismatch):
		return "invalid_password"
	case errors.Is(err, ErrTicketExpired):
		return "expired"
	case errors.Is(err, ErrTooManyAttempts):
		return "locked"
	case errors.Is(err, ErrBusy), errors.Is(err, ErrWrongStep):
		return "rejected"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "technical"
	}
}
