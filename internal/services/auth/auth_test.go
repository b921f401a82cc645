// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/metrics"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/audit"
	"codeberg.org/clubedagente/backoffice/internal/services/auth"
	"codeberg.org/clubedagente/backoffice/internal/services/background"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
	"codeberg.org/clubedagente/backoffice/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory account store with failure injection.
type fakeStore struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	lookupErr error
	updateErr error
	lookups   int
	updates   int
}

func newFakeStore(accounts ...*models.Account) *fakeStore {
	s := &fakeStore{accounts: make(map[string]*models.Account)}
	for _, a := range accounts {
		s.accounts[a.Email] = a
	}
	return s
}

func (s *fakeStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	a, ok := s.accounts[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *fakeStore) FindAccountByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return s.FindAccountByEmail(ctx, identifier)
}

func (s *fakeStore) UpdateCredentialHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, a := range s.accounts {
		if a.ID == id {
			a.CredentialHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) hashOf(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[email].CredentialHash
}

type failingAudit struct{}

func (failingAudit) InsertAuditEntry(context.Context, *models.AuditEntry) error {
	return errors.New("audit table missing")
}

func account(status models.AccountStatus, hash string) *models.Account {
	return &models.Account{
		ID:             1,
		UUID:           "b9a3a1a0-0000-4000-8000-000000000001",
		Email:          "a@x.com",
		CPF:            models.Ptr("12345678909"),
		CredentialHash: hash,
		Status:         status,
		FullName:       models.Ptr("Ana Lojista"),
	}
}

func newService(t *testing.T, store auth.AccountStore, opts ...auth.Option) (*auth.Service, *background.Runner) {
	t.Helper()
	runner := background.NewRunner(nil, time.Second)
	t.Cleanup(runner.Wait)
	return auth.NewService(store, nil, runner, opts...), runner
}

func TestAuthenticate_ScenarioA_CurrentFormat(t *testing.T) {
	store := newFakeStore(account(models.StatusActive, digest.Digest("Secret1")))
	svc, runner := newService(t, store)

	session, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")
	runner.Wait()

	require.NoError(t, err)
	assert.Equal(t, int64(1), session.ID)
	assert.Equal(t, "Ana Lojista", session.Name)
	assert.Equal(t, 0, store.updates, "no migration for current-format hashes")
}

func TestAuthenticate_UpperCaseStoredHash(t *testing.T) {
	hash := digest.Digest("Secret1")
	store := newFakeStore(account(models.StatusActive, strings.ToUpper(hash)))
	svc, runner := newService(t, store)

	_, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")
	runner.Wait()

	require.NoError(t, err)
	assert.Equal(t, 0, store.updates)
}

func TestAuthenticate_ScenarioB_BlockedRegardlessOfPassword(t *testing.T) {
	tests := []struct {
		status models.AccountStatus
		reason models.BlockReason
	}{
		{models.StatusSuspended, models.BlockSuspended},
		{models.StatusCancelled, models.BlockCancelled},
		{models.StatusCancellationRequested, models.BlockPendingCancellation},
		{"INATIVO", models.BlockPendingCancellation},
		{"", models.BlockPendingCancellation},
	}

	for _, tt := range tests {
		for _, password := range []string{"Secret1", "wrong"} {
			t.Run(string(tt.status)+"/"+password, func(t *testing.T) {
				store := newFakeStore(account(tt.status, digest.Digest("Secret1")))
				svc, _ := newService(t, store)

				session, err := svc.Authenticate(context.Background(), "a@x.com", password)

				assert.Nil(t, session)
				require.ErrorIs(t, err, auth.ErrAccountBlocked)
				var blocked *auth.AccountBlockedError
				require.ErrorAs(t, err, &blocked)
				assert.Equal(t, tt.reason, blocked.Reason)
			})
		}
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	store := newFakeStore(account(models.StatusActive, digest.Digest("Secret1")))
	svc, _ := newService(t, store)

	_, err := svc.Authenticate(context.Background(), "a@x.com", "secret1")

	assert.ErrorIs(t, err, auth.ErrBadCredentials)
}

func TestAuthenticate_NotFound(t *testing.T) {
	store := newFakeStore()
	svc, _ := newService(t, store)

	_, err := svc.Authenticate(context.Background(), "nobody@x.com", "Secret1")

	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAuthenticate_AmbiguousIsNotFound(t *testing.T) {
	store := newFakeStore()
	store.lookupErr = repository.ErrMultipleMatches
	svc, _ := newService(t, store)

	_, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")

	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAuthenticate_EmptyInputDoesNotTouchStore(t *testing.T) {
	tests := []struct {
		identifier string
		password   string
	}{
		{"", "Secret1"},
		{"a@x.com", ""},
		{"   ", "Secret1"},
		{"a@x.com", "  \t"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%q", tt.identifier, tt.password), func(t *testing.T) {
			store := newFakeStore(account(models.StatusActive, digest.Digest("Secret1")))
			svc, _ := newService(t, store)

			_, err := svc.Authenticate(context.Background(), tt.identifier, tt.password)

			assert.ErrorIs(t, err, auth.ErrEmptyInput)
			assert.Equal(t, 0, store.lookups)
		})
	}
}

func TestAuthenticate_TrimsInput(t *testing.T) {
	store := newFakeStore(account(models.StatusActive, digest.Digest("Secret1")))
	svc, _ := newService(t, store)

	_, err := svc.Authenticate(context.Background(), "  a@x.com ", " Secret1 ")

	assert.NoError(t, err)
}

func TestAuthenticate_ConfigurationErrors(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		svc := auth.NewService(nil, nil, nil)

		_, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")

		assert.ErrorIs(t, err, auth.ErrConfiguration)
	})

	t.Run("store unreachable", func(t *testing.T) {
		store := newFakeStore()
		store.lookupErr = errors.New("dial tcp: connection refused")
		svc, _ := newService(t, store)

		_, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")

		assert.ErrorIs(t, err, auth.ErrConfiguration)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAuthenticate_ScenarioC_LegacyMigration(t *testing.T) {
	store := newFakeStore(account(models.StatusActive, "OldPass1"))
	svc, runner := newService(t, store)

	_, err := svc.Authenticate(context.Background(), "a@x.com", "OldPass1")
	require.NoError(t, err)
	runner.Wait()

	assert.Equal(t, digest.Digest("OldPass1"), store.hashOf("a@x.com"))
	assert.Equal(t, 1, store.updates)

	_, err = svc.Authenticate(context.Background(), "a@x.com", "OldPass1")
	require.NoError(t, err)
	runner.Wait()

	assert.Equal(t, 1, store.updates, "second login uses the current-format path")
}

func TestAuthenticate_LegacyMigrationFailureIsInvisible(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.NewRegistry()
	store := newFakeStore(account(models.StatusActive, "OldPass1"))
	store.updateErr = errors.New("permission denied for table tb_usuarios")
	runner := background.NewRunner(slog.New(slog.NewTextHandler(&buf, nil)), time.Second).WithMetrics(m)
	svc := auth.NewService(store, nil, runner, auth.WithMetrics(m))

	session, err := svc.Authenticate(context.Background(), "a@x.com", "OldPass1")
	runner.Wait()

	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, "OldPass1", store.hashOf("a@x.com"))
	assert.Contains(t, buf.String(), "permission denied")
	assert.InDelta(t, 1, promtest.ToFloat64(m.TaskFailuresTotal.WithLabelValues("credential_migration")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.LoginsTotal.WithLabelValues("success")), 0)
}

func TestAuthenticate_AuditFailureIsInvisible(t *testing.T) {
	store := newFakeStore(account(models.StatusActive, digest.Digest("Secret1")))
	runner := background.NewRunner(slog.New(slog.DiscardHandler), time.Second)
	svc := auth.NewService(store, audit.NewRecorder(failingAudit{}, runner), runner)

	session, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")
	runner.Wait()

	require.NoError(t, err)
	assert.Equal(t, "Ana Lojista", session.Name)
}

func TestAuthenticate_SessionSnapshot(t *testing.T) {
	issued := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	a := account(models.StatusActive, digest.Digest("Secret1"))
	a.FullName = nil
	a.Name = nil
	a.Role = models.Ptr("gerente")
	store := newFakeStore(a)
	svc, _ := newService(t, store, auth.WithClock(func() time.Time { return issued }))

	session, err := svc.Authenticate(context.Background(), "a@x.com", "Secret1")

	require.NoError(t, err)
	assert.Equal(t, models.DefaultDisplayName, session.Name)
	assert.Equal(t, "gerente", session.Role)
	assert.Equal(t, "GERENTE", session.Profile)
	assert.Equal(t, issued, session.IssuedAt)
}

func TestAuthenticate_WithDatabase(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	runner := background.NewRunner(nil, time.Second)
	svc := auth.NewService(repo, audit.NewRecorder(repo, runner), runner, auth.WithCPFLogin(true))
	ctx := context.Background()
	created := testutil.NewTestAccount(t, repo, "Parceiro@Example.com",
		testutil.WithName("Parceiro Teste"), testutil.WithLegacyPassword("OldPass1"))

	session, err := svc.Authenticate(ctx, "parceiro@example.com", "OldPass1")
	require.NoError(t, err)
	runner.Wait()
	assert.Equal(t, created.ID, session.ID)

	stored, err := repo.GetAccountByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, digest.Password("OldPass1"), stored.CredentialHash)

	session, err = svc.Authenticate(ctx, testutil.TestCPF, "OldPass1")
	require.NoError(t, err)
	runner.Wait()
	assert.Equal(t, created.ID, session.ID)

	svc.Logout(ctx, session)
	runner.Wait()

	entries, err := repo.ListAuditEntries(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.AuditLogout, entries[0].Action)
	assert.Equal(t, models.AuditLogin, entries[2].Action)
	assert.Equal(t, "Usuário Parceiro Teste realizou login no painel.", entries[2].Description)
}

func TestAuthenticate_CPFRequiresOption(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "cpf@example.com")
	svc, _ := newService(t, repo)

	_, err := svc.Authenticate(context.Background(), testutil.TestCPF, testutil.TestPassword)

	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMessageID(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{auth.ErrEmptyInput, "login_error_empty"},
		{auth.ErrNotFound, "login_error_invalid_credentials"},
		{&auth.AccountBlockedError{Reason: models.BlockSuspended}, "login_error_suspended"},
		{&auth.AccountBlockedError{Reason: models.BlockCancelled}, "login_error_cancelled"},
		{&auth.AccountBlockedError{Reason: models.BlockPendingCancellation}, "login_error_pending_cancellation"},
		{auth.ErrBadCredentials, "login_error_invalid_credentials"},
		{fmt.Errorf("%w: boom", auth.ErrConfiguration), "login_error_configuration"},
		{errors.New("other"), "login_error_unexpected"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, auth.MessageID(tt.err))
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", auth.Outcome(nil))
	assert.Equal(t, "blocked", auth.Outcome(&auth.AccountBlockedError{Reason: models.BlockSuspended}))
	assert.Equal(t, "bad_credentials", auth.Outcome(auth.ErrBadCredentials))
}
