// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/metrics"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/audit"
	"codeberg.org/clubedagente/backoffice/internal/services/background"
	"codeberg.org/clubedagente/backoffice/internal/services/digest"
	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
	"codeberg.org/clubedagente/backoffice/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmed(t *testing.T, f *fixture) *recovery.Wizard {
	t.Helper()
	w := f.svc.NewWizard()
	require.NoError(t, w.ConfirmIdentity(context.Background(), "a@x.com", "123.456.789-09"))
	require.Equal(t, recovery.StepCode, w.Step())
	return w
}

func verified(t *testing.T, f *fixture) *recovery.Wizard {
	t.Helper()
	w := confirmed(t, f)
	require.NoError(t, w.ValidateCode(context.Background(), f.notifier.last().code))
	require.Equal(t, recovery.StepNewPassword, w.Step())
	return w
}

func TestWizard_ScenarioD_CodeValidation(t *testing.T) {
	f := newFixture(t)
	w := f.svc.NewWizard()
	ctx := context.Background()

	require.Equal(t, recovery.StepIdentity, w.Step())
	require.NoError(t, w.ConfirmIdentity(ctx, "a@x.com", "12345678909"))
	assert.Equal(t, recovery.StepCode, w.Step())
	assert.Equal(t, delivery{to: "a@x.com", name: "Ana Lojista", code: "482913"}, f.notifier.last())

	err := w.ValidateCode(ctx, "000000")
	assert.ErrorIs(t, err, recovery.ErrIncorrectCode)
	assert.Equal(t, recovery.StepCode, w.Step())

	require.NoError(t, w.ValidateCode(ctx, "482913"))
	assert.Equal(t, recovery.StepNewPassword, w.Step())
}

func TestWizard_ScenarioE_ShortPasswordRejectedLocally(t *testing.T) {
	f := newFixture(t)
	w := verified(t, f)

	err := w.CommitPassword(context.Background(), "abc", "abc")

	assert.ErrorIs(t, err, recovery.ErrPasswordTooShort)
	assert.Equal(t, recovery.StepNewPassword, w.Step())
	_, updates := f.store.counts()
	assert.Zero(t, updates)
}

func TestWizard_PasswordValidationOrder(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		expected error
	}{
		{"both empty", "", "", recovery.ErrPasswordRequired},
		{"confirm empty", "abcdef", "", recovery.ErrPasswordRequired},
		{"blank", "   ", "   ", recovery.ErrPasswordRequired},
		{"short and mismatched", "abc", "abcdef", recovery.ErrPasswordTooShort},
		{"short and matching", "abc", "abc", recovery.ErrPasswordTooShort},
		{"long and mismatched", "abcdef", "abcdeg", recovery.ErrPasswordMismatch},
		{"mismatched by whitespace", "abcdef", "abcdef ", recovery.ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := verified(t, f)

			err := w.CommitPassword(context.Background(), tt.password, tt.confirm)

			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, recovery.StepNewPassword, w.Step())
			_, updates := f.store.counts()
			assert.Zero(t, updates)
		})
	}
}

func TestWizard_CommitPassword(t *testing.T) {
	f := newFixture(t)
	w := verified(t, f)

	require.NoError(t, w.CommitPassword(context.Background(), " NovaSenha1 ", " NovaSenha1 "))

	assert.Equal(t, recovery.StepDone, w.Step())
	assert.Equal(t, digest.Password("NovaSenha1"), f.store.accounts[0].CredentialHash)
	assert.Empty(t, w.Email())
}

func TestWizard_CommitPasswordStoreFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	w := verified(t, f)
	f.store.updateErr = errors.New("network unreachable")

	err := w.CommitPassword(context.Background(), "NovaSenha1", "NovaSenha1")
	require.ErrorIs(t, err, recovery.ErrTechnical)
	assert.Equal(t, recovery.StepNewPassword, w.Step())
	assert.False(t, w.Busy())

	f.store.updateErr = nil
	require.NoError(t, w.CommitPassword(context.Background(), "NovaSenha1", "NovaSenha1"))
	assert.Equal(t, recovery.StepDone, w.Step())
}

func TestWizard_IdentityErrors(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		cpf      string
		setup    func(*fixture)
		expected error
	}{
		{"unknown email", "b@x.com", "12345678909", nil, recovery.ErrIdentityNotFound},
		{"empty email", "  ", "12345678909", nil, recovery.ErrIdentityNotFound},
		{"wrong cpf", "a@x.com", "98765432100", nil, recovery.ErrMismatchedSecondaryFactor},
		{"empty cpf", "a@x.com", "", nil, recovery.ErrMismatchedSecondaryFactor},
		{"stored cpf absent", "a@x.com", "12345678909", func(f *fixture) {
			f.store.accounts[0].CPF = nil
		}, recovery.ErrMismatchedSecondaryFactor},
		{"ambiguous email", "a@x.com", "12345678909", func(f *fixture) {
			twin := testAccount()
			twin.ID = 43
			twin.Email = "A@X.com"
			f.store.accounts = append(f.store.accounts, twin)
		}, recovery.ErrIdentityNotFound},
		{"store down", "a@x.com", "12345678909", func(f *fixture) {
			f.store.lookupErr = errors.New("connection reset by peer")
		}, recovery.ErrTechnical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			w := f.svc.NewWizard()

			err := w.ConfirmIdentity(context.Background(), tt.email, tt.cpf)

			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, recovery.StepIdentity, w.Step())
			assert.Empty(t, f.notifier.deliveries())
			assert.False(t, w.Busy())
		})
	}
}

func TestWizard_DeliveryFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: 554 rejected")
	w := f.svc.NewWizard()

	err := w.ConfirmIdentity(context.Background(), "a@x.com", "12345678909")

	assert.ErrorIs(t, err, recovery.ErrDeliveryFailed)
	assert.Equal(t, recovery.StepIdentity, w.Step())
	assert.Empty(t, w.Email())

	f.notifier.err = nil
	require.NoError(t, w.ConfirmIdentity(context.Background(), "a@x.com", "12345678909"))
	assert.Equal(t, recovery.StepCode, w.Step())
}

func TestWizard_NilNotifierCannotDeliver(t *testing.T) {
	f := newFixture(t)
	svc := recovery.NewService(f.store, nil, nil)

	err := svc.NewWizard().ConfirmIdentity(context.Background(), "a@x.com", "12345678909")

	assert.ErrorIs(t, err, recovery.ErrDeliveryFailed)
}

func TestWizard_CodeFormat(t *testing.T) {
	f := newFixture(t, recovery.WithCodeGenerator(recovery.FixedCodes("482913")))
	w := confirmed(t, f)

	for _, code := range []string{"", "48291", "4829130", "48291a", "４８２９１３", "482 913"} {
		assert.ErrorIs(t, w.ValidateCode(context.Background(), code), recovery.ErrCodeFormat, code)
	}
	assert.Equal(t, recovery.StepCode, w.Step())

	require.NoError(t, w.ValidateCode(context.Background(), " 482913 "))
}

func TestWizard_WrongStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.svc.NewWizard()

	assert.ErrorIs(t, w.ValidateCode(ctx, "482913"), recovery.ErrWrongStep)
	assert.ErrorIs(t, w.Resend(ctx), recovery.ErrWrongStep)
	assert.ErrorIs(t, w.CommitPassword(ctx, "abcdef", "abcdef"), recovery.ErrWrongStep)
	assert.ErrorIs(t, w.Back(), recovery.ErrWrongStep)

	w = confirmed(t, f)
	assert.ErrorIs(t, w.ConfirmIdentity(ctx, "a@x.com", "12345678909"), recovery.ErrWrongStep)
	assert.ErrorIs(t, w.CommitPassword(ctx, "abcdef", "abcdef"), recovery.ErrWrongStep)
	_, updates := f.store.counts()
	assert.Zero(t, updates)
}

func TestWizard_Back(t *testing.T) {
	f := newFixture(t)
	w := confirmed(t, f)
	assert.Equal(t, "a@x.com", w.Email())

	require.NoError(t, w.Back())

	assert.Equal(t, recovery.StepIdentity, w.Step())
	assert.Empty(t, w.Email())
	assert.ErrorIs(t, w.ValidateCode(context.Background(), "482913"), recovery.ErrWrongStep)
}

func TestWizard_Cancel(t *testing.T) {
	f := newFixture(t)
	w := verified(t, f)

	w.Cancel()

	assert.Equal(t, recovery.StepIdentity, w.Step())
	assert.ErrorIs(t, w.CommitPassword(context.Background(), "NovaSenha1", "NovaSenha1"), recovery.ErrWrongStep)
}

func TestWizard_ResendCooldown(t *testing.T) {
	f := newFixture(t)
	w := confirmed(t, f)
	ctx := context.Background()

	assert.Equal(t, 60*time.Second, w.ResendIn())

	f.clock.Advance(20 * time.Second)
	err := w.Resend(ctx)
	var cooldown *recovery.CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.ErrorIs(t, err, recovery.ErrCooldownActive)
	assert.Equal(t, 40*time.Second, cooldown.Remaining)
	assert.Len(t, f.notifier.deliveries(), 1)

	f.clock.Advance(41 * time.Second)
	assert.Zero(t, w.ResendIn())
	require.NoError(t, w.Resend(ctx))
	assert.Equal(t, "175320", f.notifier.last().code)
	assert.Equal(t, 60*time.Second, w.ResendIn())

	assert.ErrorIs(t, w.ValidateCode(ctx, "482913"), recovery.ErrIncorrectCode, "previous code is replaced")
	require.NoError(t, w.ValidateCode(ctx, "175320"))
}

func TestWizard_ResendDeliveryFailureKeepsTicket(t *testing.T) {
	f := newFixture(t)
	w := confirmed(t, f)
	f.clock.Advance(time.Minute)
	f.notifier.err = errors.New("smtp down")

	err := w.Resend(context.Background())

	assert.ErrorIs(t, err, recovery.ErrDeliveryFailed)
	assert.Equal(t, recovery.StepCode, w.Step())
	require.NoError(t, w.ValidateCode(context.Background(), "482913"))
}

func TestWizard_TooManyAttempts(t *testing.T) {
	f := newFixture(t)
	svc := recovery.NewService(f.store, f.notifier, &config.RecoveryConfig{MaxAttempts: 3},
		recovery.WithClock(f.clock.Now), recovery.WithCodeGenerator(recovery.FixedCodes("482913")))
	w := svc.NewWizard()
	ctx := context.Background()
	require.NoError(t, w.ConfirmIdentity(ctx, "a@x.com", "12345678909"))

	assert.ErrorIs(t, w.ValidateCode(ctx, "111111"), recovery.ErrIncorrectCode)
	assert.ErrorIs(t, w.ValidateCode(ctx, "222222"), recovery.ErrIncorrectCode)
	assert.ErrorIs(t, w.ValidateCode(ctx, "333333"), recovery.ErrTooManyAttempts)

	assert.Equal(t, recovery.StepIdentity, w.Step())
	assert.ErrorIs(t, w.ValidateCode(ctx, "482913"), recovery.ErrWrongStep)
}

func TestWizard_ResendResetsAttempts(t *testing.T) {
	f := newFixture(t)
	svc := recovery.NewService(f.store, f.notifier, &config.RecoveryConfig{MaxAttempts: 2},
		recovery.WithClock(f.clock.Now), recovery.WithCodeGenerator(recovery.FixedCodes("482913", "175320")))
	w := svc.NewWizard()
	ctx := context.Background()
	require.NoError(t, w.ConfirmIdentity(ctx, "a@x.com", "12345678909"))

	assert.ErrorIs(t, w.ValidateCode(ctx, "111111"), recovery.ErrIncorrectCode)
	f.clock.Advance(time.Minute)
	require.NoError(t, w.Resend(ctx))
	assert.ErrorIs(t, w.ValidateCode(ctx, "111111"), recovery.ErrIncorrectCode)
	require.NoError(t, w.ValidateCode(ctx, "175320"))
}

func TestWizard_UnlimitedAttemptsWhenDisabled(t *testing.T) {
	f := newFixture(t)
	svc := recovery.NewService(f.store, f.notifier, &config.RecoveryConfig{},
		recovery.WithClock(f.clock.Now), recovery.WithCodeGenerator(recovery.FixedCodes("482913")))
	w := svc.NewWizard()
	ctx := context.Background()
	require.NoError(t, w.ConfirmIdentity(ctx, "a@x.com", "12345678909"))

	for range 20 {
		require.ErrorIs(t, w.ValidateCode(ctx, "000000"), recovery.ErrIncorrectCode)
	}
	require.NoError(t, w.ValidateCode(ctx, "482913"))
}

func TestWizard_TicketExpires(t *testing.T) {
	f := newFixture(t)
	w := confirmed(t, f)

	f.clock.Advance(15*time.Minute + time.Second)
	err := w.ValidateCode(context.Background(), "482913")

	assert.ErrorIs(t, err, recovery.ErrTicketExpired)
	assert.Equal(t, recovery.StepIdentity, w.Step())
}

func TestWizard_VerifiedTicketExpires(t *testing.T) {
	f := newFixture(t)
	w := verified(t, f)

	f.clock.Advance(16 * time.Minute)
	err := w.CommitPassword(context.Background(), "NovaSenha1", "NovaSenha1")

	assert.ErrorIs(t, err, recovery.ErrTicketExpired)
	assert.Equal(t, recovery.StepIdentity, w.Step())
	_, updates := f.store.counts()
	assert.Zero(t, updates)
}

func TestWizard_BusyRejectsConcurrentOperation(t *testing.T) {
	f := newFixture(t)
	f.notifier.blocking()
	w := f.svc.NewWizard()

	done := make(chan error, 1)
	go func() {
		done <- w.ConfirmIdentity(context.Background(), "a@x.com", "12345678909")
	}()
	<-f.notifier.entered

	assert.True(t, w.Busy())
	assert.ErrorIs(t, w.ConfirmIdentity(context.Background(), "a@x.com", "12345678909"), recovery.ErrBusy)

	close(f.notifier.block)
	require.NoError(t, <-done)
	assert.False(t, w.Busy())
	assert.Equal(t, recovery.StepCode, w.Step())
}

func TestWizard_CancelDuringOperationDropsResult(t *testing.T) {
	f := newFixture(t)
	f.notifier.blocking()
	w := f.svc.NewWizard()

	done := make(chan error, 1)
	go func() {
		done <- w.ConfirmIdentity(context.Background(), "a@x.com", "12345678909")
	}()
	<-f.notifier.entered

	w.Cancel()

	assert.ErrorIs(t, <-done, recovery.ErrCancelled)
	assert.Equal(t, recovery.StepIdentity, w.Step())
	assert.False(t, w.Busy())
	assert.Empty(t, w.Email())
}

func TestWizard_CallerCancellationKeepsState(t *testing.T) {
	f := newFixture(t)
	f.notifier.blocking()
	w := f.svc.NewWizard()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- w.ConfirmIdentity(ctx, "a@x.com", "12345678909")
	}()
	<-f.notifier.entered
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, recovery.StepIdentity, w.Step())
	assert.False(t, w.Busy())
}

func TestWizard_CancelledContextRejectedUpfront(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.svc.NewWizard().ConfirmIdentity(ctx, "a@x.com", "12345678909")

	assert.ErrorIs(t, err, context.Canceled)
	lookups, _ := f.store.counts()
	assert.Zero(t, lookups)
}

func TestWizard_Metrics(t *testing.T) {
	m := metrics.NewRegistry()
	f := newFixture(t, recovery.WithMetrics(m))
	w := confirmed(t, f)

	_ = w.ValidateCode(context.Background(), "000000")

	assert.InDelta(t, 1, promtest.ToFloat64(m.RecoveryTotal.WithLabelValues("confirm_identity", "ok")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.RecoveryTotal.WithLabelValues("validate_code", "incorrect_code")), 0)
}

func TestWizard_WithDatabase(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	runner := background.NewRunner(nil, time.Second)
	notifier := &fakeNotifier{}
	ctx := context.Background()
	account := testutil.NewTestAccount(t, repo, "lojista@example.com",
		testutil.WithName("Loja Central"), testutil.WithLegacyPassword("OldPass1"))

	svc := recovery.NewService(repo, notifier, &config.RecoveryConfig{TicketTTL: time.Minute},
		recovery.WithAudit(audit.NewRecorder(repo, runner)))
	w := svc.NewWizard()

	require.NoError(t, w.ConfirmIdentity(ctx, "LOJISTA@example.com", "12345678909"))
	code := notifier.last().code
	assert.True(t, recovery.ValidCodeFormat(code))
	require.NoError(t, w.ValidateCode(ctx, code))
	require.NoError(t, w.CommitPassword(ctx, "NovaSenha1", "NovaSenha1"))
	runner.Wait()

	stored, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, digest.Password("NovaSenha1"), stored.CredentialHash)

	entries, err := repo.ListAuditEntries(ctx, account.ID, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditPasswordReset, entries[0].Action)
	assert.Contains(t, entries[0].Description, "Loja Central")
}

func TestWizard_DeletedAccountIsTechnicalError(t *testing.T) {
	f := newFixture(t)
	w := verified(t, f)
	f.store.updateErr = repository.ErrNotFound

	err := w.CommitPassword(context.Background(), "NovaSenha1", "NovaSenha1")

	assert.ErrorIs(t, err, recovery.ErrTechnical)
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "identity", recovery.StepIdentity.String())
	assert.Equal(t, "code", recovery.StepCode.String())
	assert.Equal(t, "new_password", recovery.StepNewPassword.String())
	assert.Equal(t, "done", recovery.StepDone.String())
	assert.Equal(t, "unknown", recovery.Step(0).String())
}
