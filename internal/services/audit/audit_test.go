// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/services/audit"
	"codeberg.org/clubedagente/backoffice/internal/services/background"
	"codeberg.org/clubedagente/backoffice/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) InsertAuditEntry(context.Context, *models.AuditEntry) error {
	return errors.New(`relation "tb_logs_audit" does not exist`)
}

func TestNewEntry(t *testing.T) {
	entry := audit.NewEntry(3, "login", "", "Usuário X realizou login no painel.")

	assert.Equal(t, models.AuditLogin, entry.Action)
	assert.Equal(t, models.AuditTableSystem, entry.Table)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(3), *entry.UserID)

	anonymous := audit.NewEntry(0, "navigate", "tb_usuarios", "")
	assert.Nil(t, anonymous.UserID)
	assert.Equal(t, "TB_USUARIOS", anonymous.Table)
}

func TestRecorder_Record(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	account := testutil.NewTestAccount(t, repo, "rec@example.com")
	runner := background.NewRunner(nil, time.Second)
	recorder := audit.NewRecorder(repo, runner)

	recorder.Record(context.Background(), account.ID, models.AuditLogout, models.AuditTableSystem, "Usuário saiu do painel.")
	runner.Wait()

	entries, err := repo.ListAuditEntries(context.Background(), account.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditLogout, entries[0].Action)
}

func TestRecorder_FailureIsInvisible(t *testing.T) {
	var buf bytes.Buffer
	runner := background.NewRunner(slog.New(slog.NewTextHandler(&buf, nil)), time.Second)
	recorder := audit.NewRecorder(failingStore{}, runner)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), 1, models.AuditLogin, "", "x")
	})
	runner.Wait()

	assert.Contains(t, buf.String(), "tb_logs_audit")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var recorder *audit.Recorder
	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), 1, models.AuditLogin, "", "x")
	})

	assert.NotPanics(t, func() {
		audit.NewRecorder(nil, nil).Record(context.Background(), 1, models.AuditLogin, "", "x")
	})
}
