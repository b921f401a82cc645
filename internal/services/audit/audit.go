// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package audit records operator actions in tb_logs_audit on a best-effort basis.
package audit

import (
	"context"
	"strings"

	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/services/background"
)

// Store persists audit entries.
type Store interface {
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// TaskRunner schedules best-effort work.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn background.Task)
}

// Recorder writes audit entries without ever failing the caller.
type Recorder struct {
	store Store
	tasks TaskRunner
}

// NewRecorder creates a recorder. A nil store disables recording.
func NewRecorder(store Store, tasks TaskRunner) *Recorder {
	return &Recorder{store: store, tasks: tasks}
}

// Record schedules an audit entry. userID 0 records an entry without user.
func (r *Recorder) Record(ctx context.Context, userID int64, action, table, description string) {
	if r == nil || r.store == nil {
		return
	}

	entry := NewEntry(userID, action, table, description)
	r.tasks.Go(ctx, "audit", func(ctx context.Context) error {
		return r.store.InsertAuditEntry(ctx, entry)
	})
}

// NewEntry normalizes an audit entry: action and table upper-cased, table
// defaulting to SISTEMA.
func NewEntry(userID int64, action, table, description string) *models.AuditEntry {
	table = strings.ToUpper(strings.TrimSpace(table))
	if table == "" {
		table = models.AuditTableSystem
	}

	entry := &models.AuditEntry{
		Action:      strings.ToUpper(strings.TrimSpace(action)),
		Table:       table,
		Description: description,
	}
	if userID != 0 {
		entry.UserID = &userID
	}
	return entry
}
