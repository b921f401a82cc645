// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/clubedagente/backoffice/internal/models"
)

// InsertAuditEntry appends an entry to tb_logs_audit and sets its ID.
func (r *Repository) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.GetContext(ctx, &entry.ID, r.q(`
		INSERT INTO tb_logs_audit (id_usuario, acao, tabela, descricao)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		entry.UserID, entry.Action, entry.Table, entry.Description)
}

// ListAuditEntries returns the latest entries of a user, newest first.
func (r *Repository) ListAuditEntries(ctx context.Context, userID int64, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	var entries []models.AuditEntry
	err := r.db.SelectContext(ctx, &entries, r.q(`
		SELECT id, id_usuario, acao, tabela, descricao, created_at
		FROM tb_logs_audit
		WHERE id_usuario = ?
		ORDER BY id DESC
		LIMIT ?`), userID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
