// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Audit actions written by the back-office.
const (
	AuditLogin         = "LOGIN"
	AuditLogout        = "LOGOUT"
	AuditPasswordReset = "PASSWORD_RESET"
	AuditNavigate      = "NAVIGATE"

	// AuditTableSystem is the table label for events not tied to a record.
	AuditTableSystem = "SISTEMA"
)

// AuditEntry is a row of tb_logs_audit.
type AuditEntry struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64     `db:"id" json:"id"`
	UserID      *int64    `db:"id_usuario" json:"id_usuario,omitempty"`
	Action      string    `db:"acao" json:"acao"`
	Table       string    `db:"tabela" json:"tabela"`
	Description string    `db:"descricao" json:"descricao"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
