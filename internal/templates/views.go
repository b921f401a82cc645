// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"strings"

	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
)

// LoginForm carries what the login page echoes back after a failed attempt.
type LoginForm struct {
	Identifier string
	Error      string // translated message, empty when there is none
	Notice     string
	AllowCPF   bool
}

func (f LoginForm) identifierLabel(ctx context.Context) string {
	if f.AllowCPF {
		return T(ctx, "login_identifier_cpf_label")
	}
	return T(ctx, "login_identifier_label")
}

func (f LoginForm) identifierType() string {
	if f.AllowCPF {
		return "text"
	}
	return "email"
}

// RecoveryView is the state the recovery page shows.
type RecoveryView struct {
	Email         string
	CPF           string
	Error         string // translated message, empty when there is none
	Step          recovery.Step
	ResendSeconds int
}

// RecoveryMailData is what the recovery code e-mail shows.
type RecoveryMailData struct {
	Name    string
	Code    string
	Minutes int
}

func (d RecoveryMailData) name(ctx context.Context) string {
	if strings.TrimSpace(d.Name) == "" {
		return T(ctx, "recovery_mail_default_name")
	}
	return d.Name
}

// RecoveryMailText renders the plain-text alternative of the recovery code e-mail.
func RecoveryMailText(ctx context.Context, d RecoveryMailData) string {
	var b strings.Builder
	b.WriteString(T(ctx, "recovery_mail_title"))
	b.WriteString("\n\n")
	b.WriteString(TData(ctx, "recovery_mail_greeting", map[string]any{"Name": d.name(ctx)}))
	b.WriteString("\n\n")
	b.WriteString(T(ctx, "recovery_mail_intro"))
	b.WriteString("\n\n    ")
	b.WriteString(d.Code)
	b.WriteString("\n\n")
	b.WriteString(TData(ctx, "recovery_mail_validity", map[string]any{"Minutes": d.Minutes}))
	b.WriteString("\n\n-- \n")
	b.WriteString(T(ctx, "recovery_mail_footer"))
	b.WriteString("\n")
	return b.String()
}
