// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultDisplayName is shown when an account carries no name at all.
	DefaultDisplayName = "Usuário"
	// DefaultProfile is the lowest back-office tier.
	DefaultProfile = "LOJISTA"
	// DefaultRole is used when the account has no role column value.
	DefaultRole = "admin"
)

// Account is an operator or partner record from tb_usuarios.
type Account struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64         `db:"id" json:"id"`
	UUID            string        `db:"uuid" json:"uuid"`
	FullName        *string       `db:"nome_completo" json:"nome_completo,omitempty"`
	Name            *string       `db:"nome" json:"nome,omitempty"`
	Email           string        `db:"email" json:"email"`
	CPF             *string       `db:"cpf" json:"-"`
	CredentialHash  string        `db:"senha_hash" json:"-"`
	Status          AccountStatus `db:"status_conta" json:"status_conta"`
	Profile         *string       `db:"perfil" json:"perfil,omitempty"`
	Role            *string       `db:"role" json:"role,omitempty"`
	PhotoURL        *string       `db:"foto_perfil_url" json:"foto_perfil_url,omitempty"`
	ThemePreference *string       `db:"preferencia_tema" json:"preferencia_tema,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the first non-blank of full name and name.
func (a *Account) DisplayName() string {
	return a.DisplayNameOr(DefaultDisplayName)
}

// DisplayNameOr is DisplayName with a caller-chosen fallback.
func (a *Account) DisplayNameOr(fallback string) string {
	return firstNonBlank(fallback, a.FullName, a.Name)
}

// ProfileLabel returns the authorization label: perfil, then the upper-cased role.
func (a *Account) ProfileLabel() string {
	if p := value(a.Profile); p != "" {
		return p
	}
	if r := value(a.Role); r != "" {
		return strings.ToUpper(r)
	}
	return DefaultProfile
}

// RoleLabel returns the role column or DefaultRole.
func (a *Account) RoleLabel() string {
	return firstNonBlank(DefaultRole, a.Role)
}

// CPFDigits returns the stored CPF without mask characters.
func (a *Account) CPFDigits() string {
	return Digits(value(a.CPF))
}

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
}

func firstNonBlank(fallback string, candidates ...*string) string {
	for _, c := range candidates {
		if v := value(c); v != "" {
			return v
		}
	}
	return fallback
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
