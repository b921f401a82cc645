// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Session is the identity snapshot taken at login. It is never refreshed from
// the database; a new login produces a new snapshot.
type Session struct {
	IssuedAt        time.Time `json:"issued_at"`
	UUID            string    `json:"uuid"`
	Name            string    `json:"nome"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	Profile         string    `json:"perfil"`
	PhotoURL        string    `json:"foto_perfil_url,omitempty"`
	ThemePreference string    `json:"preferencia_tema,omitempty"`
	ID              int64     `json:"id"`
}

// NewSession builds the snapshot for an authenticated account.
func NewSession(a *Account, now time.Time) *Session {
	return &Session{
		ID:              a.ID,
		UUID:            a.UUID,
		Name:            a.DisplayName(),
		Email:           a.Email,
		Role:            a.RoleLabel(),
		Profile:         a.ProfileLabel(),
		PhotoURL:        value(a.PhotoURL),
		ThemePreference: value(a.ThemePreference),
		IssuedAt:        now,
	}
}
