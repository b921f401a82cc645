// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates holds the templ components of the back-office pages and the
// recovery e-mail, plus the context helpers they call.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"context"

	"codeberg.org/clubedagente/backoffice/internal/ctxkeys"
	"codeberg.org/clubedagente/backoffice/internal/i18n"
	"codeberg.org/clubedagente/backoffice/internal/models"
)

// CSRFToken returns the CSRF token from the context.
func CSRFToken(ctx context.Context) string {
	if token, ok := ctx.Value(ctxkeys.CSRFToken{}).(string); ok {
		return token
	}
	return ""
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	return i18n.TData(ctx, messageID, data)
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// CurrentSession returns the session snapshot from context, or nil if not logged in.
func CurrentSession(ctx context.Context) *models.Session {
	if s, ok := ctx.Value(ctxkeys.Session{}).(*models.Session); ok {
		return s
	}
	return nil
}

// IsAuthenticated returns true if a session is present.
func IsAuthenticated(ctx context.Context) bool {
	return CurrentSession(ctx) != nil
}
