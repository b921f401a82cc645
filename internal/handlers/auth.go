// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/clubedagente/backoffice/internal/appcontext"
	"codeberg.org/clubedagente/backoffice/internal/i18n"
	"codeberg.org/clubedagente/backoffice/internal/services/auth"
	"codeberg.org/clubedagente/backoffice/internal/services/session"
	"codeberg.org/clubedagente/backoffice/internal/templates"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for login and logout.
type AuthHandlers struct {
	auth     *auth.Service
	sessions *session.Manager
	allowCPF bool
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *auth.Service, sess *session.Manager, allowCPF bool) *AuthHandlers {
	return &AuthHandlers{
		auth:     svc,
		sessions: sess,
		allowCPF: allowCPF,
	}
}

// LoginPage renders the login page.
func (h *AuthHandlers) LoginPage(c echo.Context) error {
	form := templates.LoginForm{AllowCPF: h.allowCPF}
	if c.QueryParam("reset") == "1" {
		form.Notice = i18n.T(c.Request().Context(), "recovery_done")
	}
	return Render(c, http.StatusOK, templates.Login(form))
}

// Login verifies the submitted credentials and starts a session.
func (h *AuthHandlers) Login(c echo.Context) error {
	ctx := c.Request().Context()
	identifier := c.FormValue("identifier")

	s, err := h.auth.Authenticate(ctx, identifier, c.FormValue("password"))
	if err != nil {
		form := templates.LoginForm{
			Identifier: identifier,
			Error:      i18n.T(ctx, auth.MessageID(err)),
			AllowCPF:   h.allowCPF,
		}
		return Render(c, loginStatus(err), templates.Login(form))
	}

	cookie, err := h.sessions.Create(s)
	if err != nil {
		slog.Error("session_create_failed", "user_id", s.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}
	c.SetCookie(cookie)

	return c.Redirect(http.StatusSeeOther, "/")
}

// Logout records the logout and clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	if s := appcontext.From(c).GetSession(); s != nil {
		h.auth.Logout(c.Request().Context(), s)
	}
	c.SetCookie(h.sessions.Clear())
	return c.Redirect(http.StatusSeeOther, "/auth/login")
}

func loginStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrAccountBlocked):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}
