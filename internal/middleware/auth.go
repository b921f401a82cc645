// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the session middlewares of the back-office.
package middleware

import (
	"net/http"

	"codeberg.org/clubedagente/backoffice/internal/appcontext"
	"codeberg.org/clubedagente/backoffice/internal/services/session"
	"github.com/labstack/echo/v4"
)

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/auth/login"

// LoadSession decodes the session cookie and stores the snapshot in the
// request context. Without a valid cookie the request continues
// unauthenticated.
func LoadSession(sm *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := appcontext.From(c)

			data, err := sm.Parse(c.Request())
			if err != nil {
				return err
			}
			if data != nil {
				cc.SetSession(&data.Session)
			}

			return next(cc)
		}
	}
}

// RequireAuth redirects unauthenticated users to the login page.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !appcontext.From(c).IsAuthenticated() {
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}
			return next(c)
		}
	}
}

// RedirectIfAuthenticated sends logged-in users away from the login and
// recovery pages.
func RedirectIfAuthenticated(target string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if appcontext.From(c).IsAuthenticated() {
				return c.Redirect(http.StatusSeeOther, target)
			}
			return next(c)
		}
	}
}
