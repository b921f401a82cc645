// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context.
package appcontext

import (
	"context"

	"codeberg.org/clubedagente/backoffice/internal/ctxkeys"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context carrying the session snapshot.
type Context struct {
	echo.Context
	Session *models.Session // nil if not authenticated
}

// From returns c as *Context, wrapping it when an upstream middleware did not.
func From(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	s, _ := c.Request().Context().Value(ctxkeys.Session{}).(*models.Session)
	return &Context{Context: c, Session: s}
}

// GetSession returns the session snapshot, or nil if not authenticated.
func (c *Context) GetSession() *models.Session {
	return c.Session
}

// IsAuthenticated returns true if the user is authenticated.
func (c *Context) IsAuthenticated() bool {
	return c.Session != nil
}

// SetSession stores s on the Echo context and on the request context,
// where templates read it.
func (c *Context) SetSession(s *models.Session) {
	c.Session = s
	req := c.Request()
	c.SetRequest(req.WithContext(context.WithValue(req.Context(), ctxkeys.Session{}, s)))
}
