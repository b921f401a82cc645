// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"fmt"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes component as the HTML response. Components read the locale,
// CSRF token and session snapshot from the request context, so the server
// middleware must run first. Pages carry CSRF tokens and account data and are
// never cached.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := component.Render(c.Request().Context(), buf); err != nil {
		return fmt.Errorf("failed to render %s: %w", c.Request().URL.Path, err)
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.HTML(statusCode, buf.String())
}
