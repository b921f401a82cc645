// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/clubedagente/backoffice/internal/i18n"
	"codeberg.org/clubedagente/backoffice/internal/templates"
	"github.com/labstack/echo/v4"
)

// ErrorHandler renders HTML error pages for errors returned by handlers.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}

	ctx := c.Request().Context()
	message := i18n.T(ctx, "error_internal")
	switch {
	case code == http.StatusNotFound:
		message = i18n.T(ctx, "error_not_found")
	case code < http.StatusInternalServerError:
		message = http.StatusText(code)
	default:
		slog.Error("request_failed", "path", c.Request().URL.Path, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if renderErr := Render(c, code, templates.ErrorPage(code, message)); renderErr != nil {
		slog.Error("error_page_failed", "error", renderErr)
	}
}
