// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/clubedagente/backoffice/internal/appcontext"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/templates"
	"github.com/labstack/echo/v4"
)

// recentActivity is the number of audit entries shown on the dashboard.
const recentActivity = 10

// Handlers contains the handlers of the dashboard and the health check.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status. It reports unavailable when the
// database cannot be reached.
func (h *Handlers) Health(c echo.Context) error {
	if h.repo != nil {
		if err := h.repo.Ping(c.Request().Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Home renders the dashboard of the logged-in user.
func (h *Handlers) Home(c echo.Context) error {
	s := appcontext.From(c).GetSession()
	if s == nil {
		return c.Redirect(http.StatusSeeOther, "/auth/login")
	}

	entries, err := h.repo.ListAuditEntries(c.Request().Context(), s.ID, recentActivity)
	if err != nil {
		// the dashboard still renders without the activity list
		slog.Warn("audit_list_failed", "user_id", s.ID, "error", err)
		entries = nil
	}

	return Render(c, http.StatusOK, templates.Home(s, entries))
}
