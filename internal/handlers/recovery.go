// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/clubedagente/backoffice/internal/i18n"
	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
	"codeberg.org/clubedagente/backoffice/internal/services/session"
	"codeberg.org/clubedagente/backoffice/internal/templates"
	"github.com/labstack/echo/v4"
)

// RecoveryHandlers drive the password recovery wizard. Each browser owns one
// wizard, referenced by an id in a path-scoped cookie.
type RecoveryHandlers struct {
	wizards  *recovery.Registry
	sessions *session.Manager
}

// NewRecovery creates a new RecoveryHandlers instance.
func NewRecovery(wizards *recovery.Registry, sess *session.Manager) *RecoveryHandlers {
	return &RecoveryHandlers{
		wizards:  wizards,
		sessions: sess,
	}
}

// Page renders the wizard at its current step, starting one if needed.
func (h *RecoveryHandlers) Page(c echo.Context) error {
	w, err := h.current(c)
	if err != nil {
		return err
	}
	return h.render(c, w, http.StatusOK, nil, recoveryForm{})
}

// Identity handles step 1: email and CPF.
func (h *RecoveryHandlers) Identity(c echo.Context) error {
	w, err := h.current(c)
	if err != nil {
		return err
	}
	form := recoveryForm{email: c.FormValue("email"), cpf: c.FormValue("cpf")}
	err = w.ConfirmIdentity(c.Request().Context(), form.email, form.cpf)
	return h.respond(c, w, err, form)
}

// Code handles step 2: the 6-digit code.
func (h *RecoveryHandlers) Code(c echo.Context) error {
	w, ok := h.existing(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/auth/recover")
	}
	return h.respond(c, w, w.ValidateCode(c.Request().Context(), c.FormValue("code")), recoveryForm{})
}

// Resend dispatches a fresh code once the cooldown has elapsed.
func (h *RecoveryHandlers) Resend(c echo.Context) error {
	w, ok := h.existing(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/auth/recover")
	}
	return h.respond(c, w, w.Resend(c.Request().Context()), recoveryForm{})
}

// Back returns from step 2 to step 1.
func (h *RecoveryHandlers) Back(c echo.Context) error {
	w, ok := h.existing(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/auth/recover")
	}
	return h.respond(c, w, w.Back(), recoveryForm{})
}

// Password handles step 3: the new password and its confirmation.
func (h *RecoveryHandlers) Password(c echo.Context) error {
	w, ok := h.existing(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/auth/recover")
	}
	err := w.CommitPassword(c.Request().Context(), c.FormValue("new_password"), c.FormValue("confirm_password"))
	if err != nil {
		return h.respond(c, w, err, recoveryForm{})
	}

	h.forget(c)
	return c.Redirect(http.StatusSeeOther, "/auth/login?reset=1")
}

// Cancel abandons the wizard and returns to the login page.
func (h *RecoveryHandlers) Cancel(c echo.Context) error {
	h.forget(c)
	return c.Redirect(http.StatusSeeOther, "/auth/login")
}

type recoveryForm struct {
	email string
	cpf   string
}

// existing returns the live wizard of the requesting browser.
func (h *RecoveryHandlers) existing(c echo.Context) (*recovery.Wizard, bool) {
	id := h.sessions.ParseWizard(c.Request())
	if id == "" {
		return nil, false
	}
	return h.wizards.Get(id)
}

// current returns the wizard of the requesting browser, starting a new one
// when it has none or its wizard expired.
func (h *RecoveryHandlers) current(c echo.Context) (*recovery.Wizard, error) {
	if w, ok := h.existing(c); ok {
		return w, nil
	}

	id, w := h.wizards.Start()
	cookie, err := h.sessions.CreateWizard(id)
	if err != nil {
		h.wizards.Remove(id)
		slog.Error("wizard_cookie_failed", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to start recovery")
	}
	c.SetCookie(cookie)
	return w, nil
}

func (h *RecoveryHandlers) forget(c echo.Context) {
	if id := h.sessions.ParseWizard(c.Request()); id != "" {
		h.wizards.Remove(id)
	}
	c.SetCookie(h.sessions.ClearWizard())
}

func (h *RecoveryHandlers) respond(c echo.Context, w *recovery.Wizard, err error, form recoveryForm) error {
	if err == nil {
		return c.Redirect(http.StatusSeeOther, "/auth/recover")
	}
	return h.render(c, w, recoveryStatus(err), err, form)
}

func (h *RecoveryHandlers) render(c echo.Context, w *recovery.Wizard, status int, err error, form recoveryForm) error {
	view := templates.RecoveryView{
		Step:          w.Step(),
		Email:         form.email,
		CPF:           form.cpf,
		ResendSeconds: recovery.Seconds(w.ResendIn()),
	}
	if view.Step != recovery.StepIdentity {
		view.Email = w.Email()
	}
	if id, data := recovery.MessageID(err); id != "" {
		view.Error = i18n.TData(c.Request().Context(), id, data)
	}
	return Render(c, status, templates.Recovery(view))
}

func recoveryStatus(err error) int {
	var cooldown *recovery.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, recovery.ErrBusy), errors.Is(err, recovery.ErrWrongStep):
		return http.StatusConflict
	case errors.Is(err, recovery.ErrTechnical), errors.Is(err, recovery.ErrDeliveryFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
