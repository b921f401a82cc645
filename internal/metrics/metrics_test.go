// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/clubedagente/backoffice/internal/metrics"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *metrics.Registry

	assert.NotPanics(t, func() {
		r.Login("success")
		r.CredentialMigrated()
		r.Recovery("confirm_identity", "ok")
		r.TaskFailed("audit")
		r.TrackActiveWizards(func() int { return 1 })
	})
}

func TestCounters(t *testing.T) {
	r := metrics.NewRegistry()

	r.Login("success")
	r.Login("success")
	r.Login("bad_credentials")
	r.CredentialMigrated()
	r.Recovery("validate_code", "incorrect_code")
	r.TaskFailed("credential_migration")

	assert.InDelta(t, 2, testutil.ToFloat64(r.LoginsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.LoginsTotal.WithLabelValues("bad_credentials")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.CredentialMigrations), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.RecoveryTotal.WithLabelValues("validate_code", "incorrect_code")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.TaskFailuresTotal.WithLabelValues("credential_migration")), 0)
}

func TestHandler(t *testing.T) {
	r := metrics.NewRegistry()
	r.Login("success")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `backoffice_logins_total{outcome="success"} 1`)
}

func TestTrackActiveWizards(t *testing.T) {
	r := metrics.NewRegistry()
	active := 3
	r.TrackActiveWizards(func() int { return active })

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "backoffice_recovery_wizards_active 3")

	active = 0
	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "backoffice_recovery_wizards_active 0")
}

func TestMiddleware(t *testing.T) {
	r := metrics.NewRegistry()
	e := echo.New()
	e.Use(r.Middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.InDelta(t, 1, testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")), 0)
}
