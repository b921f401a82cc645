// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus counters for logins, password recovery
// and background work. A nil *Registry is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Registry holds every collector of the application.
type Registry struct {
	reg *prometheus.Registry

	LoginsTotal          *prometheus.CounterVec
	CredentialMigrations prometheus.Counter
	RecoveryTotal        *prometheus.CounterVec
	TaskFailuresTotal    *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// NewRegistry creates the collectors on a private prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		CredentialMigrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_migrations_total",
			Help:      "Legacy plaintext credentials rewritten as digests.",
		}),
		RecoveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_operations_total",
			Help:      "Password recovery operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		TaskFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_task_failures_total",
			Help:      "Best-effort background tasks that failed.",
		}, []string{"task"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.LoginsTotal,
		r.CredentialMigrations,
		r.RecoveryTotal,
		r.TaskFailuresTotal,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// TrackActiveWizards exposes the number of open recovery wizards as reported by fn.
func (r *Registry) TrackActiveWizards(fn func() int) {
	if r == nil {
		return
	}
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "recovery_wizards_active",
		Help:      "Password recovery wizards currently held in memory.",
	}, func() float64 { return float64(fn()) }))
}

// Login counts a login attempt.
func (r *Registry) Login(outcome string) {
	if r == nil {
		return
	}
	r.LoginsTotal.WithLabelValues(outcome).Inc()
}

// CredentialMigrated counts a rewritten legacy credential.
func (r *Registry) CredentialMigrated() {
	if r == nil {
		return
	}
	r.CredentialMigrations.Inc()
}

// Recovery counts a wizard operation.
func (r *Registry) Recovery(operation, outcome string) {
	if r == nil {
		return
	}
	r.RecoveryTotal.WithLabelValues(operation, outcome).Inc()
}

// TaskFailed counts a failed background task.
func (r *Registry) TaskFailed(task string) {
	if r == nil {
		return
	}
	r.TaskFailuresTotal.WithLabelValues(task).Inc()
}

// Middleware records request counts and latency per route.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unknown"
			}
			status := strconv.Itoa(c.Response().Status)
			r.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			r.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
