// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/database"
	"codeberg.org/clubedagente/backoffice/internal/handlers"
	"codeberg.org/clubedagente/backoffice/internal/i18n"
	"codeberg.org/clubedagente/backoffice/internal/metrics"
	appmw "codeberg.org/clubedagente/backoffice/internal/middleware"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/audit"
	"codeberg.org/clubedagente/backoffice/internal/services/auth"
	"codeberg.org/clubedagente/backoffice/internal/services/background"
	"codeberg.org/clubedagente/backoffice/internal/services/email"
	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
	"codeberg.org/clubedagente/backoffice/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// App is the assembled back-office: HTTP server plus the components that
// must be drained on shutdown.
type App struct {
	Echo    *echo.Echo
	Runner  *background.Runner
	Wizards *recovery.Registry
	Metrics *metrics.Registry
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	notifier, err := NewNotifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure mail: %w", err)
	}

	app, err := NewApp(cfg, db, notifier)
	if err != nil {
		return err
	}

	return app.startWithGracefulShutdown(ctx, cfg)
}

// NewNotifier selects the recovery code channel: SMTP when a relay is
// configured, otherwise the log notifier.
func NewNotifier(cfg *config.Config) (recovery.Notifier, error) {
	if cfg.SMTP.Enabled() {
		svc, err := email.NewService(&cfg.SMTP, cfg.Recovery.TicketTTL)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	if cfg.SMTP.LogOnly {
		slog.Warn("mail_log_only", "reason", "recovery codes are written to the log")
	} else {
		slog.Warn("mail_not_configured", "reason", "password recovery cannot deliver codes")
	}
	return email.NewLogNotifier(slog.Default(), cfg.SMTP.LogOnly), nil
}

// NewApp wires services, middleware and routes around db.
func NewApp(cfg *config.Config, db *sqlx.DB, notifier recovery.Notifier) (*App, error) {
	sessions, err := session.NewManager(&cfg.Session, cfg.SecureCookies())
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	var m *metrics.Registry
	if cfg.Metrics.Enabled {
		m = metrics.NewRegistry()
	}

	repo := repository.New(db)
	runner := background.NewRunner(slog.Default(), background.DefaultTimeout).WithMetrics(m)
	recorder := audit.NewRecorder(repo, runner)

	authSvc := auth.NewService(repo, recorder, runner,
		auth.WithCPFLogin(cfg.Auth.AllowCPFLogin),
		auth.WithMetrics(m),
	)
	recoverySvc := recovery.NewService(repo, notifier, &cfg.Recovery,
		recovery.WithAudit(recorder),
		recovery.WithMetrics(m),
	)
	wizards := recovery.NewRegistry(recoverySvc, recovery.DefaultIdleTimeout)
	m.TrackActiveWizards(wizards.Len)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, sessions, m)

	app := &App{Echo: e, Runner: runner, Wizards: wizards, Metrics: m}
	app.setupRoutes(repo, authSvc, sessions, cfg.Auth.AllowCPFLogin)
	return app, nil
}

func (a *App) setupRoutes(repo *repository.Repository, authSvc *auth.Service, sessions *session.Manager, allowCPF bool) {
	h := handlers.New(repo)
	ah := handlers.NewAuth(authSvc, sessions, allowCPF)
	rh := handlers.NewRecovery(a.Wizards, sessions)
	e := a.Echo

	e.GET("/health", h.Health)
	if a.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}

	e.GET("/", h.Home, appmw.RequireAuth())

	guest := e.Group("/auth", appmw.RedirectIfAuthenticated("/"))
	guest.GET("/login", ah.LoginPage)
	guest.POST("/login", ah.Login)
	guest.GET("/recover", rh.Page)
	guest.POST("/recover/identity", rh.Identity)
	guest.POST("/recover/code", rh.Code)
	guest.POST("/recover/resend", rh.Resend)
	guest.POST("/recover/back", rh.Back)
	guest.POST("/recover/password", rh.Password)
	guest.POST("/recover/cancel", rh.Cancel)

	e.POST("/auth/logout", ah.Logout, appmw.RequireAuth())
}

// Close drains background work and stops the wizard sweeper.
func (a *App) Close() {
	a.Wizards.Close()
	a.Runner.Wait()
}

func (a *App) startWithGracefulShutdown(ctx context.Context, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server", "reason", ctx.Err())
	case err := <-errChan:
		slog.Error("server error", "error", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	a.Close()

	slog.Info("server stopped")
	return nil
}
