// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// configPath is set by ConfigFlag before any other flag reads its TOML source.
var configPath = "config.toml"

var configFile = altsrc.NewStringPtrSourcer(&configPath)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Session  SessionConfig
	SMTP     SMTPConfig
	Recovery RecoveryConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string // file path / :memory: for SQLite, postgres:// URL for PostgreSQL
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// SMTPConfig configures the out-of-band channel used for recovery codes.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
	LogOnly  bool // log codes instead of sending them (development only)
}

// Enabled reports whether an SMTP relay is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RecoveryConfig struct {
	TicketTTL      time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

type AuthConfig struct {
	AllowCPFLogin bool // accept the CPF as login identifier besides the email
}

type MetricsConfig struct {
	Enabled bool
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
			LogOnly:  cmd.Bool("mail-log-only"),
		},
		Recovery: RecoveryConfig{
			TicketTTL:      cmd.Duration("recovery-ticket-ttl"),
			MaxAttempts:    int(cmd.Int("recovery-max-attempts")),
			ResendCooldown: cmd.Duration("recovery-resend-cooldown"),
		},
		Auth: AuthConfig{
			AllowCPFLogin: cmd.Bool("allow-cpf-login"),
		},
		Metrics: MetricsConfig{
			Enabled: cmd.Bool("metrics"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	// TLS is terminated by the reverse proxy in front of remote deployments
	scheme := "http"
	if !IsLocalhost(host) {
		scheme = "https"
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

// ConfigFlag returns the flag selecting the TOML configuration file. It
// belongs on the root command.
func ConfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Value:       "config.toml",
		Usage:       "Path to configuration file",
		Destination: &configPath,
		Sources:     cli.EnvVars("CONFIG"),
	}
}

// DatabaseFlags returns the flags shared by every command that touches the database.
func DatabaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/backoffice.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
	}
}

// Flags returns all flags of the serve command.
func Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP relay host used to deliver recovery codes",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP relay port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "suporte@clubedagentebrasil.com",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Clube da Gente Brasil",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		&cli.BoolFlag{
			Name:    "mail-log-only",
			Usage:   "Log recovery codes instead of sending them (development only)",
			Sources: source("MAIL_LOG_ONLY", "smtp.log_only"),
		},
		// Recovery flags
		&cli.DurationFlag{
			Name:    "recovery-ticket-ttl",
			Value:   15 * time.Minute,
			Usage:   "Lifetime of a recovery code",
			Sources: source("RECOVERY_TICKET_TTL", "recovery.ticket_ttl"),
		},
		&cli.IntFlag{
			Name:    "recovery-max-attempts",
			Value:   5,
			Usage:   "Wrong codes accepted before the recovery ticket is discarded",
			Sources: source("RECOVERY_MAX_ATTEMPTS", "recovery.max_attempts"),
		},
		&cli.DurationFlag{
			Name:    "recovery-resend-cooldown",
			Value:   60 * time.Second,
			Usage:   "Minimum interval between two recovery code dispatches",
			Sources: source("RECOVERY_RESEND_COOLDOWN", "recovery.resend_cooldown"),
		},
		// Auth flags
		&cli.BoolFlag{
			Name:    "allow-cpf-login",
			Usage:   "Accept the CPF as login identifier",
			Sources: source("ALLOW_CPF_LOGIN", "auth.allow_cpf_login"),
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Value:   true,
			Usage:   "Expose Prometheus metrics on /metrics",
			Sources: source("METRICS", "metrics.enabled"),
		},
	}

	return append(flags, DatabaseFlags()...)
}
