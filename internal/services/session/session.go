// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session keeps the login snapshot and the recovery wizard id in
// signed cookies.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// wizardSuffix is appended to the session cookie name for the wizard cookie.
const wizardSuffix = "_recovery"

// wizardPath scopes the wizard cookie to the recovery routes.
const wizardPath = "/auth/recover"

// Data is the decoded content of a session cookie.
type Data struct {
	Session   models.Session `json:"session"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type wizardData struct {
	ID string `json:"id"`
}

// Manager encodes and decodes session cookies.
type Manager struct { //nolint:govet // fieldalignment not critical
	codec      *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
}

// NewManager creates a Manager. An empty hash key is replaced by a random one
// unless secure cookies are required, in which case it is an error.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session hash key: %w", err)
	}
	if hashKey == nil {
		if secure {
			return nil, errors.New("session hash key is required when serving over https")
		}
		slog.Warn("session_key_generated", "reason", "no session hash key configured, sessions end on restart")
		hashKey = securecookie.GenerateRandomKey(keyLength)
	}

	blockKey, err := decodeKey(cfg.BlockKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session block key: %w", err)
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:      codec,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
	}, nil
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("must be %d bytes, got %d", keyLength, len(key))
	}
	return key, nil
}

// Create returns a cookie carrying s.
func (m *Manager) Create(s *models.Session) (*http.Cookie, error) {
	data := Data{
		Session:   *s,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}

	encoded, err := m.codec.Encode(m.cookieName, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	return m.cookie(m.cookieName, "/", encoded, m.maxAge), nil
}

// Parse returns the session of r, or nil when the cookie is missing, invalid
// or expired.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie is not an error
	}

	var data Data
	if err := m.codec.Decode(m.cookieName, cookie.Value, &data); err != nil {
		slog.Debug("session_invalid", "error", err)
		return nil, nil
	}

	if time.Now().After(data.ExpiresAt) {
		return nil, nil
	}

	return &data, nil
}

// Clear returns a cookie that deletes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie(m.cookieName, "/", "", -1)
}

// CreateWizard returns a browser-session cookie holding a recovery wizard id.
func (m *Manager) CreateWizard(id string) (*http.Cookie, error) {
	name := m.cookieName + wizardSuffix
	encoded, err := m.codec.Encode(name, wizardData{ID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to encode wizard id: %w", err)
	}
	return m.cookie(name, wizardPath, encoded, 0), nil
}

// ParseWizard returns the wizard id of r, or "" when there is none.
func (m *Manager) ParseWizard(r *http.Request) string {
	name := m.cookieName + wizardSuffix
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	var data wizardData
	if err := m.codec.Decode(name, cookie.Value, &data); err != nil {
		return ""
	}
	return data.ID
}

// ClearWizard returns a cookie that deletes the wizard id.
func (m *Manager) ClearWizard() *http.Cookie {
	return m.cookie(m.cookieName+wizardSuffix, wizardPath, "", -1)
}

func (m *Manager) cookie(name, path, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
