// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/models"
	"codeberg.org/clubedagente/backoffice/internal/repository"
	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStore struct {
	mu        sync.Mutex
	accounts  []*models.Account
	lookupErr error
	updateErr error
	lookups   int
	updates   int
}

func (s *fakeStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	var found []*models.Account
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			found = append(found, a)
		}
	}
	switch len(found) {
	case 0:
		return nil, repository.ErrNotFound
	case 1:
		copied := *found[0]
		return &copied, nil
	default:
		return nil, repository.ErrMultipleMatches
	}
}

func (s *fakeStore) UpdateCredentialHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, a := range s.accounts {
		if a.ID == id {
			a.CredentialHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) counts() (lookups, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups, s.updates
}

type delivery struct {
	to   string
	name string
	code string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []delivery
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (n *fakeNotifier) SendRecoveryCode(ctx context.Context, to, name, code string) error {
	if n.block != nil {
		n.entered <- struct{}{}
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, delivery{to: to, name: name, code: code})
	return nil
}

func (n *fakeNotifier) blocking() {
	n.block = make(chan struct{})
	n.entered = make(chan struct{}, 1)
}

func (n *fakeNotifier) deliveries() []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivery(nil), n.sent...)
}

func (n *fakeNotifier) last() delivery {
	d := n.deliveries()
	if len(d) == 0 {
		return delivery{}
	}
	return d[len(d)-1]
}

type fixture struct {
	store    *fakeStore
	notifier *fakeNotifier
	clock    *clock
	svc      *recovery.Service
}

func testAccount() *models.Account {
	return &models.Account{
		ID:             42,
		Email:          "a@x.com",
		CPF:            models.Ptr("123.456.789-09"),
		CredentialHash: "OldPass1",
		Status:         models.StatusActive,
		FullName:       models.Ptr("Ana Lojista"),
	}
}

func newFixture(t *testing.T, opts ...recovery.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    &fakeStore{accounts: []*models.Account{testAccount()}},
		notifier: &fakeNotifier{},
		clock:    newClock(),
	}
	cfg := &config.RecoveryConfig{
		TicketTTL:      15 * time.Minute,
		MaxAttempts:    5,
		ResendCooldown: 60 * time.Second,
	}
	opts = append([]recovery.Option{
		recovery.WithClock(f.clock.Now),
		recovery.WithCodeGenerator(recovery.FixedCodes("482913", "175320", "900001")),
	}, opts...)
	f.svc = recovery.NewService(f.store, f.notifier, cfg, opts...)
	return f
}
