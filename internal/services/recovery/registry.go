// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long an untouched wizard is kept.
const DefaultIdleTimeout = 30 * time.Minute

// Registry keeps wizards server-side, keyed by an opaque id that the browser
// holds in a signed cookie.
type Registry struct { //nolint:govet // fieldalignment not critical
	svc     *Service
	mu      sync.Mutex
	wizards map[string]*registryEntry
	idle    time.Duration
	stop    chan struct{}
	once    sync.Once
}

type registryEntry struct {
	wizard   *Wizard
	lastSeen time.Time
}

// NewRegistry creates a registry and starts its cleanup loop. Close stops it.
func NewRegistry(svc *Service, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	r := &Registry{
		svc:     svc,
		wizards: make(map[string]*registryEntry),
		idle:    idle,
		stop:    make(chan struct{}),
	}
	go r.cleanup(time.Minute)
	return r
}

// Start creates a new wizard and returns its id.
func (r *Registry) Start() (string, *Wizard) {
	id := uuid.NewString()
	w := r.svc.NewWizard()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.wizards[id] = &registryEntry{wizard: w, lastSeen: r.svc.now()}
	return id, w
}

// Get returns the wizard for id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Wizard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.wizards[id]
	if !ok {
		return nil, false
	}
	now := r.svc.now()
	if now.Sub(entry.lastSeen) > r.idle {
		delete(r.wizards, id)
		entry.wizard.Cancel()
		return nil, false
	}
	entry.lastSeen = now
	return entry.wizard, true
}

// Remove cancels and forgets the wizard for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	entry, ok := r.wizards[id]
	delete(r.wizards, id)
	r.mu.Unlock()

	if ok {
		entry.wizard.Cancel()
	}
}

// Len returns the number of tracked wizards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}

// Sweep drops every wizard idle for longer than the timeout.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.svc.now()
	for id, entry := range r.wizards {
		if now.Sub(entry.lastSeen) > r.idle {
			delete(r.wizards, id)
			entry.wizard.Cancel()
		}
	}
}

// Close stops the cleanup loop.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Registry) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}
