package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

// Factory builds a fresh controller for a form variant
type Factory func(schema.Variant) (*flow.Controller, error)

// NewFactory returns a Factory creating controllers that talk to api
func NewFactory(api flow.PredictionAPI, opts ...flow.Option) Factory {
	return func(v schema.Variant) (*flow.Controller, error) {
		s, err := schema.Lookup(v)
		if err != nil {
			return nil, err
		}
		return flow.New(s, api, opts...), nil
	}
}

type session struct {
	forms    map[schema.Variant]*flow.Controller
	lastSeen time.Time
	streams  int
}

// Registry holds one controller per browser session and form variant.
// Sessions unused for longer than the TTL are dropped by Sweep.
type Registry struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates a registry. A ttl of zero keeps sessions forever.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		logger:   logging.New("sessions"),
		sessions: make(map[string]*session),
	}
}

// Controller returns the controller for (sessionID, variant), creating it on
// first use.
func (r *Registry) Controller(sessionID string, v schema.Variant) (*flow.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{forms: make(map[schema.Variant]*flow.Controller)}
		r.sessions[sessionID] = s
		r.logger.Debug("session created", "session", sessionID)
	}
	s.lastSeen = r.now()

	if c, ok := s.forms[v]; ok {
		return c, nil
	}
	c, err := r.factory(v)
	if err != nil {
		return nil, err
	}
	s.forms[v] = c
	return c, nil
}

// Hold marks a session as in use by a long-lived stream until release is
// called. Held sessions are never swept.
func (r *Registry) Hold(sessionID string) (release func()) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		s.streams++
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if s, ok := r.sessions[sessionID]; ok {
				s.streams--
				s.lastSeen = r.now()
			}
		})
	}
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops idle sessions and returns how many were removed
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.streams > 0 || s.lastSeen.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		r.logger.Info("expired idle sessions", "removed", removed, "remaining", len(r.sessions))
	}
	return removed
}

// Run sweeps periodically until ctx is done
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
