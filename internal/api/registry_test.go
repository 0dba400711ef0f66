package api

import (
	"testing"
	"time"

	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

func newTestRegistry(ttl time.Duration) (*Registry, *time.Time) {
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewFactory(&stubAPI{}, flow.WithLogger(logging.Discard())), ttl)
	r.now = func() time.Time { return now }
	r.logger = logging.Discard()
	return r, &now
}

func TestRegistryReusesControllers(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)

	a, err := r.Controller("s1", schema.VariantUser)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Controller("s1", schema.VariantUser)
	if a != b {
		t.Error("Expected the same controller for the same session and variant")
	}
	c, _ := r.Controller("s1", schema.VariantScientist)
	if c == a {
		t.Error("Expected a separate controller per variant")
	}
	d, _ := r.Controller("s2", schema.VariantUser)
	if d == a {
		t.Error("Expected a separate controller per session")
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 sessions, got %d", r.Len())
	}
}

func TestRegistryUnknownVariant(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	if _, err := r.Controller("s1", "admin"); err == nil {
		t.Error("Expected error for unknown variant")
	}
}

func TestRegistrySweep(t *testing.T) {
	r, now := newTestRegistry(time.Hour)

	r.Controller("old", schema.VariantUser)
	r.Controller("streaming", schema.VariantUser)
	release := r.Hold("streaming")

	*now = now.Add(30 * time.Minute)
	r.Controller("recent", schema.VariantUser)

	*now = now.Add(45 * time.Minute)
	if removed := r.Sweep(); removed != 1 {
		t.Errorf("Expected 1 session removed, got %d", removed)
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 sessions left, got %d", r.Len())
	}

	release()
	release()
	*now = now.Add(2 * time.Hour)
	r.Sweep()
	if r.Len() != 0 {
		t.Errorf("Expected all sessions swept, got %d", r.Len())
	}
}

func TestRegistryZeroTTLKeepsSessions(t *testing.T) {
	r, now := newTestRegistry(0)
	r.Controller("s1", schema.VariantUser)
	*now = now.Add(365 * 24 * time.Hour)
	if r.Sweep() != 0 || r.Len() != 1 {
		t.Error("Expected sessions to be kept with a zero TTL")
	}
}
