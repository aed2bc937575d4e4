package session

import (
	"context"
	"testing"
	"time"

	appi18n "github.com/pavelanni/verichat/internal/i18n"
)

func newTestRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	if err := appi18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}
	ctx := appi18n.WithLocalizer(context.Background(), appi18n.NewLocalizer("en"))
	return NewRegistry(ctx, &fakeVerifier{}, &manualScheduler{}, Delays{}, ttl)
}

func TestRegistryCreateGet(t *testing.T) {
	reg := newTestRegistry(t, time.Minute)

	token, ctrl, err := reg.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 32-byte hex token, got %d chars", len(token))
	}
	if ctrl == nil {
		t.Fatal("create must return a live controller")
	}

	got, ok := reg.Get(token)
	if !ok || got != ctrl {
		t.Error("get must return the controller minted for the token")
	}
	if _, ok := reg.Get("deadbeef"); ok {
		t.Error("unknown token must not resolve")
	}
	if reg.Len() != 1 {
		t.Errorf("expected one live session, got %d", reg.Len())
	}
}

func TestRegistryTokensUnique(t *testing.T) {
	reg := newTestRegistry(t, time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, _, err := reg.Create()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestRegistrySweep(t *testing.T) {
	reg := newTestRegistry(t, 10*time.Minute)

	stale, _, err := reg.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fresh, _, err := reg.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Age the first entry past the TTL.
	reg.mu.Lock()
	reg.entries[stale].lastSeen = time.Now().Add(-time.Hour)
	reg.mu.Unlock()

	if n := reg.sweep(time.Now()); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, ok := reg.Get(stale); ok {
		t.Error("stale session must be evicted")
	}
	if _, ok := reg.Get(fresh); !ok {
		t.Error("fresh session must survive the sweep")
	}
}

func TestRegistryGetRefreshesIdleTimer(t *testing.T) {
	reg := newTestRegistry(t, 10*time.Minute)

	token, _, err := reg.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reg.mu.Lock()
	reg.entries[token].lastSeen = time.Now().Add(-time.Hour)
	reg.mu.Unlock()

	// Touching the session keeps it alive.
	if _, ok := reg.Get(token); !ok {
		t.Fatal("token must resolve before the sweep")
	}
	if n := reg.sweep(time.Now()); n != 0 {
		t.Errorf("refreshed session must not be evicted, got %d evictions", n)
	}
}
