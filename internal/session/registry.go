package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Registry maps browser-tab tokens to their controllers. Each tab gets one
// live controller; idle tabs are evicted after the TTL.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	ctx    context.Context
	api    Verifier
	sched  Scheduler
	delays Delays
	ttl    time.Duration
}

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// NewRegistry creates a registry that mints controllers with the given
// dependencies. ctx carries the localizer and outlives any request.
func NewRegistry(ctx context.Context, api Verifier, sched Scheduler, delays Delays, ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		ctx:     ctx,
		api:     api,
		sched:   sched,
		delays:  delays,
		ttl:     ttl,
	}
}

// Get returns the controller for token, refreshing its idle timer.
func (r *Registry) Get(token string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[token]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.ctrl, true
}

// Create mints a new tab token and controller.
func (r *Registry) Create() (string, *Controller, error) {
	token, err := generateToken()
	if err != nil {
		return "", nil, err
	}
	ctrl := NewController(r.ctx, r.api, r.sched, r.delays)
	r.mu.Lock()
	r.entries[token] = &entry{ctrl: ctrl, lastSeen: time.Now()}
	r.mu.Unlock()
	return token, ctrl, nil
}

// Len reports the number of live tab sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Janitor evicts idle sessions until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := r.sweep(now); n > 0 {
				slog.Info("evicted idle tab sessions", "count", n)
			}
		}
	}
}

func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for token, e := range r.entries {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.entries, token)
			evicted++
		}
	}
	return evicted
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
