package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wavesoft/marblebar/internal/kernel"
)

var ErrTooManyConnections = errors.New("too many connections")

// Registry owns the live sessions of one kernel. It is the only structure
// shared between protocol dispatch and transport housekeeping, and its lock
// is never held while a broadcast runs.
type Registry struct {
	mu       sync.RWMutex
	kernel   *kernel.Kernel
	opts     Options
	maxConns int
	order    []*Session
	byID     map[string]*Session
}

// NewRegistry creates a registry and installs it as k's broadcast target.
func NewRegistry(k *kernel.Kernel, opts Options, maxConns int) *Registry {
	r := &Registry{
		kernel:   k,
		opts:     opts,
		maxConns: maxConns,
		byID:     make(map[string]*Session),
	}
	k.SetSessions(r)
	return r
}

// Open creates and registers a session for a new connection from domain
// requesting path.
func (r *Registry) Open(domain, path string) (*Session, error) {
	s := New(r.kernel, uuid.NewString(), domain, path, r.opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxConns > 0 && len(r.order) >= r.maxConns {
		return nil, ErrTooManyConnections
	}
	r.order = append(r.order, s)
	r.byID[s.id] = s
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Remove unregisters s and cleans it up. Removing a session twice is
// harmless; only the first call reports true.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	_, ok := r.byID[s.id]
	if ok {
		delete(r.byID, s.id)
		for i, o := range r.order {
			if o == s {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	s.Cleanup()
	return ok
}

// ForEachLive calls fn for every connected session in registration order.
func (r *Registry) ForEachLive(fn func(*Session)) {
	for _, s := range r.snapshot() {
		if s.Connected() {
			fn(s)
		}
	}
}

// Notifiers implements kernel.Sessions.
func (r *Registry) Notifiers() []kernel.Notifier {
	var out []kernel.Notifier
	r.ForEachLive(func(s *Session) {
		out = append(out, s)
	})
	return out
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Session(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Poll removes sessions that are no longer connected and whose egress has
// been flushed. It returns the number of sessions removed.
func (r *Registry) Poll() int {
	removed := 0
	for _, s := range r.snapshot() {
		if s.Connected() || s.Pending() > 0 {
			continue
		}
		if r.Remove(s) {
			log.Printf("Session closed: %s (%s%s)", s.id, s.domain, s.path)
			removed++
		}
	}
	return removed
}

// Run polls every interval until ctx is done, then closes every session.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			r.Poll()
		}
	}
}

// Close disconnects and removes every session.
func (r *Registry) Close() {
	for _, s := range r.snapshot() {
		s.Disconnect()
		r.Remove(s)
	}
}
