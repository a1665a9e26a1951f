// Package session maps opaque session ids to dialogue engines. The registry
// bounds how many sessions exist, serializes turns within a session and
// evicts sessions that have gone idle.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/threadcart/threadcart/internal/chat"
)

// ErrCapacity is returned when the registry is full and every session is
// either busy or recently used.
var ErrCapacity = errors.New("session registry at capacity")

// Defaults used when Config leaves the knobs zero.
const (
	DefaultCapacity      = 1000
	DefaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// Factory creates the dialogue engine for a new session.
type Factory func() *chat.Engine

// Config assembles a Registry.
type Config struct {
	Capacity      int
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Factory       Factory
	Logger        *slog.Logger
}

type entry struct {
	mu       sync.Mutex
	engine   *chat.Engine
	lastUsed time.Time // guarded by the registry lock
	evicted  bool      // guarded by entry.mu
}

// Registry is the process-wide session store. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	capacity int
	idleTTL  time.Duration
	factory  Factory
	logger   *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewRegistry creates a registry and starts its idle sweeper.
func NewRegistry(cfg Config) *Registry {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		sessions: make(map[string]*entry),
		capacity: capacity,
		idleTTL:  idleTTL,
		factory:  cfg.Factory,
		logger:   logger,
		done:     make(chan struct{}),
		now:      time.Now,
	}

	r.wg.Add(1)
	go r.sweep(sweepInterval)
	return r
}

// Acquire returns the session's engine with its turn lock held, creating the
// session if needed. The caller must call release exactly once when the turn
// is done; until then, further Acquire calls for the same id block.
func (r *Registry) Acquire(id string) (*chat.Engine, func(), error) {
	for {
		e, err := r.lookupOrCreate(id)
		if err != nil {
			return nil, nil, err
		}

		e.mu.Lock()
		if e.evicted {
			// Swept away between lookup and lock; start over.
			e.mu.Unlock()
			continue
		}

		release := func() {
			r.mu.Lock()
			e.lastUsed = r.now()
			r.mu.Unlock()
			e.mu.Unlock()
		}
		return e.engine, release, nil
	}
}

func (r *Registry) lookupOrCreate(id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		return e, nil
	}

	if len(r.sessions) >= r.capacity && !r.evictOneLocked() {
		return nil, ErrCapacity
	}

	e := &entry{engine: r.factory(), lastUsed: r.now()}
	r.sessions[id] = e
	r.logger.Info("session created", "session_id", id, "sessions", len(r.sessions))
	return e, nil
}

// evictOneLocked drops the least-recently-used session that is not
// mid-turn. Returns false when every session is busy.
func (r *Registry) evictOneLocked() bool {
	var victimID string
	var victim *entry
	for id, e := range r.sessions {
		if victim != nil && !e.lastUsed.Before(victim.lastUsed) {
			continue
		}
		// Only idle sessions are candidates.
		if !e.mu.TryLock() {
			continue
		}
		e.mu.Unlock()
		victimID, victim = id, e
	}
	if victim == nil || !victim.mu.TryLock() {
		return false
	}
	victim.evicted = true
	victim.mu.Unlock()
	delete(r.sessions, victimID)
	r.logger.Info("session evicted for capacity", "session_id", victimID)
	return true
}

// sweep periodically evicts sessions idle longer than the TTL.
func (r *Registry) sweep(interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Registry) sweepOnce() {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		if e.lastUsed.After(cutoff) {
			continue
		}
		// A session mid-turn is in use by definition; skip it.
		if !e.mu.TryLock() {
			continue
		}
		e.evicted = true
		e.mu.Unlock()
		delete(r.sessions, id)
		r.logger.Info("idle session evicted", "session_id", id)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the sweeper. Sessions themselves hold no external resources.
func (r *Registry) Close() {
	close(r.done)
	r.wg.Wait()
}
