// Package session keeps the in-memory conversation state for each client.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/metrics"
	"github.com/ashureev/supportdesk/internal/store"
)

// Entry owns one client's session. Callers must hold the entry lock while
// reading or mutating the session returned by Session.
type Entry struct {
	mu      sync.Mutex
	session *domain.Session
	now     func() time.Time

	lastUsed atomic.Int64 // unix nanos
	conns    atomic.Int32 // live channels attached to this entry
}

func newEntry(s *domain.Session, now func() time.Time) *Entry {
	e := &Entry{session: s, now: now}
	e.Touch()
	return e
}

// Lock acquires exclusive access to the session and marks it active.
func (e *Entry) Lock() {
	e.mu.Lock()
	e.Touch()
}

// Unlock marks the session active and releases it.
func (e *Entry) Unlock() {
	e.Touch()
	e.mu.Unlock()
}

// Touch records client activity, postponing idle expiry.
func (e *Entry) Touch() {
	e.lastUsed.Store(e.now().UnixNano())
}

// Session returns the live session. Only valid while the entry is locked.
func (e *Entry) Session() *domain.Session { return e.session }

// Snapshot returns a copy of the session taken under the entry lock.
func (e *Entry) Snapshot() domain.Session {
	e.Lock()
	defer e.Unlock()
	return e.session.Snapshot()
}

func (e *Entry) idleSince() time.Time {
	return time.Unix(0, e.lastUsed.Load())
}

func (e *Entry) connected() bool {
	return e.conns.Load() > 0
}

// EvictCallback is called with the client ID of each evicted session.
type EvictCallback func(clientID string)

// Config bounds the registry. OnEvict runs outside registry locks for every
// session removed by capacity or idle eviction.
type Config struct {
	MaxSessions int
	IdleTTL     time.Duration
	OnEvict     EvictCallback
}

// Registry maps client IDs to sessions.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	// reserved holds every ticket ID handed out by this process; IDs are
	// never released, so an evicted session's ID cannot be reissued.
	reserved map[string]struct{}
	cfg      Config
	checker  store.ExistenceChecker
	now      func() time.Time

	// idMu serialises ticket ID generation so reserved IDs stay unique.
	idMu sync.Mutex
}

// NewRegistry creates a registry. checker is consulted for ticket IDs that
// were persisted by earlier sessions and may be nil.
func NewRegistry(cfg Config, checker store.ExistenceChecker) *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		reserved: make(map[string]struct{}),
		cfg:      cfg,
		checker:  checker,
		now:      time.Now,
	}
}

// GetOrCreate returns the entry for clientID, creating a session with a
// fresh ticket ID if none exists.
func (r *Registry) GetOrCreate(ctx context.Context, clientID string) *Entry {
	e, _ := r.getOrCreate(ctx, clientID, false)
	return e
}

// Connect is GetOrCreate for a live channel. The entry is pinned against
// capacity eviction until release is called.
func (r *Registry) Connect(ctx context.Context, clientID string) (*Entry, func()) {
	return r.getOrCreate(ctx, clientID, true)
}

func (r *Registry) getOrCreate(ctx context.Context, clientID string, attach bool) (*Entry, func()) {
	if e := r.lookup(clientID, attach); e != nil {
		return e, r.releaser(e, attach)
	}

	ticketID := r.newTicketID(ctx)

	r.mu.Lock()
	if e, ok := r.entries[clientID]; ok {
		// Lost a creation race; the unused ID stays reserved.
		e.Touch()
		if attach {
			e.conns.Add(1)
		}
		r.mu.Unlock()
		return e, r.releaser(e, attach)
	}

	var victim string
	if r.cfg.MaxSessions > 0 && len(r.entries) >= r.cfg.MaxSessions {
		victim = r.evictOldestLocked()
	}
	e := newEntry(domain.NewSession(clientID, ticketID), r.now)
	if attach {
		e.conns.Add(1)
	}
	r.entries[clientID] = e
	metrics.SetActiveSessions(len(r.entries))
	r.mu.Unlock()

	slog.Info("Session created", "client_id", clientID, "ticket_id", ticketID)
	if victim != "" {
		r.notifyEvicted(victim)
	}
	return e, r.releaser(e, attach)
}

func (r *Registry) releaser(e *Entry, attached bool) func() {
	if !attached {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			e.Touch()
			e.conns.Add(-1)
		})
	}
}

// Get returns the entry for clientID without creating one.
func (r *Registry) Get(clientID string) (*Entry, bool) {
	e := r.lookup(clientID, false)
	return e, e != nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Remove drops the session for clientID. Its ticket ID stays reserved.
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(clientID)
}

func (r *Registry) lookup(clientID string, attach bool) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[clientID]
	if !ok {
		return nil
	}
	e.Touch()
	if attach {
		e.conns.Add(1)
	}
	return e
}

func (r *Registry) removeLocked(clientID string) {
	if _, ok := r.entries[clientID]; !ok {
		return
	}
	delete(r.entries, clientID)
	metrics.SetActiveSessions(len(r.entries))
}

// evictOldestLocked removes the least recently used session that has no live
// channel and is not running a workflow. It returns the evicted client ID, or
// "" when every session is in use and the registry must grow past its bound.
func (r *Registry) evictOldestLocked() string {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range r.entries {
		if e.connected() {
			continue
		}
		if since := e.idleSince(); oldestID == "" || since.Before(oldest) {
			oldestID, oldest = id, since
		}
	}
	if oldestID == "" {
		slog.Warn("Session registry full and every session is in use",
			"max_sessions", r.cfg.MaxSessions)
		return ""
	}

	e := r.entries[oldestID]
	if !e.mu.TryLock() {
		slog.Warn("Session registry full, least recently used session is busy",
			"client_id", oldestID,
			"max_sessions", r.cfg.MaxSessions)
		return ""
	}
	r.removeLocked(oldestID)
	e.mu.Unlock()

	slog.Warn("Session registry full, evicted least recently used session",
		"client_id", oldestID,
		"max_sessions", r.cfg.MaxSessions)
	return oldestID
}

func (r *Registry) notifyEvicted(clientIDs ...string) {
	if r.cfg.OnEvict == nil {
		return
	}
	for _, id := range clientIDs {
		r.cfg.OnEvict(id)
	}
}

// newTicketID picks an ID never issued by this process and unused by the
// store, and reserves it.
func (r *Registry) newTicketID(ctx context.Context) string {
	r.idMu.Lock()
	defer r.idMu.Unlock()

	checker := store.ExistenceFunc(func(ctx context.Context, id string) (bool, error) {
		r.mu.Lock()
		_, taken := r.reserved[id]
		r.mu.Unlock()
		if taken {
			return true, nil
		}
		if r.checker == nil {
			return false, nil
		}
		return r.checker.TicketExists(ctx, id)
	})

	id := store.GenerateUniqueTicketID(ctx, checker, store.BaseTicketID(r.now()))

	r.mu.Lock()
	r.reserved[id] = struct{}{}
	r.mu.Unlock()
	return id
}
