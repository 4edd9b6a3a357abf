// Package session provides the in-memory, time-evicting conversation store.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/decoy/internal/domain"
)

// DefaultTTL is how long a session may stay idle before it is evicted.
const DefaultTTL = time.Hour

// EvictCallback is called after a session has been removed for inactivity.
type EvictCallback func(sessionID string)

type entry struct {
	mu      sync.Mutex
	st      *state
	evicted bool
}

// Store holds per-conversation state keyed by session ID.
//
// Mutations of one session are serialized by a per-entry mutex while
// different sessions proceed independently. Every access first sweeps idle
// sessions; entries that are locked by an in-flight turn are never swept.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
	onEvict EvictCallback
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvictCallback registers fn to be called for every evicted session.
func WithEvictCallback(fn EvictCallback) Option {
	return func(s *Store) { s.onEvict = fn }
}

// WithLogger sets the logger used for eviction messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) log() *slog.Logger {
	return s.logger
}

// TTL returns the configured idle timeout.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Do runs fn with exclusive access to the session, creating it if needed.
// The session's last activity is refreshed before fn runs. fn must not call
// back into the Store and must not block on I/O.
func (s *Store) Do(sessionID string, fn func(tx *Tx) error) error {
	s.Sweep()

	for {
		e := s.lookupOrCreate(sessionID)
		e.mu.Lock()
		if e.evicted {
			// Swept between lookup and lock; the next lookup creates a fresh entry.
			e.mu.Unlock()
			continue
		}
		return s.run(e, fn)
	}
}

// run calls fn with e locked. The lock is released even if fn panics.
func (s *Store) run(e *entry, fn func(tx *Tx) error) error {
	defer e.mu.Unlock()
	e.st.LastActivity = s.now()
	return fn(&Tx{st: e.st, now: s.now})
}

// GetOrCreate returns a snapshot of the session, creating it on first use.
func (s *Store) GetOrCreate(sessionID string) domain.Session {
	var out domain.Session
	_ = s.Do(sessionID, func(tx *Tx) error {
		out = tx.Snapshot()
		return nil
	})
	return out
}

// RecordTurn appends msg and recomputes the derived fields of the session.
func (s *Store) RecordTurn(sessionID string, msg domain.Message, fraudDetected bool, confidence float64) {
	_ = s.Do(sessionID, func(tx *Tx) error {
		tx.RecordTurn(msg, fraudDetected, confidence)
		return nil
	})
}

// MergeArtifacts unions candidate into the session's intelligence.
func (s *Store) MergeArtifacts(sessionID string, candidate domain.ArtifactSet) {
	_ = s.Do(sessionID, func(tx *Tx) error {
		tx.MergeArtifacts(candidate)
		return nil
	})
}

// Summarize builds the reporting snapshot for a session.
func (s *Store) Summarize(sessionID string) domain.Summary {
	var out domain.Summary
	_ = s.Do(sessionID, func(tx *Tx) error {
		out = tx.Summarize()
		return nil
	})
	return out
}

// MarkCompleted flags the session as reported. It does nothing when the
// session is absent or already completed.
func (s *Store) MarkCompleted(sessionID string) {
	s.Sweep()

	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return
	}
	e.st.LastActivity = s.now()
	e.st.Completed = true
	e.st.reportPending = false
}

// Stats counts live sessions by state.
func (s *Store) Stats() domain.Stats {
	s.Sweep()

	// Entry locks are never taken while holding the map lock.
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var st domain.Stats
	for _, e := range entries {
		e.mu.Lock()
		if !e.evicted {
			st.Total++
			if !e.st.Completed {
				st.Active++
			}
			if e.st.ScamDetected {
				st.Scam++
			}
		}
		e.mu.Unlock()
	}
	return st
}

// Len returns the number of live sessions without sweeping.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were evicted.
func (s *Store) Sweep() int {
	now := s.now()
	var evicted []string

	s.mu.Lock()
	for id, e := range s.entries {
		if !e.mu.TryLock() {
			continue // busy with a turn, so not idle
		}
		if now.Sub(e.st.LastActivity) > s.ttl {
			e.evicted = true
			delete(s.entries, id)
			evicted = append(evicted, id)
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()

	for _, id := range evicted {
		s.logger.Info("Session evicted", "session_id", id, "ttl", s.ttl)
		if s.onEvict != nil {
			s.onEvict(id)
		}
	}
	return len(evicted)
}

func (s *Store) lookupOrCreate(sessionID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sessionID]; ok {
		return e
	}
	e = &entry{st: newState(sessionID, s.now())}
	s.entries[sessionID] = e
	s.logger.Debug("Session created", "session_id", sessionID)
	return e
}

// Tx is exclusive access to one session inside Store.Do.
// It must not be retained after the callback returns.
type Tx struct {
	st  *state
	now func() time.Time
}

// Snapshot returns a deep copy of the session.
func (tx *Tx) Snapshot() domain.Session {
	return tx.st.snapshot()
}

// History returns a copy of the recorded messages.
func (tx *Tx) History() []domain.Message {
	out := make([]domain.Message, len(tx.st.Messages))
	copy(out, tx.st.Messages)
	return out
}

// TotalMessages returns the number of recorded messages.
func (tx *Tx) TotalMessages() int {
	return len(tx.st.Messages)
}

// Stage returns the current conversation stage.
func (tx *Tx) Stage() int {
	return tx.st.ConversationStage
}

// Completed reports whether the session has been reported.
func (tx *Tx) Completed() bool {
	return tx.st.Completed
}

// RecordTurn appends msg, bumps the sender counter and recomputes stage,
// risk and engagement. Timestamps never go backwards within a session.
func (tx *Tx) RecordTurn(msg domain.Message, fraudDetected bool, confidence float64) {
	tx.st.recordTurn(msg, fraudDetected, confidence, tx.now())
}

// MergeArtifacts unions candidate into the session's intelligence.
func (tx *Tx) MergeArtifacts(candidate domain.ArtifactSet) {
	tx.st.mergeArtifacts(candidate)
}

// Summarize builds the reporting snapshot.
func (tx *Tx) Summarize() domain.Summary {
	return tx.st.summary()
}

// ClaimReport reserves the right to report this session. It returns false if
// the session is completed or another turn already holds the claim.
func (tx *Tx) ClaimReport() bool {
	if tx.st.Completed || tx.st.reportPending {
		return false
	}
	tx.st.reportPending = true
	return true
}
