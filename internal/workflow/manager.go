package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// DefaultSessionTTL is how long an untouched session lives.
const DefaultSessionTTL = 2 * time.Hour

// Session guards one State. Stage operations run under its lock, so two
// stages of the same session never overlap.
type Session struct {
	mu       sync.Mutex
	state    *State
	lastUsed time.Time
	now      func() time.Time
}

func (s *Session) ID() string { return s.state.id }

// Do runs fn with exclusive access to the state. The session counts as used
// until fn returns.
func (s *Session) Do(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.lastUsed = s.now() }()
	s.lastUsed = s.now()
	return fn(s.state)
}

// Snapshot returns a copy of the state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Manager maps session ids to sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a manager. A non-positive ttl means DefaultSessionTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{sessions: map[string]*Session{}, ttl: ttl, now: time.Now}
}

// Create starts a new session with a fresh id.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(uuid.NewString())
}

func (m *Manager) create(id string) *Session {
	s := &Session{state: NewState(id), lastUsed: m.now(), now: m.now}
	m.sessions[id] = s
	logger.Debug("Session created", "session_id", id)
	return s
}

// Get returns an existing session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, core.Errorf(core.KindNotFound, "workflow.Get", "session %q not found", id)
	}
	return s, nil
}

// GetOrCreate returns the session with id, creating it on first use. An
// empty id always creates a new session.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		return m.create(uuid.NewString())
	}
	if s, ok := m.sessions[id]; ok {
		return s
	}
	return m.create(id)
}

// Delete tears a session down. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	if ok {
		logger.Debug("Session deleted", "session_id", id)
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. A session busy in a stage holds its lock, so its idle time
// is read once the stage ends.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	candidates := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for id, s := range candidates {
		if s.idleSince().Before(cutoff) {
			m.mu.Lock()
			if m.sessions[id] == s {
				delete(m.sessions, id)
				removed++
			}
			m.mu.Unlock()
		}
	}
	if removed > 0 {
		logger.Info("Expired idle sessions", "removed", removed, "ttl", m.ttl.String())
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	every := m.ttl / 4
	if every < time.Minute {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
