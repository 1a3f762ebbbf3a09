package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager tracks the sessions currently streaming, one per connected
// sender. The receiver registers a session when a transport connects and
// removes it at teardown; the status API reads the registry.
type Manager struct {
	sessions map[string]*Session // session ID -> session
	mu       sync.RWMutex
	logger   *slog.Logger

	maxSessions int
}

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	MaxSessions int // concurrent stream limit, defaults to 4
	Logger      *slog.Logger
}

// NewManager creates a session manager with no active sessions.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 4
	}

	return &Manager{
		sessions:    make(map[string]*Session),
		logger:      cfg.Logger,
		maxSessions: cfg.MaxSessions,
	}
}

// Register adds a session to the registry. It fails when the concurrent
// stream limit is reached, so a flood of connections cannot pile up fifos.
func (m *Manager) Register(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return fmt.Errorf("session limit reached (%d active)", len(m.sessions))
	}
	if _, exists := m.sessions[sess.ID]; exists {
		return fmt.Errorf("session already registered: %s", sess.ID)
	}

	m.sessions[sess.ID] = sess
	m.logger.Info("session registered", "session", sess.ID, "active", len(m.sessions))
	return nil
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove takes a session out of the registry and closes it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	sess, exists := m.sessions[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("session not found: %s", id)
	}
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()

	sess.Close()
	m.logger.Info("session removed", "session", id, "active", active)
	return nil
}

// SessionCount returns the number of active sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns the stats of every active session keyed by ID.
func (m *Manager) Snapshot() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.sessions))
	for id, sess := range m.sessions {
		out[id] = sess.Stats()
	}
	return out
}

// Close removes and closes every session, bounding the wait so a follower
// stuck mid-drain cannot hang shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, id := range ids {
			if err := m.Remove(id); err != nil {
				m.logger.Error("failed to remove session during shutdown", "session", id, "error", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.logger.Warn("session cleanup timeout", "pending", len(ids))
	}

	return nil
}
