package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"toolhub/internal/logger"
)

const DefaultTTL = 30 * time.Minute

// Manager keeps the live sessions of a process and closes idle ones.
type Manager struct {
	ttl   time.Duration
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(ttl time.Duration, c clock.Clock) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.New()
	}
	return &Manager{ttl: ttl, clock: c, sessions: make(map[string]*Session)}
}

// Open creates and registers a session. deps.Clock defaults to the manager's clock.
func (m *Manager) Open(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if deps.Clock == nil {
		deps.Clock = m.clock
	}
	s, err := New(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	go func() {
		<-s.Done()
		m.mu.Lock()
		if m.sessions[s.ID()] == s {
			delete(m.sessions, s.ID())
		}
		m.mu.Unlock()
	}()
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.Close()
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes every session idle for longer than the TTL and returns how many
// were closed.
func (m *Manager) Sweep() int {
	cutoff := m.clock.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil && err != ErrClosed {
			logger.WarnWithFields("closing idle session failed", logger.Fields{
				"session_id": s.ID(),
				"error":      err.Error(),
			})
		}
	}
	if len(expired) > 0 {
		logger.InfoWithFields("idle chat sessions closed", logger.Fields{"count": len(expired)})
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx ends.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl / 2
	}
	t := m.clock.Ticker(interval)
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

// CloseAll shuts every session down. Used on process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
}
