package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/domain"
)

// Memory is an in-process Store. Expired sessions are dropped lazily on read and by Sweep.
type Memory struct {
	mu       sync.RWMutex
	sessions map[domain.Identity]*Session
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an in-memory store. A non-positive ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		sessions: make(map[domain.Identity]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Memory) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}

// Get returns a copy of the stored session.
func (m *Memory) Get(_ context.Context, who domain.Identity) (*Session, bool, error) {
	m.mu.RLock()
	s, ok := m.sessions[who]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.expired(s, m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[who]; ok && cur == s {
			delete(m.sessions, who)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

// Put stores a copy of s and stamps UpdatedAt.
func (m *Memory) Put(_ context.Context, s *Session) error {
	cp := s.Clone()
	cp.UpdatedAt = m.now()
	s.UpdatedAt = cp.UpdatedAt

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[cp.Identity] = cp
	return nil
}

// Delete removes the session for who.
func (m *Memory) Delete(_ context.Context, who domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, who)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for who, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, who)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug(ctx, logger.ComponentSessions, "sessions.swept",
					slog.Int("count", n),
				)
			}
		}
	}
}
