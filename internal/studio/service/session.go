package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Session Manager
// ============================================================

type authSession struct {
	userID   string
	lastSeen time.Time
}

// SessionManager хранит bearer-токены в памяти. Токен живёт, пока им
// пользуются чаще, чем раз в ttl.
type SessionManager struct {
	mu     sync.Mutex
	tokens map[string]authSession // token -> session
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(ttl time.Duration) *SessionManager {
	return &SessionManager{
		tokens: make(map[string]authSession),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *SessionManager) Issue(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	m.tokens[token] = authSession{userID: userID, lastSeen: m.now()}
	return token
}

func (m *SessionManager) Resolve(token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.tokens[token]
	if !ok {
		return "", false
	}
	now := m.now()
	if m.ttl > 0 && now.Sub(s.lastSeen) > m.ttl {
		delete(m.tokens, token)
		return "", false
	}
	s.lastSeen = now
	m.tokens[token] = s
	return s.userID, true
}

func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
}
