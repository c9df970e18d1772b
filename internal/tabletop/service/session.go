package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Session Manager
// ============================================================

type adminSession struct {
	roomCode string
	expires  time.Time
}

// SessionManager выдаёт токены администратора, привязанные к одной комнате.
type SessionManager struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]adminSession // token -> room
}

func NewSessionManager(ttl time.Duration) *SessionManager {
	return &SessionManager{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]adminSession),
	}
}

func (m *SessionManager) Issue(roomCode string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	m.tokens[token] = adminSession{
		roomCode: strings.ToUpper(roomCode),
		expires:  m.now().Add(m.ttl),
	}
	return token
}

// Resolve возвращает комнату токена. Просроченный токен удаляется.
func (m *SessionManager) Resolve(token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.tokens[token]
	if !ok {
		return "", false
	}
	if m.ttl > 0 && !m.now().Before(s.expires) {
		delete(m.tokens, token)
		return "", false
	}
	return s.roomCode, true
}

func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
}

// RevokeRoom удаляет все токены комнаты (комната удалена).
func (m *SessionManager) RevokeRoom(roomCode string) {
	code := strings.ToUpper(roomCode)
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.tokens {
		if s.roomCode == code {
			delete(m.tokens, token)
		}
	}
}

// Sweep удаляет просроченные токены и возвращает их число.
func (m *SessionManager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, s := range m.tokens {
		if !now.Before(s.expires) {
			delete(m.tokens, token)
			removed++
		}
	}
	return removed
}
