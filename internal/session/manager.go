package session

import (
	"errors"
	"sync"

	"github.com/courselab/quiz-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager keeps live sessions keyed by session id. Sessions are in-memory
// only while in progress; submitted state is persisted by the onSubmit hook.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create builds and starts a session for a quiz and registers it.
func (m *Manager) Create(id string, quiz *models.Quiz, onSubmit func(Snapshot)) *Session {
	s := New(id, quiz, onSubmit)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	s.Start()
	s.StartCountdown()
	return s
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

// Remove tears a session down and forgets it. The countdown is cancelled so
// no callback can fire against removed state.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
