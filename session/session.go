// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/duckuru/spellin-bee/network"
)

// Session is one authenticated transport connection. UserID and Username
// are set once the first action carrying them arrives.
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string
	Username   string
	RoomID     string
	LobbyID    string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Identify(userID, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if userID != "" {
		s.UserID = userID
	}
	if username != "" {
		s.Username = username
	}
}

func (s *Session) GetUserID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID
}

func (s *Session) GetUsername() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Username
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.LastActive = time.Now()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager tracks all live sessions.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.GetUserID() == userID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
