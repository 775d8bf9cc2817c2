package session

import (
	"sync"
	"time"

	"github.com/wfunc/gardien/network"
	"github.com/wfunc/gardien/oracle"
)

// Session is one live connection. UserID is empty until the device logs in.
type Session struct {
	ID         string
	Conn       network.Connection
	Transcript *oracle.Transcript
	CreatedAt  time.Time
	deviceID   string
	userID     string
	questID    int
	hasQuest   bool
	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		Transcript: oracle.NewTranscript(),
		CreatedAt:  now,
		lastActive: now,
	}
}

// Bind attaches the session to a logged in user.
func (s *Session) Bind(deviceID, userID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.deviceID = deviceID
	s.userID = userID
}

// Unbind forgets the user and the chat history.
func (s *Session) Unbind() {
	s.mutex.Lock()
	s.deviceID = ""
	s.userID = ""
	s.hasQuest = false
	s.mutex.Unlock()
	s.Transcript.Reset()
}

func (s *Session) UserID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.userID
}

func (s *Session) DeviceID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.deviceID
}

// Focus makes questID the active quest. The oracle transcript is cleared when
// the quest changes.
func (s *Session) Focus(questID int) {
	s.mutex.Lock()
	s.questID = questID
	s.hasQuest = true
	s.mutex.Unlock()
	s.Transcript.Focus(questID)
}

// ActiveQuest returns the focused quest, if any.
func (s *Session) ActiveQuest() (int, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.questID, s.hasQuest
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
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

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID() == userID {
			result = append(result, session)
		}
	}
	return result
}

// Idle returns sessions with no activity since before.
func (m *Manager) Idle(before time.Time) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.LastActive().Before(before) {
			result = append(result, session)
		}
	}
	return result
}
