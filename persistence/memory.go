package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/gardien/models"
)

// Memory keeps everything in process. Used for tests and offline play.
type Memory struct {
	users    map[string]*models.User
	sessions map[string]string
	mutex    sync.RWMutex
}

// NewMemory returns an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*models.User),
		sessions: make(map[string]string),
	}
}

func (m *Memory) LoadUsers(_ context.Context) ([]*models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	users := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u.Clone())
	}
	sortUsers(users)
	return users, nil
}

func (m *Memory) SaveUser(_ context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := models.NameKey(user.Name)
	for id, u := range m.users {
		if id != user.ID && models.NameKey(u.Name) == key {
			return ErrDuplicateName
		}
	}
	m.users[user.ID] = user.Clone()
	return nil
}

func (m *Memory) LoadSessions(_ context.Context) (map[string]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[string]string, len(m.sessions))
	for k, v := range m.sessions {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SaveSession(_ context.Context, deviceID, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[deviceID] = userID
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, deviceID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, deviceID)
	return nil
}

func (m *Memory) Close() error { return nil }

// sortUsers orders users by creation time, then id.
func sortUsers(users []*models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
}
