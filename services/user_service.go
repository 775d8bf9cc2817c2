package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/models"
	"github.com/wfunc/gardien/quest"
)

// Login binds deviceID to the user called name, creating it on first use.
// The very first user ever created is an admin. password is stored for new
// users and never checked.
func (s *GameService) Login(ctx context.Context, deviceID, name, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if deviceID == "" {
		return nil, ErrInvalidDevice
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var user *models.User
	if id, ok := s.byName[models.NameKey(name)]; ok {
		user = s.users[id]
	} else {
		role := models.RolePlayer
		if len(s.users) == 0 {
			role = models.RoleAdmin
		}
		user = &models.User{
			ID:        uuid.NewString(),
			Name:      name,
			Password:  password,
			Role:      role,
			GameState: models.NewGameState(),
			CreatedAt: s.now(),
		}
		if err := s.db.SaveUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.addUserLocked(user)
		logger.Log.Infof("New guardian %s (%s) as %s", user.Name, user.ID, user.Role)
	}

	if err := s.db.SaveSession(ctx, deviceID, user.ID); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.sessions[deviceID] = user.ID
	return user.Clone(), nil
}

// Logout clears the device binding. The user record is kept.
func (s *GameService) Logout(ctx context.Context, deviceID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[deviceID]; !ok {
		return nil
	}
	if err := s.db.DeleteSession(ctx, deviceID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	delete(s.sessions, deviceID)
	return nil
}

// Current returns the user bound to deviceID.
func (s *GameService) Current(deviceID string) (*models.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, ok := s.sessions[deviceID]
	if !ok {
		return nil, ErrNotLoggedIn
	}
	return s.users[id].Clone(), nil
}

// User returns a copy of the user with id.
func (s *GameService) User(id string) (*models.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUnknownUser
	}
	return u.Clone(), nil
}

// PromoteToAdmin gives userID the admin role. Only admins may promote, and
// there are never more than the configured number of admins.
func (s *GameService) PromoteToAdmin(ctx context.Context, actorID, userID string) error {
	if !s.isAdmin(actorID) {
		return ErrNotAdmin
	}
	return s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		if u.IsAdmin() {
			return false, nil
		}
		if s.adminCountLocked() >= s.maxAdmins {
			return false, ErrAdminCapReached
		}
		u.Role = models.RoleAdmin
		logger.Log.Infof("User %s promoted to admin by %s", u.ID, actorID)
		return true, nil
	})
}

func (s *GameService) isAdmin(userID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u, ok := s.users[userID]
	return ok && u.IsAdmin()
}

func (s *GameService) adminCountLocked() int {
	n := 0
	for _, u := range s.users {
		if u.IsAdmin() {
			n++
		}
	}
	return n
}

// StartEntryQuest answers the call: the game starts and the entry quest is
// completed. Calling it again changes nothing.
func (s *GameService) StartEntryQuest(ctx context.Context, userID string) (Result, error) {
	entry, ok := s.catalog.Get(quest.EntryID)
	if !ok {
		return Result{}, ErrUnknownQuest
	}
	err := s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		if u.GameState.HasStarted && u.GameState.IsCompleted(entry.ID) {
			return false, nil
		}
		u.GameState.HasStarted = true
		if _, err := u.GameState.Complete(entry, s.now()); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}
	return passed(entry.SuccessMessage), nil
}
