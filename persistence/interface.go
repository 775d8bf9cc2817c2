// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/gardien/models"
)

// Database is the durable store for users and device sessions.
type Database interface {
	// LoadUsers returns every user in creation order.
	LoadUsers(ctx context.Context) ([]*models.User, error)
	// SaveUser inserts or replaces a user record.
	SaveUser(ctx context.Context, user *models.User) error
	// LoadSessions returns device id -> user id bindings.
	LoadSessions(ctx context.Context) (map[string]string, error)
	SaveSession(ctx context.Context, deviceID, userID string) error
	DeleteSession(ctx context.Context, deviceID string) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateName  = errors.New("user name already taken")
	ErrUnknownDriver  = errors.New("unknown database driver")
)
