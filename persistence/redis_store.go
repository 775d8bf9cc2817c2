package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/gardien/models"
)

// RedisStore keeps users as JSON documents in Redis hashes.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to addr and pings it.
func NewRedis(addr, password string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if prefix == "" {
		prefix = "gardien"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisStore) key(name string) string { return r.prefix + ":" + name }

func (r *RedisStore) LoadUsers(ctx context.Context) ([]*models.User, error) {
	raw, err := r.rdb.HGetAll(ctx, r.key("users")).Result()
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(raw))
	for id, doc := range raw {
		var u models.User
		if err := json.Unmarshal([]byte(doc), &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", id, err)
		}
		users = append(users, &u)
	}
	sortUsers(users)
	return users, nil
}

func (r *RedisStore) SaveUser(ctx context.Context, user *models.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	nameKey := models.NameKey(user.Name)

	claimed, err := r.rdb.HSetNX(ctx, r.key("names"), nameKey, user.ID).Result()
	if err != nil {
		return err
	}
	if !claimed {
		owner, err := r.rdb.HGet(ctx, r.key("names"), nameKey).Result()
		if err != nil {
			return err
		}
		if owner != user.ID {
			return ErrDuplicateName
		}
	}
	return r.rdb.HSet(ctx, r.key("users"), user.ID, doc).Err()
}

func (r *RedisStore) LoadSessions(ctx context.Context) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, r.key("sessions")).Result()
}

func (r *RedisStore) SaveSession(ctx context.Context, deviceID, userID string) error {
	return r.rdb.HSet(ctx, r.key("sessions"), deviceID, userID).Err()
}

func (r *RedisStore) DeleteSession(ctx context.Context, deviceID string) error {
	return r.rdb.HDel(ctx, r.key("sessions"), deviceID).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
