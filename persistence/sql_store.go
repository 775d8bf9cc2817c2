// persistence/sql_store.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动
	"github.com/wfunc/gardien/models"
	_ "modernc.org/sqlite" // SQLite 驱动
)

// SQLStore keeps users in a relational database through database/sql. The
// schema and queries are shared by PostgreSQL and SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*SQLStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
	return openSQL("postgres", connStr)
}

// NewSQLite opens a SQLite file at path.
func NewSQLite(path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	store, err := openSQL("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time
	store.db.SetMaxOpenConns(1)
	return store, nil
}

func openSQL(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            name_key TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL,
            game_state TEXT NOT NULL,
            created_at BIGINT NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS device_sessions (
            device_id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            updated_at BIGINT NOT NULL
        )
    `)
	return err
}

func (p *SQLStore) LoadUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, password, role, game_state, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var (
			u         models.User
			role      string
			stateJSON string
			created   int64
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Password, &role, &stateJSON, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stateJSON), &u.GameState); err != nil {
			return nil, fmt.Errorf("decode game state of %s: %w", u.ID, err)
		}
		u.Role = models.Role(role)
		u.CreatedAt = time.UnixMilli(created).UTC()
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (p *SQLStore) SaveUser(ctx context.Context, user *models.User) error {
	stateJSON, err := json.Marshal(user.GameState)
	if err != nil {
		return fmt.Errorf("encode game state: %w", err)
	}

	var owner string
	err = p.db.QueryRowContext(ctx, p.rebind(`SELECT id FROM users WHERE name_key = $1`), models.NameKey(user.Name)).Scan(&owner)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	case owner != user.ID:
		return ErrDuplicateName
	}

	_, err = p.db.ExecContext(ctx, p.rebind(`
        INSERT INTO users (id, name, name_key, password, role, game_state, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            name_key = excluded.name_key,
            password = excluded.password,
            role = excluded.role,
            game_state = excluded.game_state`),
		user.ID, user.Name, models.NameKey(user.Name), user.Password, string(user.Role),
		string(stateJSON), user.CreatedAt.UTC().UnixMilli(),
	)
	return err
}

func (p *SQLStore) LoadSessions(ctx context.Context) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT device_id, user_id FROM device_sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make(map[string]string)
	for rows.Next() {
		var deviceID, userID string
		if err := rows.Scan(&deviceID, &userID); err != nil {
			return nil, err
		}
		sessions[deviceID] = userID
	}
	return sessions, rows.Err()
}

func (p *SQLStore) SaveSession(ctx context.Context, deviceID, userID string) error {
	_, err := p.db.ExecContext(ctx, p.rebind(`
        INSERT INTO device_sessions (device_id, user_id, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (device_id) DO UPDATE SET user_id = excluded.user_id, updated_at = excluded.updated_at`),
		deviceID, userID, time.Now().UTC().UnixMilli())
	return err
}

func (p *SQLStore) DeleteSession(ctx context.Context, deviceID string) error {
	_, err := p.db.ExecContext(ctx, p.rebind(`DELETE FROM device_sessions WHERE device_id = $1`), deviceID)
	return err
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind turns $n placeholders into ? for SQLite. Queries bind every
// parameter once, in order.
func (p *SQLStore) rebind(query string) string {
	if p.driver != "sqlite" {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

// Close 关闭数据库连接
func (p *SQLStore) Close() error {
	return p.db.Close()
}
