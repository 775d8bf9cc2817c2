// persistence/gorm_store.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/gardien/models"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore 使用GORM的实现
type GormStore struct {
	db *gorm.DB
}

// UserModel is the users table.
type UserModel struct {
	ID        string         `gorm:"primaryKey;size:64"`
	Name      string         `gorm:"not null"`
	NameKey   string         `gorm:"size:191;uniqueIndex;not null"`
	Password  string         `gorm:"not null;default:''"`
	Role      string         `gorm:"size:16;not null"`
	GameState datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time
}

func (UserModel) TableName() string { return "users" }

// SessionModel binds a client device to a user.
type SessionModel struct {
	DeviceID  string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"size:64;not null"`
	UpdatedAt time.Time
}

func (SessionModel) TableName() string { return "device_sessions" }

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
	return openGorm(postgres.Open(dsn))
}

// NewGormMySQL 创建GORM MySQL数据库连接
func NewGormMySQL(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, password, host, port, dbname)
	return openGorm(mysql.Open(dsn))
}

func openGorm(dialector gorm.Dialector) (*GormStore, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&UserModel{}, &SessionModel{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func (p *GormStore) LoadUsers(ctx context.Context) ([]*models.User, error) {
	var rows []UserModel
	if err := p.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(rows))
	for _, row := range rows {
		u := &models.User{
			ID:        row.ID,
			Name:      row.Name,
			Password:  row.Password,
			Role:      models.Role(row.Role),
			CreatedAt: row.CreatedAt.UTC(),
		}
		if err := json.Unmarshal(row.GameState, &u.GameState); err != nil {
			return nil, fmt.Errorf("decode game state of %s: %w", row.ID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (p *GormStore) SaveUser(ctx context.Context, user *models.User) error {
	stateJSON, err := json.Marshal(user.GameState)
	if err != nil {
		return fmt.Errorf("encode game state: %w", err)
	}
	row := UserModel{
		ID:        user.ID,
		Name:      user.Name,
		NameKey:   models.NameKey(user.Name),
		Password:  user.Password,
		Role:      string(user.Role),
		GameState: datatypes.JSON(stateJSON),
		CreatedAt: user.CreatedAt,
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner UserModel
		err := tx.Select("id").Where("name_key = ?", row.NameKey).Take(&owner).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case owner.ID != row.ID:
			return ErrDuplicateName
		}

		// 使用UPSERT操作
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "name_key", "password", "role", "game_state", "updated_at"}),
		}).Create(&row).Error
	})
}

func (p *GormStore) LoadSessions(ctx context.Context) (map[string]string, error) {
	var rows []SessionModel
	if err := p.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make(map[string]string, len(rows))
	for _, row := range rows {
		sessions[row.DeviceID] = row.UserID
	}
	return sessions, nil
}

func (p *GormStore) SaveSession(ctx context.Context, deviceID, userID string) error {
	row := SessionModel{DeviceID: deviceID, UserID: userID}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "updated_at"}),
	}).Create(&row).Error
}

func (p *GormStore) DeleteSession(ctx context.Context, deviceID string) error {
	return p.db.WithContext(ctx).Delete(&SessionModel{}, "device_id = ?", deviceID).Error
}

// Close 关闭数据库连接
func (p *GormStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
