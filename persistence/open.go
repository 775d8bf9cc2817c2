package persistence

import (
	"fmt"

	"github.com/wfunc/gardien/config"
)

// Open returns the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.SQLite.Path)
	case "postgres":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm-postgres":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm-mysql":
		my := cfg.MySQL
		return NewGormMySQL(my.Host, my.Port, my.User, my.Password, my.DBName)
	case "redis":
		rc := cfg.Redis
		return NewRedis(rc.Addr, rc.Password, rc.DB, rc.Prefix)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
