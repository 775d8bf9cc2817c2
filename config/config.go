package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	AI       AIConfig       `mapstructure:"ai"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	HTTPAddress       string        `mapstructure:"http_address"`
	RPCAddress        string        `mapstructure:"rpc_address"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver is one of memory, sqlite, postgres, gorm-postgres, gorm-mysql, redis.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	MySQL    PostgresConfig `mapstructure:"mysql"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// AIConfig configures the image classifier and the oracle. The API key is
// read from the environment.
type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"api_key" env:"GEMINI_API_KEY"`
}

type ArchiveConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key" env:"ARCHIVE_ACCESS_KEY"`
	SecretKey string `mapstructure:"secret_key" env:"ARCHIVE_SECRET_KEY"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret" env:"GARDIEN_AUTH_SECRET"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type GameConfig struct {
	MaxAdmins    int     `mapstructure:"max_admins"`
	NearbyRadius float64 `mapstructure:"nearby_radius"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.heartbeat_interval", 30*time.Second)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "gardien.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.dbname", "gardien")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.dbname", "gardien")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.prefix", "gardien")

	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.model", "gemini-3-flash-preview")
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.prefix", "proofs")

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("game.max_admins", 3)
	v.SetDefault("game.nearby_radius", 50.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "gardien")
}

// LoadConfig reads config.yaml from path when present; every key can be
// overridden by GARDIEN_<SECTION>_<KEY> environment variables.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("gardien")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	config = &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// credentials come from the plain environment names as well
	for _, target := range []any{&config.AI, &config.Archive, &config.Auth} {
		if err = env.Parse(target); err != nil {
			return nil, fmt.Errorf("parse env: %w", err)
		}
	}
	return config, nil
}
