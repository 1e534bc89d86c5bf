package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// DevJWTSecret is the default signing key. It is only accepted with memory
// storage.
const DevJWTSecret = "smartride-dev-secret-do-not-use-in-production"

// MinJWTSecretLength is the shortest HS256 key accepted outside memory mode.
const MinJWTSecretLength = 32

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NewRelic NewRelicConfig `yaml:"newrelic"`
	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration. An empty Addr disables the cache,
// idempotency replay and persistent token revocation.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `yaml:"app_name"`
	LicenseKey string `yaml:"license_key"`
	Enabled    bool   `yaml:"enabled"`
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// CORSConfig holds the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects the trip and user store.
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "smartride",
			SSLMode:  "disable",

			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		NewRelic: NewRelicConfig{
			AppName: "smartride",
		},
		Auth: AuthConfig{
			JWTSecret:  DevJWTSecret,
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Driver: StoragePostgres,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from the defaults, an optional YAML file
// named by CONFIG_FILE and the environment, in increasing precedence. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret must not be empty")
	}
	// Memory storage is a throwaway dev mode; anything persistent needs a real key.
	if c.Storage.Driver != StorageMemory {
		if c.Auth.JWTSecret == DevJWTSecret {
			return errors.New("jwt secret is the built-in development value, set JWT_SECRET")
		}
		if len(c.Auth.JWTSecret) < MinJWTSecretLength {
			return fmt.Errorf("jwt secret must be at least %d bytes", MinJWTSecretLength)
		}
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		return fmt.Errorf("db max idle conns (%d) exceeds max open conns (%d)", c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getDurationEnv("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.ConnMaxIdleTime = getDurationEnv("DB_CONN_MAX_IDLE_TIME", cfg.Database.ConnMaxIdleTime)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnv("REDIS_DB", cfg.Redis.DB)

	cfg.NewRelic.AppName = getEnv("NEW_RELIC_APP_NAME", cfg.NewRelic.AppName)
	cfg.NewRelic.LicenseKey = getEnv("NEW_RELIC_LICENSE_KEY", cfg.NewRelic.LicenseKey)
	cfg.NewRelic.Enabled = getBoolEnv("NEW_RELIC_ENABLED", cfg.NewRelic.Enabled)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getDurationEnv("JWT_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.BcryptCost = getIntEnv("BCRYPT_COST", cfg.Auth.BcryptCost)

	cfg.CORS.AllowedOrigins = getListEnv("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.Storage.Driver = strings.ToLower(getEnv("STORAGE_DRIVER", cfg.Storage.Driver))

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
