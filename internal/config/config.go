// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンド
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Auth
	SessionSecret  string
	AuthRequired   bool
	TokenTTL       time.Duration
	BcryptCost     int
	RateLimitLogin int

	// Policies
	EnforceUniqueNameOnUpdate bool
	EnforceProfileCapacity    bool

	// Worker
	ExpiryScanInterval time.Duration
	ExpiringSoonDays   int

	// Logging
	LogFormat string
	LogLevel  string
}

// Load は環境変数からConfigを読み込む。
// 未知のバックエンドや必須環境変数の未設定はエラーとし、不足しているキーをすべて列挙する。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", BackendMemory))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	cfg.AuthRequired = getEnvBool("AUTH_REQUIRED", false)

	// Required fields
	var missing []string

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want memory, postgres, sqlite or redis)", cfg.StorageBackend)
	}

	if cfg.AuthRequired && cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisKeyPrefix = getEnvString("REDIS_KEY_PREFIX", "slotkeeper:")
	cfg.ServerPort = getEnvString("SERVER_PORT", "4000")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 12*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.EnforceUniqueNameOnUpdate = getEnvBool("ENFORCE_UNIQUE_NAME_ON_UPDATE", false)
	cfg.EnforceProfileCapacity = getEnvBool("ENFORCE_PROFILE_CAPACITY", true)
	cfg.ExpiryScanInterval = getEnvDuration("EXPIRY_SCAN_INTERVAL", time.Hour)
	cfg.ExpiringSoonDays = getEnvInt("EXPIRING_SOON_DAYS", 3)
	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", "json"))
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
