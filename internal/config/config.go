package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Sync       SyncConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT verification settings. Tokens are minted by the
// account service; this service only validates them.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// SyncConfig tunes the realtime sync engine.
type SyncConfig struct {
	// GraceWindow is how long a locally edited object distrusts
	// non-newer remote events, absorbing echoes of its own writes.
	GraceWindow        time.Duration
	BackoffInitial     time.Duration
	BackoffMax         time.Duration
	ReconnectWarnAfter int
	PresenceTTL        time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("CALLBOARD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("CALLBOARD_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CALLBOARD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("CALLBOARD_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("CALLBOARD_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	graceWindow, err := getEnvDuration("CALLBOARD_SYNC_GRACE_WINDOW", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	backoffInitial, err := getEnvDuration("CALLBOARD_SYNC_BACKOFF_INITIAL", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	backoffMax, err := getEnvDuration("CALLBOARD_SYNC_BACKOFF_MAX", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	warnAfter, err := getEnvInt("CALLBOARD_SYNC_RECONNECT_WARN_AFTER", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceTTL, err := getEnvDuration("CALLBOARD_SYNC_PRESENCE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("CALLBOARD_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("CALLBOARD_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("CALLBOARD_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("CALLBOARD_DB_USER", "callboard"),
			Password: getEnv("CALLBOARD_DB_PASSWORD", ""),
			DBName:   getEnv("CALLBOARD_DB_NAME", "callboard_dev"),
			SSLMode:  getEnv("CALLBOARD_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("CALLBOARD_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CALLBOARD_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("CALLBOARD_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("CALLBOARD_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Sync: SyncConfig{
			GraceWindow:        graceWindow,
			BackoffInitial:     backoffInitial,
			BackoffMax:         backoffMax,
			ReconnectWarnAfter: warnAfter,
			PresenceTTL:        presenceTTL,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("CALLBOARD_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("CALLBOARD_JWT_SECRET must be at least 32 characters")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("CALLBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("CALLBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("CALLBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CALLBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CALLBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Sync.GraceWindow <= 0 {
		return fmt.Errorf("CALLBOARD_SYNC_GRACE_WINDOW must be positive, got %s", c.Sync.GraceWindow)
	}
	if c.Sync.BackoffInitial <= 0 {
		return fmt.Errorf("CALLBOARD_SYNC_BACKOFF_INITIAL must be positive, got %s", c.Sync.BackoffInitial)
	}
	if c.Sync.BackoffMax < c.Sync.BackoffInitial {
		return fmt.Errorf("CALLBOARD_SYNC_BACKOFF_MAX must be >= CALLBOARD_SYNC_BACKOFF_INITIAL, got %s", c.Sync.BackoffMax)
	}
	if c.Sync.ReconnectWarnAfter < 1 {
		return fmt.Errorf("CALLBOARD_SYNC_RECONNECT_WARN_AFTER must be >= 1, got %d", c.Sync.ReconnectWarnAfter)
	}
	if c.Sync.PresenceTTL <= 0 {
		return fmt.Errorf("CALLBOARD_SYNC_PRESENCE_TTL must be positive, got %s", c.Sync.PresenceTTL)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
