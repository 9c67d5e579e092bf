package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Moderation ModerationConfig
	Kafka      KafkaConfig
	Poll       PollConfig
	Admin      AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string   // comma-separated, or "*" for all
	TrustedProxies     []string // proxies whose X-Forwarded-For is honored for voter identity
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string // postgres or memory
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// SessionConfig holds admin session signing and lifetime.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// ModerationConfig holds the text classifier endpoint.
type ModerationConfig struct {
	APIKey  string // empty = permissive classifier
	URL     string
	Model   string
	Timeout time.Duration
}

// KafkaConfig holds the vote event stream. Empty Brokers disables publishing.
type KafkaConfig struct {
	Brokers   []string
	VoteTopic string
}

// PollConfig holds poll defaults.
type PollConfig struct {
	DefaultTTL time.Duration
}

// AdminConfig seeds one admin account at startup when both fields are set.
type AdminConfig struct {
	BootstrapUsername string
	BootstrapPassword string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "5000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			TrustedProxies:     splitTrim(os.Getenv("TRUSTED_PROXIES"), ","),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "townboard"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", "change-me-in-production"),
			TTL:          time.Duration(getEnvInt("SESSION_TTL_HOURS", 12)) * time.Hour,
			CookieName:   getEnv("SESSION_COOKIE_NAME", "board_admin"),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Moderation: ModerationConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			URL:     getEnv("MODERATION_URL", "https://api.openai.com/v1/moderations"),
			Model:   getEnv("MODERATION_MODEL", "text-moderation-latest"),
			Timeout: time.Duration(getEnvInt("MODERATION_TIMEOUT_SEC", 10)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:   splitTrim(os.Getenv("KAFKA_BROKERS"), ","),
			VoteTopic: getEnv("KAFKA_VOTE_TOPIC", "board.votes"),
		},
		Poll: PollConfig{
			DefaultTTL: time.Duration(getEnvInt("POLL_DEFAULT_TTL_HOURS", 7*24)) * time.Hour,
		},
		Admin: AdminConfig{
			BootstrapUsername: os.Getenv("ADMIN_BOOTSTRAP_USERNAME"),
			BootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET must not be empty")
	}
	if c.Poll.DefaultTTL <= 0 {
		return fmt.Errorf("POLL_DEFAULT_TTL_HOURS must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
