package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the token server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Tokens    TokensConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// TokensConfig controls how new credentials are minted. The environment
// allow-list is enforced here, at load time; the resolver accepts any
// well-formed token.
type TokensConfig struct {
	SecretPrefix        string
	PublicPrefix        string
	Environment         string
	AllowedEnvironments []string
	MasterKey           string // base64, 32 bytes decoded
	DefaultTTL          time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

var segment = regexp.MustCompile(`^[a-z]+$`)

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TOKENS_PORT", 8080),
			Env:  envString("TOKENS_ENV", "development"),
		},
		Database: databaseFromEnv(),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Tokens: tokensFromEnv(),
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadTokens reads only the token settings. Offline tools that never touch
// the database or Redis use it.
func LoadTokens() (*TokensConfig, error) {
	t := tokensFromEnv()
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadDatabase reads only the database settings.
func LoadDatabase() (*DatabaseConfig, error) {
	db := databaseFromEnv()
	if db.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return &db, nil
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func tokensFromEnv() TokensConfig {
	return TokensConfig{
		SecretPrefix:        envString("TOKENS_SECRET_PREFIX", "sk"),
		PublicPrefix:        envString("TOKENS_PUBLIC_PREFIX", "pk"),
		Environment:         envString("TOKENS_ENVIRONMENT", "live"),
		AllowedEnvironments: envList("TOKENS_ALLOWED_ENVIRONMENTS", []string{"live", "test"}),
		MasterKey:           os.Getenv("TOKENS_MASTER_KEY"),
		DefaultTTL:          envDuration("TOKENS_DEFAULT_TTL", 0),
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}

	return c.Tokens.validate()
}

func (t *TokensConfig) validate() error {
	if !segment.MatchString(t.SecretPrefix) {
		return fmt.Errorf("TOKENS_SECRET_PREFIX must be lowercase letters, got %q", t.SecretPrefix)
	}
	if !segment.MatchString(t.PublicPrefix) {
		return fmt.Errorf("TOKENS_PUBLIC_PREFIX must be lowercase letters, got %q", t.PublicPrefix)
	}
	if t.SecretPrefix == t.PublicPrefix {
		return fmt.Errorf("TOKENS_SECRET_PREFIX and TOKENS_PUBLIC_PREFIX must differ, both are %q", t.SecretPrefix)
	}

	for _, env := range t.AllowedEnvironments {
		if !segment.MatchString(env) {
			return fmt.Errorf("TOKENS_ALLOWED_ENVIRONMENTS entries must be lowercase letters, got %q", env)
		}
	}
	if !slices.Contains(t.AllowedEnvironments, t.Environment) {
		return fmt.Errorf("TOKENS_ENVIRONMENT must be one of %s; got %q",
			strings.Join(t.AllowedEnvironments, ", "), t.Environment)
	}

	if t.MasterKey == "" {
		return fmt.Errorf("TOKENS_MASTER_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(t.MasterKey)
	if err != nil {
		return fmt.Errorf("TOKENS_MASTER_KEY must be standard base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("TOKENS_MASTER_KEY must decode to 32 bytes, got %d", len(key))
	}

	if t.DefaultTTL < 0 {
		return fmt.Errorf("TOKENS_DEFAULT_TTL must not be negative, got %s", t.DefaultTTL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
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

func envDuration(key string, defaultVal time.Duration) time.Duration {
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

// envList splits a comma-separated value, dropping blanks.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
