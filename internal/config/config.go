package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"carhub/internal/auth"
)

const insecureDefaultSecret = "change-me"

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env            string
	ServerPort     string
	SwaggerHost    string
	StorageTimeout time.Duration

	MySQLDSN  string
	ResetDB   bool
	RedisAddr string
	RedisDB   int
	RedisPass string

	Auth      AuthConfig
	Password  PasswordConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// AuthConfig configures token signing and password hashing.
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	BcryptCost  int
	HashWorkers int
}

// PasswordConfig is the policy for system-generated account passwords.
type PasswordConfig struct {
	Length        int
	RequireDigit  bool
	RequireUpper  bool
	RequireLower  bool
	RequireSymbol bool
}

// SMTPConfig holds outbound mail settings used to deliver generated passwords.
type SMTPConfig struct {
	Host         string
	Port         int
	User         string
	Pass         string
	From         string
	TLSMode      string
	FrontendURL  string
	WelcomeTitle string
}

// RateLimitConfig bounds login attempts per email.
type RateLimitConfig struct {
	LoginMax    int
	LoginWindow time.Duration
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		Env:            getEnv("APP_ENV", "dev"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		SwaggerHost:    os.Getenv("SWAGGER_HOST"),
		StorageTimeout: getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
		MySQLDSN:       getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/carhub?charset=utf8mb4&parseTime=True&loc=UTC"),
		ResetDB:        getEnvBool("RESET_DB", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisPass:      os.Getenv("REDIS_PASSWORD"),
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", insecureDefaultSecret),
			TokenTTL:    getEnvDuration("TOKEN_TTL", time.Hour),
			BcryptCost:  getEnvInt("BCRYPT_COST", 10),
			HashWorkers: getEnvInt("HASH_WORKERS", runtime.NumCPU()),
		},
		Password: PasswordConfig{
			Length:        getEnvInt("PASSWORD_LENGTH", 10),
			RequireDigit:  getEnvBool("PASSWORD_REQUIRE_DIGIT", true),
			RequireUpper:  getEnvBool("PASSWORD_REQUIRE_UPPER", false),
			RequireLower:  getEnvBool("PASSWORD_REQUIRE_LOWER", true),
			RequireSymbol: getEnvBool("PASSWORD_REQUIRE_SYMBOL", false),
		},
		SMTP: SMTPConfig{
			Host:         getEnv("SMTP_HOST", "localhost"),
			Port:         getEnvInt("SMTP_PORT", 587),
			User:         os.Getenv("SMTP_USER"),
			Pass:         os.Getenv("SMTP_PASSWORD"),
			From:         getEnv("SMTP_FROM", "no-reply@carhub.local"),
			TLSMode:      getEnv("SMTP_TLS_MODE", "auto"),
			FrontendURL:  strings.TrimRight(getEnv("FRONT_END", "http://localhost:3000"), "/"),
			WelcomeTitle: getEnv("WELCOME_EMAIL_SUBJECT", "Welcome to CarHub"),
		},
		RateLimit: RateLimitConfig{
			LoginMax:    getEnvInt("LOGIN_RATE_MAX", 10),
			LoginWindow: getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// IsProd reports whether the process runs with production settings.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.Env, "prod")
}

// PasswordPolicy returns the policy for generated account passwords.
func (c *Config) PasswordPolicy() auth.PasswordPolicy {
	return auth.PasswordPolicy{
		Length:        c.Password.Length,
		RequireDigit:  c.Password.RequireDigit,
		RequireUpper:  c.Password.RequireUpper,
		RequireLower:  c.Password.RequireLower,
		RequireSymbol: c.Password.RequireSymbol,
	}
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProd() && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == insecureDefaultSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in prod"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.HashWorkers < 1 {
		errs = append(errs, errors.New("HASH_WORKERS must be at least 1"))
	}
	if err := c.PasswordPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("PASSWORD_LENGTH / PASSWORD_REQUIRE_*: %w", err))
	}
	if c.IsProd() && c.ResetDB {
		errs = append(errs, errors.New("RESET_DB is not allowed in prod"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
