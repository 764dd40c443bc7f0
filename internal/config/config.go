package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

type Config struct {
	// HTTP
	Port               string
	CORSAllowedOrigins []string

	// Logging
	AppEnv   string
	LogLevel string
	LogDir   string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Storage
	StorageBackend string
	SQLiteDBPath   string
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	FullDSN        string

	// Rates
	RatesAPIURL   string
	RatesTimeout  time.Duration
	RatesCacheTTL time.Duration

	// values that could not be parsed while loading
	parseProblems []string
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := gotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var problems []string
	cfg := &Config{
		Port:               getEnv("APP_PORT", "4000"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration(&problems, "TOKEN_TTL", 2*time.Hour),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/migasto.db"),
		DBUser:         getEnv("DB_USER", ""),
		DBPass:         getEnv("DB_PASS", ""),
		DBHost:         getEnv("DB_HOST", ""),
		DBPort:         getEnv("DB_PORT", ""),
		DBName:         getEnv("DB_NAME", "migasto"),
		FullDSN:        getEnv("FULL_DSN", ""),

		RatesAPIURL:   getEnv("RATES_API_URL", "https://open.er-api.com/v6"),
		RatesTimeout:  getEnvDuration(&problems, "RATES_TIMEOUT", 0),
		RatesCacheTTL: getEnvDuration(&problems, "RATES_CACHE_TTL", 0),
	}
	cfg.parseProblems = problems

	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.parseProblems...)

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StorageBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using sqlite backend")
		}
	case BackendMySQL:
		if c.FullDSN == "" && (c.DBUser == "" || c.DBPass == "" || c.DBHost == "" || c.DBPort == "") {
			problems = append(problems, "mysql backend needs FULL_DSN or DB_USER, DB_PASS, DB_HOST and DB_PORT")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid storage backend '%s': must be one of memory, sqlite, mysql", c.StorageBackend))
	}

	if c.TokenTTL <= 0 {
		problems = append(problems, fmt.Sprintf("invalid token ttl %v: must be positive", c.TokenTTL))
	}

	if parsed, err := url.Parse(c.RatesAPIURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid rates api url '%s'", c.RatesAPIURL))
	}
	if c.RatesTimeout < 0 {
		problems = append(problems, "RATES_TIMEOUT cannot be negative")
	}
	if c.RatesCacheTTL < 0 {
		problems = append(problems, "RATES_CACHE_TTL cannot be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// MySQLDSN builds the DSN for the configured database.
func (c *Config) MySQLDSN() string {
	if c.FullDSN != "" {
		return c.FullDSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration keeps the default on a malformed value and records it in problems.
func getEnvDuration(problems *[]string, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid %s '%s': %v", key, value, err))
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
