// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // debug | info | warn | error

	StorageDriver string // mysql | memory
	DBUser        string
	DBPass        string // may be empty
	DBHost        string
	DBPort        string
	DBName        string
	DBMigrate     bool // create tables on startup

	JWTSecret    string
	AccessTTLMin int // access token time-to-live in minutes
	BcryptCost   int

	BookingMaxRetries   int           // attempts per booking transaction
	BookingRetryBackoff time.Duration // base delay between attempts
	RequestTimeout      time.Duration // per-request deadline for handlers

	AMQP AMQPConfig
}

// Load reads the .env file when present and then the environment.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.  Database variables are only
// required for the mysql driver.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg := Config{
		Env:                 envStr("APP_ENV", "dev"),
		Port:                must("APP_PORT"),
		LogLevel:            strings.ToLower(envStr("LOG_LEVEL", "info")),
		StorageDriver:       strings.ToLower(envStr("STORAGE_DRIVER", DriverMySQL)),
		DBMigrate:           envBool("DB_MIGRATE", false),
		JWTSecret:           must("JWT_SECRET"),
		AccessTTLMin:        envInt("ACCESS_TOKEN_TTL_MIN", 30),
		BcryptCost:          envInt("BCRYPT_COST", 10),
		BookingMaxRetries:   envInt("BOOKING_MAX_RETRIES", 3),
		BookingRetryBackoff: envDur("BOOKING_RETRY_BACKOFF", 20*time.Millisecond),
		RequestTimeout:      envDur("REQUEST_TIMEOUT", 5*time.Second),
		AMQP:                LoadAMQPConfig(),
	}
	switch cfg.StorageDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		log.Fatalf("invalid STORAGE_DRIVER %q (want %s or %s)", cfg.StorageDriver, DriverMySQL, DriverMemory)
	}
	if cfg.AccessTTLMin <= 0 {
		cfg.AccessTTLMin = 30
	}
	if cfg.BookingMaxRetries < 1 {
		cfg.BookingMaxRetries = 1
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
