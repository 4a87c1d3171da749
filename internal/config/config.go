// Package config loads machinelog settings from the environment.
//
// Every field carries an env tag and most carry a default, so a bare
// `machinelog-server` starts against a local workbook with an in-process
// lock. Validate runs on load and reports every problem at once.
package config

import (
	"strconv"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendXLSX     = "xlsx"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Lock       LockConfig
	Submission SubmissionConfig
	Summary    SummaryConfig
	Schema     SchemaConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds every handler through chi's Timeout middleware.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the sheet store.
type StoreConfig struct {
	// Backend is one of memory, xlsx, postgres, sqlite (default: xlsx)
	Backend string `env:"STORE_BACKEND" default:"xlsx"`

	// WorkbookPath is the .xlsx file for the xlsx backend.
	WorkbookPath string `env:"STORE_WORKBOOK_PATH" default:"machine_records.xlsx"`

	// FlushInterval controls how often a dirty workbook is saved (0 = after every write).
	FlushInterval time.Duration `env:"STORE_FLUSH_INTERVAL" default:"0s"`

	SQLitePath string `env:"STORE_SQLITE_PATH" default:"machinelog.db"`

	// DatabaseURL is required only for the postgres backend.
	DatabaseURL     string        `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LockConfig selects the per-sheet lock implementation.
type LockConfig struct {
	Backend string `env:"LOCK_BACKEND" default:"local"`

	RedisAddress  string `env:"REDIS_ADDRESS" default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`

	// TTL must exceed the slowest merge; a crashed holder blocks for at most this long.
	TTL           time.Duration `env:"LOCK_TTL" default:"30s"`
	WaitTimeout   time.Duration `env:"LOCK_WAIT_TIMEOUT" default:"10s"`
	RetryInterval time.Duration `env:"LOCK_RETRY_INTERVAL" default:"50ms"`
}

// SubmissionConfig bounds the submission endpoint.
type SubmissionConfig struct {
	// MaxBodyBytes caps the JSON payload size (default: 1MB)
	MaxBodyBytes int64 `env:"SUBMISSION_MAX_BODY_BYTES" default:"1048576"`

	// MaxConcurrent is the number of merges allowed in flight (default: 8)
	MaxConcurrent int `env:"SUBMISSION_MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long a request waits for a merge slot (default: 10s)
	MaxWaitTime time.Duration `env:"SUBMISSION_MAX_WAIT_TIME" default:"10s"`

	// Timeout bounds a single merge including lock waits (default: 30s)
	Timeout time.Duration `env:"SUBMISSION_TIMEOUT" default:"30s"`
}

// SummaryConfig controls the aggregator and its schedule.
type SummaryConfig struct {
	// RebuildInterval is how often the summary sheet is rebuilt (default: 24h)
	RebuildInterval time.Duration `env:"SUMMARY_REBUILD_INTERVAL" default:"24h"`

	// SchedulerEnabled turns the periodic rebuild on or off (default: true)
	SchedulerEnabled bool `env:"SUMMARY_SCHEDULER_ENABLED" default:"true"`

	// RunOnStart rebuilds once at startup (default: false)
	RunOnStart bool `env:"SUMMARY_RUN_ON_START" default:"false"`

	// Workers is the number of daily sheets read in parallel (default: 4)
	Workers int `env:"SUMMARY_WORKERS" default:"4"`

	// Timeout bounds one rebuild (default: 5m)
	Timeout time.Duration `env:"SUMMARY_TIMEOUT" default:"5m"`
}

// SchemaConfig overrides the enumerations. A schema file wins over the lists.
type SchemaConfig struct {
	File         string   `env:"SCHEMA_FILE"`
	Factories    []string `env:"FACTORIES"`
	MachineTypes []string `env:"MACHINE_TYPES"`
	StatusTypes  []string `env:"STATUS_TYPES"`
}

// RateLimitConfig holds rate limiting settings per client IP.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to read endpoints (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// SubmissionLimit applies to the submission endpoint (default: 60)
	SubmissionLimit int `env:"RATE_LIMIT_SUBMISSION" default:"60"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the admin routes (summary rebuild).
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// AllowedOrigins feeds the CORS middleware. Operator pages are often
	// served from a different host than the API.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
