package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Lookup resolves an environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Load reads configuration from the process environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup Lookup) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func loadStruct(v reflect.Value, lookup Lookup) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := get(lookup, envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = get(lookup, alt)
			}
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

func get(lookup Lookup, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// splitList splits on commas and drops blanks. Machine type names contain
// spaces, so only commas separate.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is usable and reports every failure.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendXLSX:
		if c.Store.WorkbookPath == "" {
			errs = append(errs, "STORE_WORKBOOK_PATH is required for the xlsx backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, "STORE_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
		if c.Store.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Store.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Store.MaxConns < c.Store.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Store.MaxConns, c.Store.MinConns))
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND (%q) must be one of: memory, xlsx, postgres, sqlite", c.Store.Backend))
	}
	if c.Store.FlushInterval < 0 {
		errs = append(errs, "STORE_FLUSH_INTERVAL must be non-negative")
	}

	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisAddress == "" {
			errs = append(errs, "REDIS_ADDRESS is required for the redis lock backend")
		}
		if c.Lock.TTL <= 0 {
			errs = append(errs, "LOCK_TTL must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("LOCK_BACKEND (%q) must be one of: local, redis", c.Lock.Backend))
	}
	if c.Lock.WaitTimeout <= 0 {
		errs = append(errs, "LOCK_WAIT_TIMEOUT must be positive")
	}

	if c.Submission.MaxBodyBytes <= 0 {
		errs = append(errs, "SUBMISSION_MAX_BODY_BYTES must be positive")
	}
	if c.Submission.MaxConcurrent <= 0 {
		errs = append(errs, "SUBMISSION_MAX_CONCURRENT must be positive")
	}
	if c.Submission.MaxWaitTime <= 0 {
		errs = append(errs, "SUBMISSION_MAX_WAIT_TIME must be positive")
	}
	if c.Submission.Timeout <= 0 {
		errs = append(errs, "SUBMISSION_TIMEOUT must be positive")
	}

	if c.Summary.SchedulerEnabled && c.Summary.RebuildInterval <= 0 {
		errs = append(errs, "SUMMARY_REBUILD_INTERVAL must be positive when the scheduler is enabled")
	}
	if c.Summary.Workers <= 0 {
		errs = append(errs, "SUMMARY_WORKERS must be positive")
	}
	if c.Summary.Timeout <= 0 {
		errs = append(errs, "SUMMARY_TIMEOUT must be positive")
	}

	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.SubmissionLimit <= 0) {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_SUBMISSION must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a representation safe for logs. Secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Store: {Backend: %q, Workbook: %q, SQLite: %q, DatabaseURL: %s}, ",
		c.Store.Backend, c.Store.WorkbookPath, c.Store.SQLitePath, mask(c.Store.DatabaseURL))
	fmt.Fprintf(&b, "Lock: {Backend: %q, Redis: %q, Password: %s, TTL: %s}, ",
		c.Lock.Backend, c.Lock.RedisAddress, mask(c.Lock.RedisPassword), c.Lock.TTL)
	fmt.Fprintf(&b, "Submission: {MaxConcurrent: %d, Timeout: %s}, ",
		c.Submission.MaxConcurrent, c.Submission.Timeout)
	fmt.Fprintf(&b, "Summary: {Scheduler: %v, Interval: %s, Workers: %d}, ",
		c.Summary.SchedulerEnabled, c.Summary.RebuildInterval, c.Summary.Workers)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
