// Package config builds the single immutable configuration value the process
// runs with: defaults, then an optional YAML file, then environment overrides,
// then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "compliancehub/pkg/platform/strings"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

const devJWTSecret = "dev-secret-key-change-in-production"

// Config is read once at start and passed by value to whatever needs it. The
// workflow services take none of it.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Redis       RedisConfig       `yaml:"redis"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Policy      PolicyConfig      `yaml:"policy"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	// Path is the SQLite file; empty means an in-memory database.
	Path string `yaml:"path"`
}

// AuthConfig holds the identity collaborator's secrets and token lifetime.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTExpiresIn time.Duration `yaml:"jwt_expires_in"`
	JWTIssuer    string        `yaml:"jwt_issuer"`
	SaltRounds   int           `yaml:"salt_rounds"`

	// Failed logins allowed per email and client IP inside LockoutWindow.
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LockoutWindow    time.Duration `yaml:"lockout_window"`
}

// RedisConfig configures the optional Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// IdempotencyConfig controls how long replayable responses are kept.
type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	AuditTopic    string        `yaml:"audit_topic"`
	RelayInterval time.Duration `yaml:"relay_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// PolicyConfig points at an optional rego file that replaces the embedded
// access policy and is reloaded on change.
type PolicyConfig struct {
	File string `yaml:"file"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Auth: AuthConfig{
			JWTSecret:    devJWTSecret,
			JWTExpiresIn: 24 * time.Hour,
			JWTIssuer:    "compliancehub",
			SaltRounds:   10,

			MaxLoginAttempts: 5,
			LockoutWindow:    15 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Idempotency: IdempotencyConfig{TTL: 24 * time.Hour},
		Kafka: KafkaConfig{
			AuditTopic:    "compliance.audit",
			RelayInterval: time.Second,
			BatchSize:     100,
		},
		Telemetry: TelemetryConfig{ServiceName: "compliancehub"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from an optional YAML file and applies environment
// variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // config path is operator-controlled
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if val := getenv("PORT"); val != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(val, ":")
	}

	if val := getenv("DATABASE_DRIVER"); val != "" {
		cfg.Database.Driver = strings.ToLower(val)
	}
	if val := getenv("DATABASE_URL"); val != "" {
		cfg.Database.URL = val
	}
	if val := getenv("DATABASE_PATH"); val != "" {
		cfg.Database.Path = val
	}

	if val := getenv("JWT_SECRET"); val != "" {
		cfg.Auth.JWTSecret = val
	}
	if val := getenv("JWT_EXPIRES_IN"); val != "" {
		d, err := ParseTTL(val)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRES_IN %q: %w", val, err)
		}
		cfg.Auth.JWTExpiresIn = d
	}
	if val := getenv("SALT_ROUNDS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid SALT_ROUNDS %q: %w", val, err)
		}
		cfg.Auth.SaltRounds = n
	}
	if val := getenv("LOGIN_MAX_ATTEMPTS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS %q: %w", val, err)
		}
		cfg.Auth.MaxLoginAttempts = n
	}
	if val := getenv("LOGIN_LOCKOUT_WINDOW"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid LOGIN_LOCKOUT_WINDOW %q: %w", val, err)
		}
		cfg.Auth.LockoutWindow = d
	}

	if val := getenv("REDIS_URL"); val != "" {
		cfg.Redis.URL = val
	}
	if val := getenv("IDEMPOTENCY_TTL"); val != "" {
		d, err := ParseTTL(val)
		if err != nil {
			return fmt.Errorf("invalid IDEMPOTENCY_TTL %q: %w", val, err)
		}
		cfg.Idempotency.TTL = d
	}

	if val := getenv("KAFKA_BROKERS"); val != "" {
		cfg.Kafka.Brokers = pstrings.SplitList(val)
	}
	if val := getenv("AUDIT_TOPIC"); val != "" {
		cfg.Kafka.AuditTopic = val
	}

	if val := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := getenv("OTEL_EXPORTER_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := getenv("OTEL_SERVICE_NAME"); val != "" {
		cfg.Telemetry.ServiceName = val
	}

	if val := getenv("POLICY_FILE"); val != "" {
		cfg.Policy.File = val
	}

	if val := getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := getenv("LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	return nil
}

// ParseTTL accepts Go durations ("90m", "24h") and whole days ("7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count: %w", err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	switch c.Database.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres, DriverMySQL:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT secret is required"))
	}
	if c.Auth.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT lifetime must be positive"))
	}
	// bcrypt accepts costs 4..31.
	if c.Auth.SaltRounds < 4 || c.Auth.SaltRounds > 31 {
		errs = append(errs, fmt.Errorf("SALT_ROUNDS must be between 4 and 31, got %d", c.Auth.SaltRounds))
	}
	// Zero attempts disables the login lockout.
	if c.Auth.MaxLoginAttempts < 0 {
		errs = append(errs, errors.New("max login attempts must not be negative"))
	}
	if c.Auth.MaxLoginAttempts > 0 && c.Auth.LockoutWindow <= 0 {
		errs = append(errs, errors.New("lockout window must be positive"))
	}

	if c.Redis.URL != "" && c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("idempotency TTL must be positive"))
	}

	if len(c.Kafka.Brokers) > 0 {
		if c.Kafka.AuditTopic == "" {
			errs = append(errs, errors.New("audit topic is required when brokers are set"))
		}
		if c.Kafka.BatchSize <= 0 {
			errs = append(errs, errors.New("outbox batch size must be positive"))
		}
		if c.Kafka.RelayInterval <= 0 {
			errs = append(errs, errors.New("outbox relay interval must be positive"))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unsupported log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// UsesDevSecret reports whether the built-in development JWT secret is active.
func (c Config) UsesDevSecret() bool {
	return c.Auth.JWTSecret == devJWTSecret
}
