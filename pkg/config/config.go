package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/database"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// Cache backends.
const (
	CacheBackendSQLite   = "sqlite"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

// Config holds all configuration for ekaya-ask.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	LLM            LLMConfig            `yaml:"llm"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Cache          CacheConfig          `yaml:"cache"`
	Upload         UploadConfig         `yaml:"upload"`
	Query          QueryConfig          `yaml:"query"`
	Session        SessionConfig        `yaml:"session"`
}

// LLMConfig selects the text-generation provider.
type LLMConfig struct {
	Provider string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Model    string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	BaseURL  string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Timeout  time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
	APIKey   string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// RetryConfig controls retries of failed gateway calls.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"RETRY_INITIAL_DELAY" env-default:"200ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"5s"`
	Multiplier   float64       `yaml:"multiplier" env:"RETRY_MULTIPLIER" env-default:"2.0"`
	JitterFactor float64       `yaml:"jitter_factor" env:"RETRY_JITTER_FACTOR" env-default:"0.1"`
}

// CircuitBreakerConfig controls when a failing provider stops being called.
type CircuitBreakerConfig struct {
	// Threshold of consecutive failures; 0 disables the breaker.
	Threshold  int           `yaml:"threshold" env:"CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	ResetAfter time.Duration `yaml:"reset_after" env:"CIRCUIT_BREAKER_RESET_AFTER" env-default:"30s"`
}

// CacheConfig selects the query cache backend and its eviction policy.
type CacheConfig struct {
	Backend    string `yaml:"backend" env:"CACHE_BACKEND" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"CACHE_SQLITE_PATH" env-default:"query_cache.db"`

	Postgres PostgresConfig `yaml:"postgres"`

	// MaxAge and MaxEntries bound the cache; zero disables a bound.
	MaxAge          time.Duration `yaml:"max_age" env:"CACHE_MAX_AGE" env-default:"720h"`
	MaxEntries      int           `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"10000"`
	JanitorInterval time.Duration `yaml:"janitor_interval" env:"CACHE_JANITOR_INTERVAL" env-default:"10m"`

	// Memory tier in front of the persistent backend (or the whole cache
	// for the memory backend). A zero capacity disables the tier.
	MemoryTTL      time.Duration `yaml:"memory_ttl" env:"CACHE_MEMORY_TTL" env-default:"1h"`
	MemoryCapacity uint64        `yaml:"memory_capacity" env:"CACHE_MEMORY_CAPACITY" env-default:"500"`
}

// PostgresConfig holds the connection settings of the postgres cache backend.
type PostgresConfig struct {
	Host           string `yaml:"host" env:"CACHE_POSTGRES_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"CACHE_POSTGRES_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"CACHE_POSTGRES_USER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"CACHE_POSTGRES_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"CACHE_POSTGRES_DATABASE" env-default:"ekaya_ask"`
	SSLMode        string `yaml:"ssl_mode" env:"CACHE_POSTGRES_SSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"CACHE_POSTGRES_MAX_CONNECTIONS" env-default:"10"`
}

// UploadConfig controls where uploaded datasets are kept.
type UploadConfig struct {
	Dir      string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	MaxBytes int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"104857600"`
}

// QueryConfig bounds the execution of generated SQL.
type QueryConfig struct {
	RowLimit int           `yaml:"row_limit" env:"QUERY_ROW_LIMIT" env-default:"1000"`
	Timeout  time.Duration `yaml:"timeout" env:"QUERY_TIMEOUT" env-default:"30s"`
}

// SessionConfig controls the session cookie and the chat history kept per session.
type SessionConfig struct {
	CookieName  string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"ekaya_ask_session"`
	MaxAge      time.Duration `yaml:"max_age" env:"SESSION_MAX_AGE" env-default:"24h"`
	Secure      bool          `yaml:"secure" env:"SESSION_SECURE" env-default:"false"`
	MaxMessages int           `yaml:"max_messages" env:"SESSION_MAX_MESSAGES" env-default:"200"`
	Secret      string        `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A .env file in the working directory, if present, is loaded into the
// environment first. A missing config.yaml is not an error: defaults and
// environment variables apply.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultPath, version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	// Variables already set in the environment win over .env
	_ = godotenv.Load()

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate TLS configuration
	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm provider %q (want %s or %s)", c.LLM.Provider, llm.ProviderOpenAI, llm.ProviderAnthropic)
	}

	switch c.Cache.Backend {
	case CacheBackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("cache.sqlite_path is required for the sqlite backend")
		}
	case CacheBackendPostgres, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.MaxAge < 0 || c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_age and cache.max_entries must not be negative")
	}
	if c.Cache.JanitorInterval <= 0 {
		return fmt.Errorf("cache.janitor_interval must be positive")
	}
	if c.Query.RowLimit <= 0 {
		return fmt.Errorf("query.row_limit must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		return fmt.Errorf("retry.jitter_factor must be between 0 and 1")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// GatewayConfig returns the settings of the language-model gateway.
func (c *Config) GatewayConfig() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		BaseURL:  ResolveURLForDocker(c.LLM.BaseURL),
		APIKey:   c.LLM.APIKey,
		Timeout:  c.LLM.Timeout,
		Retry: &retry.Config{
			MaxAttempts:  c.Retry.MaxAttempts,
			InitialDelay: c.Retry.InitialDelay,
			MaxDelay:     c.Retry.MaxDelay,
			Multiplier:   c.Retry.Multiplier,
			JitterFactor: c.Retry.JitterFactor,
		},
		CircuitBreaker: llm.CircuitBreakerConfig{
			Threshold:  c.CircuitBreaker.Threshold,
			ResetAfter: c.CircuitBreaker.ResetAfter,
		},
	}
}

// Policy returns the cache eviction policy.
func (c *CacheConfig) Policy() cache.Policy {
	return cache.Policy{MaxAge: c.MaxAge, MaxEntries: c.MaxEntries}
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *PostgresConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// PoolConfig returns the pool settings of the postgres cache backend.
func (c *PostgresConfig) PoolConfig() *database.PostgresConfig {
	return &database.PostgresConfig{
		URL:            c.ConnectionString(),
		MaxConnections: c.MaxConnections,
	}
}
