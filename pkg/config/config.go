package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address string        `yaml:"address"`
	TLS     TLSConfig     `yaml:"tls"`
	WebUI   WebUIConfig   `yaml:"webui"`
	Backend BackendConfig `yaml:"backend"`
	Pool    PoolConfig    `yaml:"pool"`
	Logging LoggingConfig `yaml:"logging"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// WebUIConfig represents admin API credentials
type WebUIConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BackendConfig selects and configures the backend client factory
type BackendConfig struct {
	Type       string `yaml:"type"` // rest | postgres | mysql | sqlite
	URL        string `yaml:"url"`  // Supabase project URL (rest backend)
	ServiceKey string `yaml:"service_key"`
	Schema     string `yaml:"schema"`
	ProbeTable string `yaml:"probe_table"` // table used by the validation probe
	DSN        string `yaml:"dsn"`         // SQL backends
}

// PoolConfig represents connection pool settings
type PoolConfig struct {
	PoolSize            int `yaml:"pool_size"`
	ConnectionTimeoutMS int `yaml:"connection_timeout_ms"`
	IdleTimeoutMS       int `yaml:"idle_timeout_ms"`
	RetryAttempts       int `yaml:"retry_attempts"`
	RetryDelayMS        int `yaml:"retry_delay_ms"`
	CleanupIntervalSec  int `yaml:"cleanup_interval_seconds"`
	WarmupConns         int `yaml:"warmup_connections"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":8080",
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		WebUI: WebUIConfig{
			Username: "admin",
			Password: "admin",
		},
		Backend: BackendConfig{
			Type:       "rest",
			URL:        "",
			ServiceKey: "",
			Schema:     "public",
			ProbeTable: "health_check",
			DSN:        "",
		},
		Pool: PoolConfig{
			PoolSize:            10,
			ConnectionTimeoutMS: 5000,
			IdleTimeoutMS:       300000,
			RetryAttempts:       3,
			RetryDelayMS:        1000,
			CleanupIntervalSec:  30,
			WarmupConns:         2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}

	if url := os.Getenv("SUPABASE_URL"); url != "" {
		config.Backend.URL = url
	}

	if key := os.Getenv("SUPABASE_SERVICE_KEY"); key != "" {
		config.Backend.ServiceKey = key
	}

	if backend := os.Getenv("BACKEND_TYPE"); backend != "" {
		config.Backend.Type = backend
	}

	if dsn := os.Getenv("BACKEND_DSN"); dsn != "" {
		config.Backend.DSN = dsn
	}

	if username := os.Getenv("WEB_USERNAME"); username != "" {
		config.WebUI.Username = username
	}

	if password := os.Getenv("WEB_PASSWORD"); password != "" {
		config.WebUI.Password = password
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	applyEnvInt("POOL_SIZE", &config.Pool.PoolSize)
	applyEnvInt("POOL_CONNECTION_TIMEOUT_MS", &config.Pool.ConnectionTimeoutMS)
	applyEnvInt("POOL_IDLE_TIMEOUT_MS", &config.Pool.IdleTimeoutMS)
	applyEnvInt("POOL_RETRY_ATTEMPTS", &config.Pool.RetryAttempts)
	applyEnvInt("POOL_RETRY_DELAY_MS", &config.Pool.RetryDelayMS)
	applyEnvInt("POOL_WARMUP_CONNECTIONS", &config.Pool.WarmupConns)
}

// applyEnvInt overrides dst when the variable is set and parses as an integer
func applyEnvInt(name string, dst *int) {
	if raw := os.Getenv(name); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			*dst = val
		}
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.WebUI.Username == "" {
		return fmt.Errorf("web UI username cannot be empty")
	}

	if c.WebUI.Password == "" {
		return fmt.Errorf("web UI password cannot be empty")
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	switch c.Backend.Type {
	case "rest", "":
		// URL may legitimately be empty in tests; the factory rejects it at use time
	case "postgres", "mysql", "sqlite":
		if c.Backend.DSN == "" {
			return fmt.Errorf("backend type %s requires a dsn", c.Backend.Type)
		}
	default:
		return fmt.Errorf("unsupported backend type: %s", c.Backend.Type)
	}

	if c.Pool.PoolSize < 1 {
		return fmt.Errorf("pool size must be at least 1")
	}

	if c.Pool.ConnectionTimeoutMS < 1 {
		return fmt.Errorf("connection timeout must be positive")
	}

	if c.Pool.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// ConnectionTimeout returns the acquire timeout as a duration
func (c *PoolConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMS) * time.Millisecond
}

// IdleTimeout returns the idle reap threshold as a duration
func (c *PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

// RetryDelay returns the delay between query retries as a duration
func (c *PoolConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// CleanupInterval returns the idle reaper tick interval as a duration
func (c *PoolConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSec) * time.Second
}

// String returns a string representation of the configuration (for logging).
// The service key is never included.
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, Backend: %s, PoolSize: %d, TLS: %v, LogLevel: %s}",
		c.Address, c.Backend.Type, c.Pool.PoolSize, c.TLS.Enabled, c.Logging.Level)
}
