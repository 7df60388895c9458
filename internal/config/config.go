package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	AI        AIConfig        `yaml:"ai"`
	Program   ProgramConfig   `yaml:"program"`
	Content   ContentConfig   `yaml:"content"`
	Redis     RedisConfig     `yaml:"redis"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the backend: "local" (SQLite file) or "hosted"
// (PostgreSQL, configured under database).
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	AdminAPIKey string `yaml:"admin_api_key"`
}

// AIConfig selects the model provider. An empty provider disables AI
// features.
type AIConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	// TimeoutSeconds bounds a single model call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type ProgramConfig struct {
	SessionsPerWeek int `yaml:"sessions_per_week"`
}

type ContentConfig struct {
	CacheSeconds int `yaml:"cache_seconds"`
}

// RedisConfig enables rate limiting of AI endpoints when Addr is set.
type RedisConfig struct {
	Addr                string `yaml:"addr"`
	Password            string `yaml:"password"`
	AIRequestsPerMinute int    `yaml:"ai_requests_per_minute"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix PHYSCIO_ and underscore-separated paths:
//
//	PHYSCIO_SERVER_HOST, PHYSCIO_SERVER_PORT,
//	PHYSCIO_STORAGE_BACKEND, PHYSCIO_SQLITE_PATH,
//	PHYSCIO_DB_HOST, PHYSCIO_DB_PORT, PHYSCIO_DB_NAME,
//	PHYSCIO_DB_USER, PHYSCIO_DB_PASSWORD, PHYSCIO_DB_SSLMODE,
//	PHYSCIO_AUTH_ADMIN_API_KEY,
//	PHYSCIO_AI_PROVIDER, PHYSCIO_AI_API_KEY, PHYSCIO_AI_BASE_URL, PHYSCIO_AI_MODEL,
//	PHYSCIO_REDIS_ADDR, PHYSCIO_REDIS_PASSWORD,
//	PHYSCIO_LOG_LEVEL, PHYSCIO_LOG_FORMAT, PHYSCIO_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"PHYSCIO_SERVER_HOST":        &cfg.Server.Host,
		"PHYSCIO_STORAGE_BACKEND":    &cfg.Storage.Backend,
		"PHYSCIO_SQLITE_PATH":        &cfg.Storage.SQLitePath,
		"PHYSCIO_DB_HOST":            &cfg.Database.Host,
		"PHYSCIO_DB_NAME":            &cfg.Database.Name,
		"PHYSCIO_DB_USER":            &cfg.Database.User,
		"PHYSCIO_DB_PASSWORD":        &cfg.Database.Password,
		"PHYSCIO_DB_SSLMODE":         &cfg.Database.SSLMode,
		"PHYSCIO_AUTH_ADMIN_API_KEY": &cfg.Auth.AdminAPIKey,
		"PHYSCIO_AI_PROVIDER":        &cfg.AI.Provider,
		"PHYSCIO_AI_API_KEY":         &cfg.AI.APIKey,
		"PHYSCIO_AI_BASE_URL":        &cfg.AI.BaseURL,
		"PHYSCIO_AI_MODEL":           &cfg.AI.Model,
		"PHYSCIO_REDIS_ADDR":         &cfg.Redis.Addr,
		"PHYSCIO_REDIS_PASSWORD":     &cfg.Redis.Password,
		"PHYSCIO_LOG_LEVEL":          &cfg.Logging.Level,
		"PHYSCIO_LOG_FORMAT":         &cfg.Logging.Format,
		"PHYSCIO_LOG_FILE":           &cfg.Logging.File,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PHYSCIO_SERVER_PORT": &cfg.Server.Port,
		"PHYSCIO_DB_PORT":     &cfg.Database.Port,
	}
	for env, dst := range ints {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Backend == "local" && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "physcio.db"
	}
	if cfg.Program.SessionsPerWeek == 0 {
		cfg.Program.SessionsPerWeek = 3
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Content.CacheSeconds == 0 {
		cfg.Content.CacheSeconds = 300
	}
	if cfg.Redis.AIRequestsPerMinute == 0 {
		cfg.Redis.AIRequestsPerMinute = 10
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "physcio"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Backend {
	case "local":
	case "hosted":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("storage.backend must be local or hosted, got %q", c.Storage.Backend)
	}
	if c.Auth.AdminAPIKey == "" {
		return fmt.Errorf("auth.admin_api_key is required")
	}
	switch c.AI.Provider {
	case "", "gemini", "openai", "groq":
	case "custom":
		if c.AI.BaseURL == "" || c.AI.Model == "" {
			return fmt.Errorf("ai.base_url and ai.model are required for the custom provider")
		}
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.Program.SessionsPerWeek < 1 {
		return fmt.Errorf("program.sessions_per_week must be at least 1")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
