// Package config provides configuration management for the memory service.
// Settings come from three layers: built-in defaults, an optional YAML file,
// and environment variables with the WHOOMI_ prefix. Environment variables
// win over the file, the file wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the memory service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Tagging   TaggingConfig   `yaml:"tagging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 7171

	// RateLimit is the sustained request rate per client; RateBurst is the
	// short-term burst allowance.
	RateLimit float64 `yaml:"rate_limit"` // default: 20
	RateBurst int     `yaml:"rate_burst"` // default: 40
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	// Engine selects the backend: sqlite or postgres.
	Engine string `yaml:"engine"` // default: sqlite

	// DataPath is the SQLite database file path.
	DataPath string `yaml:"data_path"` // default: ./data/memories.db

	// PostgresDSN is the connection string when Engine is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	// UseMock selects the seeded deterministic generator instead of the
	// OpenAI provider.
	UseMock bool `yaml:"use_mock"`

	OpenAIAPIKey string        `yaml:"openai_api_key"`
	Model        string        `yaml:"model"`     // default: text-embedding-3-small
	Dimension    int           `yaml:"dimension"` // default: 1536
	Timeout      time.Duration `yaml:"timeout"`   // default: 30s
}

// TaggingConfig contains annotator configuration.
type TaggingConfig struct {
	// UseHeuristic selects the offline annotator instead of the LLM.
	UseHeuristic bool `yaml:"use_heuristic"`

	Model string `yaml:"model"` // default: gpt-4o-mini
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	// Mode is development or production. Production requires APIToken and
	// enforces bearer auth on the API.
	Mode     string `yaml:"mode"` // default: development
	APIToken string `yaml:"api_token"`
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by WHOOMI_CONFIG_FILE, and WHOOMI_* environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv("WHOOMI_CONFIG_FILE"))
}

// LoadConfigFile is LoadConfig with an explicit file path. An empty path
// skips the file layer.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires WHOOMI_POSTGRES_DSN")
	}

	switch c.Security.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("config: unknown security mode %q", c.Security.Mode)
	}
	if c.Security.Mode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: production mode requires WHOOMI_API_TOKEN")
	}

	if !c.Embedding.UseMock && c.Embedding.OpenAIAPIKey == "" {
		return fmt.Errorf("config: live embeddings require WHOOMI_OPENAI_API_KEY (or set WHOOMI_USE_MOCK_EMBEDDINGS=true)")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      7171,
			RateLimit: 20,
			RateBurst: 40,
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data/memories.db",
		},
		Embedding: EmbeddingConfig{
			UseMock:   true,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			Timeout:   30 * time.Second,
		},
		Tagging: TaggingConfig{
			UseHeuristic: true,
			Model:        "gpt-4o-mini",
		},
		Security: SecurityConfig{
			Mode: "development",
		},
	}
}

// applyEnv overlays WHOOMI_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("WHOOMI_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("WHOOMI_PORT", cfg.Server.Port)
	cfg.Server.RateLimit = getEnvFloat("WHOOMI_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateBurst = getEnvInt("WHOOMI_RATE_BURST", cfg.Server.RateBurst)

	cfg.Storage.Engine = getEnv("WHOOMI_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("WHOOMI_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("WHOOMI_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Embedding.UseMock = getEnvBool("WHOOMI_USE_MOCK_EMBEDDINGS", cfg.Embedding.UseMock)
	cfg.Embedding.OpenAIAPIKey = getEnv("WHOOMI_OPENAI_API_KEY", cfg.Embedding.OpenAIAPIKey)
	cfg.Embedding.Model = getEnv("WHOOMI_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimension = getEnvInt("WHOOMI_EMBEDDING_DIMENSION", cfg.Embedding.Dimension)
	cfg.Embedding.Timeout = getEnvDuration("WHOOMI_EMBEDDING_TIMEOUT", cfg.Embedding.Timeout)

	cfg.Tagging.UseHeuristic = getEnvBool("WHOOMI_USE_HEURISTIC_TAGGER", cfg.Tagging.UseHeuristic)
	cfg.Tagging.Model = getEnv("WHOOMI_TAGGING_MODEL", cfg.Tagging.Model)

	cfg.Security.Mode = getEnv("WHOOMI_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.APIToken = getEnv("WHOOMI_API_TOKEN", cfg.Security.APIToken)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. Accepts the forms strconv.ParseBool accepts.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "45s") or
// returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
