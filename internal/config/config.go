package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `json:"rateLimit"`

	// Parsed match cache
	Cache CacheConfig `json:"cache"`

	// Converted match library
	Store StoreConfig `json:"store"`

	// Input size limits
	Limits LimitsConfig `json:"limits"`
}

type ServerConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	HealthAddr  string `json:"healthAddr"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Prefix string `json:"prefix"`
	Format string `json:"format"` // "json" or "text"

	// Optional log file, written in addition to stderr
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
	Compress   bool   `json:"compress"`
}

type RateLimitConfig struct {
	Enabled        bool           `json:"enabled"`
	RequestsPerMin int            `json:"requestsPerMin"`
	BurstSize      int            `json:"burstSize"`
	PerToolLimits  map[string]int `json:"perToolLimits"`
}

type CacheConfig struct {
	Enabled      bool  `json:"enabled"`
	MaxItems     int   `json:"maxItems"`
	MaxSizeBytes int64 `json:"maxSizeBytes"`
	TTLSeconds   int   `json:"ttlSeconds"`
}

type StoreConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

type LimitsConfig struct {
	MaxArchiveBytes int `json:"maxArchiveBytes"`
	MaxListLimit    int `json:"maxListLimit"`
}

const (
	minArchiveBytes     = 64 * 1024
	defaultArchiveBytes = 32 * 1024 * 1024
)

func Load(configPath string) (*Config, error) {
	cfg := &Config{
		// Default values
		Server: ServerConfig{
			Name:        "gammon-mcp",
			Version:     "0.1.0",
			Description: "Backgammon position and match conversion server for MCP",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Prefix: "[gammon-mcp] ",
			Format: "json",

			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 120,
			BurstSize:      20,
			PerToolLimits:  make(map[string]int),
		},
		Cache: CacheConfig{
			Enabled:      true,
			MaxItems:     64,
			MaxSizeBytes: 64 * 1024 * 1024,
			TTLSeconds:   3600,
		},
		Store: StoreConfig{
			Enabled: true,
			Dir:     DefaultDataDir(),
		},
		Limits: LimitsConfig{
			MaxArchiveBytes: defaultArchiveBytes,
			MaxListLimit:    100,
		},
	}

	// Load from JSON file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	// Logging settings
	if v := os.Getenv("GAMMON_MCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GAMMON_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GAMMON_MCP_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	// Rate limit settings
	if v := os.Getenv("GAMMON_MCP_RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = strings.ToLower(v) == "true"
	}

	// Cache and store
	if v := os.Getenv("GAMMON_MCP_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("GAMMON_MCP_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}

	if v := os.Getenv("GAMMON_HEALTH_ADDR"); v != "" {
		c.Server.HealthAddr = v
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	if c.Logging.MaxSizeMB < 0 {
		c.Logging.MaxSizeMB = 0
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}

	if c.Store.Enabled && c.Store.Dir == "" {
		return fmt.Errorf("store is enabled but no directory is configured")
	}

	// Validate rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			c.RateLimit.RequestsPerMin = 1
		}
		if c.RateLimit.BurstSize < 1 {
			c.RateLimit.BurstSize = 1
		}
	}

	// Validate cache sizes
	if c.Cache.MaxItems < 1 {
		c.Cache.MaxItems = 1
	}
	if c.Cache.MaxSizeBytes < 1024 {
		c.Cache.MaxSizeBytes = 1024
	}
	if c.Cache.TTLSeconds < 0 {
		c.Cache.TTLSeconds = 0
	}

	// Validate limits
	if c.Limits.MaxArchiveBytes < minArchiveBytes {
		c.Limits.MaxArchiveBytes = minArchiveBytes
	}
	if c.Limits.MaxListLimit < 1 {
		c.Limits.MaxListLimit = 1
	}

	return nil
}

// DefaultDataDir is where the match library lives unless configured.
func DefaultDataDir() string {
	if home := os.Getenv("GAMMON_MCP_HOME"); home != "" {
		return home
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(userHome, ".gammon-mcp")
}

func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("GAMMON_MCP_CONFIG"); path != "" {
		return path
	}

	// Check current directory
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}

	// Check home directory
	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".gammon-mcp", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}

// LoadEnv loads the first .env file found among paths into the process
// environment. Variables already set are left alone. It returns the path
// loaded, or "" if none was found.
func LoadEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".gammon-mcp", ".env"))
		}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}
