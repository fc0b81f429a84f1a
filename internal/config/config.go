// Package config loads server configuration from a JSON file at
// $XDG_CONFIG_HOME/mulbot/config.json with MULBOT_* environment overrides.
// Secrets (API keys) are environment-only and never written to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Search  SearchConfig
	Cache   CacheConfig
	Log     LogConfig
	Storage StorageConfig
}

type ServerConfig struct {
	Port int
	// AdminToken guards the cache management endpoints. When empty, a
	// random token is generated at startup and printed to stderr.
	AdminToken string
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type SearchConfig struct {
	APIKey     string
	Domain     string
	MaxResults int
}

type CacheConfig struct {
	MaxEntries int
	// TTL is a duration string ("15m", "900s").
	TTL string
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	// DataDir holds runtime files (the PID file).
	DataDir string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		LLM: LLMConfig{
			Model: "gemini-2.5-flash",
		},
		Search: SearchConfig{
			Domain:     "mul.edu.pk",
			MaxResults: 7,
		},
		Cache: CacheConfig{
			MaxEntries: 500,
			TTL:        "15m",
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "mulbot-data"
		}
	}
	return filepath.Join(dir, "mulbot")
}

// Load reads configuration from the config file, then applies MULBOT_*
// environment overrides, then validates required keys.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

// LoadUnvalidated reads configuration like Load but skips the required-key
// checks, so display and editing commands work before secrets are set.
func LoadUnvalidated() (Config, error) {
	return loadUnvalidatedWith(newFileBackend(configFilePath()))
}

func loadUnvalidatedWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func loadWith(b Backend) (Config, error) {
	cfg, err := loadUnvalidatedWith(b)
	if err != nil {
		return Config{}, err
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Gemini API key. Set it via environment variable MULBOT_GEMINI_API_KEY")
	}
	if cfg.Search.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Tavily API key. Set it via environment variable MULBOT_TAVILY_API_KEY")
	}
	if _, err := time.ParseDuration(cfg.Cache.TTL); err != nil {
		return Config{}, fmt.Errorf("invalid cache.ttl %q: %w", cfg.Cache.TTL, err)
	}

	return cfg, nil
}

// CacheTTL returns the parsed cache TTL. Load has already validated it.
func (c Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
