// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"medicare-refprice/internal/errors"
	"medicare-refprice/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Resolver contains resolution engine settings
	Resolver ResolverConfig `json:"resolver"`

	// Store selects and configures the reference dataset backend
	Store StoreConfig `json:"store"`

	// Cache contains the geography cache settings
	Cache CacheConfig `json:"cache"`

	// Server contains HTTP server settings
	Server ServerConfig `json:"server"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// ResolverConfig tunes the per-request behavior of the engine
type ResolverConfig struct {
	// Workers bounds concurrent per-code ladder walks
	Workers int `json:"workers"`

	// LookupTimeoutMS bounds a single reference lookup
	LookupTimeoutMS int `json:"lookup_timeout_ms"`

	// LookupRetries is how many times a failed lookup is retried
	LookupRetries int `json:"lookup_retries"`

	// RequestTimeoutMS is the overall deadline for one resolve call
	RequestTimeoutMS int `json:"request_timeout_ms"`

	// QPStatus is the MPFS qualifying-participant key used for lookups
	QPStatus string `json:"qp_status"`

	// ConversionFactor overrides the published default when non-empty
	ConversionFactor string `json:"conversion_factor,omitempty"`
}

// LookupTimeout returns the per-lookup timeout
func (r ResolverConfig) LookupTimeout() time.Duration {
	return time.Duration(r.LookupTimeoutMS) * time.Millisecond
}

// RequestTimeout returns the per-request deadline
func (r ResolverConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutMS) * time.Millisecond
}

// StoreConfig selects the reference store backend
type StoreConfig struct {
	// Backend is "memory" or "postgres"
	Backend string `json:"backend"`

	// DataDir holds the CSV tables loaded by the memory backend
	DataDir string `json:"data_dir"`

	// MPFSFeed is an optional raw MPFS feed file (.csv or .csv.gz)
	MPFSFeed string `json:"mpfs_feed,omitempty"`

	// DatabaseURL is the Postgres connection string
	DatabaseURL string `json:"database_url,omitempty"`

	// RunMigrations applies the embedded schema at startup
	RunMigrations bool `json:"run_migrations"`
}

// CacheConfig contains cache-related settings
type CacheConfig struct {
	// Enabled enables the Redis read-through cache
	Enabled bool `json:"enabled"`

	// RedisAddr is the Redis host:port
	RedisAddr string `json:"redis_addr"`

	// TTLSeconds is how long geography rows stay cached
	TTLSeconds int `json:"ttl_seconds"`
}

// TTL returns the cache TTL
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".refprice", "data")

	return &Config{
		Version: "1.0",
		Resolver: ResolverConfig{
			Workers:          8,
			LookupTimeoutMS:  2000,
			LookupRetries:    1,
			RequestTimeoutMS: 15000,
			QPStatus:         "nonQP",
		},
		Store: StoreConfig{
			Backend: "memory",
			DataDir: dataDir,
		},
		Cache: CacheConfig{
			Enabled:    false,
			RedisAddr:  "localhost:6379",
			TTLSeconds: 86400, // 24 hours
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnv()
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Config("invalid config file "+path, err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv lets deployment secrets stay out of the config file
func (c *Config) applyEnv() {
	if v := os.Getenv("REFPRICE_DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("REFPRICE_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Enabled = true
	}
}

// Validate checks the settings the engine cannot run without
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.Config("store.database_url is required for the postgres backend", nil)
		}
	default:
		return errors.Config("unknown store.backend "+c.Store.Backend, nil)
	}
	if c.Resolver.Workers <= 0 {
		return errors.Config("resolver.workers must be positive", nil)
	}
	if c.Resolver.LookupTimeoutMS <= 0 || c.Resolver.RequestTimeoutMS <= 0 {
		return errors.Config("resolver timeouts must be positive", nil)
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
