// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep defaults in New and layer file/env on top in Load.
// - External errors must be wrapped via this package's error helpers.
package config

// Backend names selectable via the store_backend key.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8083".
	Addr string `koanf:"addr"`

	// StoreBackend selects the score store adapter: memory, postgres or redis.
	StoreBackend string `koanf:"store_backend"`

	// PostgresDSN configures the relational backend.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RedisAddr and RedisDB configure the sorted-set backend.
	RedisAddr string `koanf:"redis_addr"`
	RedisDB   int    `koanf:"redis_db"`

	// StoreTimeoutMS bounds each individual store operation.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// DirectoryURL points at the user directory for display-name
	// enrichment; empty disables enrichment.
	DirectoryURL string `koanf:"directory_url"`

	// DirectoryTimeoutMS bounds a whole enrichment batch.
	DirectoryTimeoutMS int `koanf:"directory_timeout_ms"`

	// MaxTopLimit caps GET /leaderboard/top/{n}.
	MaxTopLimit int `koanf:"max_top_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8083",
		StoreBackend:       BackendMemory,
		PostgresDSN:        "",
		RedisAddr:          "localhost:6379",
		RedisDB:            0,
		StoreTimeoutMS:     2000,
		DirectoryURL:       "",
		DirectoryTimeoutMS: 500,
		MaxTopLimit:        100,
	}
}
