// Package config loads nodeflow settings from a YAML file, a .env file and
// NODEFLOW_* environment variables, in increasing order of precedence.
// Command line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and the file exists.
const DefaultFile = "nodeflow.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NODEFLOW_"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the whole runtime configuration.
type Config struct {
	GraphID  string         `yaml:"graphId"`
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	HTTP     HTTPConfig     `yaml:"http"`
	Run      RunConfig      `yaml:"run"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects where graph snapshots live.
type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"`
	DSN     string        `yaml:"dsn"`
	Table   string        `yaml:"table"`
	Redis   RedisConfig   `yaml:"redis"`
	Lock    bool          `yaml:"lock"`
	LockTTL time.Duration `yaml:"lockTTL"`
}

// RedisConfig addresses the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// SecurityConfig drives the persistence middleware.
type SecurityConfig struct {
	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string   `yaml:"encryptionKey"`
	FallbackKeys  []string `yaml:"fallbackKeys"`
	Mask          bool     `yaml:"mask"`
	MaskPatterns  []string `yaml:"maskPatterns"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RunConfig bounds node execution.
type RunConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	AllowHosts []string      `yaml:"allowHosts"`
	ReadOnly   bool          `yaml:"readOnly"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		GraphID: "default",
		Store: StoreConfig{
			Backend: BackendMemory,
			Path:    ".nodeflow",
			LockTTL: 10 * time.Second,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Run:  RunConfig{Timeout: 30 * time.Second},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. An explicit path must exist; an empty path
// falls back to DefaultFile when present. Env files are loaded without
// overriding variables already set; a missing env file is ignored.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		return lookup(EnvPrefix + name)
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := get(name); ok {
			*dst = splitList(v)
		}
	}
	boolean := func(name string, dst *bool) error {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
		return nil
	}

	str("GRAPH_ID", &c.GraphID)
	str("STORE", &c.Store.Backend)
	str("STORE_PATH", &c.Store.Path)
	str("POSTGRES_DSN", &c.Store.DSN)
	str("POSTGRES_TABLE", &c.Store.Table)
	str("REDIS_ADDR", &c.Store.Redis.Addr)
	str("REDIS_PASSWORD", &c.Store.Redis.Password)
	str("REDIS_PREFIX", &c.Store.Redis.Prefix)
	str("ENCRYPTION_KEY", &c.Security.EncryptionKey)
	list("FALLBACK_KEYS", &c.Security.FallbackKeys)
	list("MASK_PATTERNS", &c.Security.MaskPatterns)
	str("HTTP_ADDR", &c.HTTP.Addr)
	list("ALLOW_HOSTS", &c.Run.AllowHosts)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := get("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Store.Redis.DB = db
	}
	return errors.Join(
		boolean("STORE_LOCK", &c.Store.Lock),
		boolean("MASK", &c.Security.Mask),
		boolean("READ_ONLY", &c.Run.ReadOnly),
		duration("LOCK_TTL", &c.Store.LockTTL),
		duration("REDIS_TTL", &c.Store.Redis.TTL),
		duration("RUN_TIMEOUT", &c.Run.Timeout),
	)
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	if c.GraphID == "" {
		return errors.New("graph id is required")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("file store requires a path")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("redis store requires an address")
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("postgres store requires a dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Lock && c.Store.Backend != BackendRedis && c.Store.Backend != BackendMemory {
		return fmt.Errorf("locking is not available for the %s backend", c.Store.Backend)
	}
	if c.Run.Timeout < 0 {
		return errors.New("run timeout cannot be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
