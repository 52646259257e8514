// Package config loads the companion core's runtime configuration the way
// the teacher library loads LLM client configuration: env-tagged struct
// fields via caarlos0/env, with an optional YAML override layer read first.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tauritavern/companion-core/internal/logging"
)

// Config is the process-wide configuration for the companion core.
type Config struct {
	DataRoot       string        `yaml:"data_root" env:"COMPANION_DATA_ROOT" envDefault:"./data"`
	CacheDir       string        `yaml:"cache_dir" env:"COMPANION_CACHE_DIR" envDefault:"./data/_cache"`
	BackupsDir     string        `yaml:"backups_dir" env:"COMPANION_BACKUPS_DIR" envDefault:"./data/_backups"`
	LogLevel       string        `yaml:"log_level" env:"COMPANION_LOG_LEVEL" envDefault:"INFO"`
	LogJSON        bool          `yaml:"log_json" env:"COMPANION_LOG_JSON" envDefault:"false"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" env:"COMPANION_HTTP_TIMEOUT" envDefault:"60s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"COMPANION_CONNECT_TIMEOUT" envDefault:"10s"`

	// BackupThrottle is the minimum interval between two backups of the same
	// chat file (§4.E "Throttled backup").
	BackupThrottle time.Duration `yaml:"backup_throttle" env:"COMPANION_BACKUP_THROTTLE" envDefault:"5m"`
	// MaxBackupsPerChat and MaxBackupsTotal bound the rolling backup retention.
	MaxBackupsPerChat int `yaml:"max_backups_per_chat" env:"COMPANION_MAX_BACKUPS_PER_CHAT" envDefault:"5"`
	MaxBackupsTotal   int `yaml:"max_backups_total" env:"COMPANION_MAX_BACKUPS_TOTAL" envDefault:"50"`

	// MemoryCacheEntries and MemoryCacheTTL bound the character/chat memory
	// cache described in §5 "Shared resources".
	MemoryCacheEntries int           `yaml:"memory_cache_entries" env:"COMPANION_MEMORY_CACHE_ENTRIES" envDefault:"100"`
	MemoryCacheTTL     time.Duration `yaml:"memory_cache_ttl" env:"COMPANION_MEMORY_CACHE_TTL" envDefault:"30m"`

	// APIKeys is seeded from any "<PROVIDER>_API_KEY" environment variable,
	// mirroring the teacher's loadAPIKeys. Load does not write them to the
	// secret store.
	APIKeys map[string]string `yaml:"-"`
}

type Option func(*Config)

func WithDataRoot(path string) Option   { return func(c *Config) { c.DataRoot = path } }
func WithCacheDir(path string) Option   { return func(c *Config) { c.CacheDir = path } }
func WithBackupsDir(path string) Option { return func(c *Config) { c.BackupsDir = path } }
func WithLogLevel(level string) Option  { return func(c *Config) { c.LogLevel = level } }

// Load reads an optional YAML file first (if path is non-empty and exists),
// then overlays environment variables, then applies functional options —
// later sources win, matching the teacher's LoadConfig + ApplyOptions split.
func Load(yamlPath string, opts ...Option) (*Config, error) {
	cfg := &Config{APIKeys: make(map[string]string)}

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	loadAPIKeys(cfg)

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, nil
}

func loadAPIKeys(cfg *Config) {
	const suffix = "_API_KEY"
	for _, kv := range os.Environ() {
		name, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		upper := strings.ToUpper(name)
		if !strings.HasSuffix(upper, suffix) {
			continue
		}
		provider := strings.ToLower(strings.TrimSuffix(upper, suffix))
		cfg.APIKeys[provider] = value
	}
}

// Level resolves the configured log level into a logging.Level.
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}
