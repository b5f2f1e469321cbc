// Package config loads service configuration by overlaying an optional YAML
// file and environment variables onto built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store tokens accepted by RateLimit.Store.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the root configuration for the rephrase service.
type Config struct {
	Server    Server    `yaml:"server"`
	Upstream  Upstream  `yaml:"upstream"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Styles    []Style   `yaml:"styles"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `yaml:"addr"`

	// AllowedOrigin is the origin permitted to call the API from a browser.
	AllowedOrigin string `yaml:"allowed_origin"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Upstream configures the OpenAI-compatible completion provider.
type Upstream struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// APIKey is never read from the file; it comes from UPSTREAM_API_KEY.
	APIKey string `yaml:"-"`

	// Timeout bounds one streaming call including consumption of the stream.
	Timeout time.Duration `yaml:"timeout"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RateLimit configures per-client admission control.
type RateLimit struct {
	Window time.Duration `yaml:"window"`
	Quota  int           `yaml:"quota"`

	// Store selects the window storage backend: "memory" or "redis".
	Store     string `yaml:"store"`
	RedisAddr string `yaml:"redis_addr"`

	// EvictSchedule is a cron spec for the stale-client janitor.
	EvictSchedule string        `yaml:"evict_schedule"`
	MaxIdle       time.Duration `yaml:"max_idle"`
}

// Style is one catalog entry. File order is emission order.
type Style struct {
	ID          string `yaml:"id"`
	Instruction string `yaml:"instruction"`
}

// Load overlays the YAML file at path (skipped when empty) and environment
// variables onto the built-in defaults, then validates the result. A value
// the file sets explicitly is kept even when it is the zero value, so
// settings like a zero temperature stay configurable.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultStyles is the fixed tone catalog used when none is configured.
// Order matters: it is the order styles are streamed to the caller.
func DefaultStyles() []Style {
	return []Style{
		{ID: "professional", Instruction: "Rephrase the following text in a professional, formal business tone suitable for corporate communication."},
		{ID: "casual", Instruction: "Rephrase the following text in a casual, friendly, and relaxed tone."},
		{ID: "polite", Instruction: "Rephrase the following text in a very polite, courteous, and respectful tone."},
		{ID: "social-media", Instruction: "Rephrase the following text in a fun, engaging social media style with energy and brevity."},
	}
}

// defaultConfig is the baseline the file and the environment overlay.
func defaultConfig() Config {
	return Config{
		Server: Server{
			Addr:            ":8000",
			AllowedOrigin:   "http://localhost:3000",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: Upstream{
			BaseURL:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			Timeout:     30 * time.Second,
			Temperature: 0.7,
			MaxTokens:   200,
		},
		RateLimit: RateLimit{
			Window:        time.Minute,
			Quota:         10,
			Store:         StoreMemory,
			EvictSchedule: "@every 5m",
			MaxIdle:       30 * time.Minute,
		},
		Styles: DefaultStyles(),
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPHRASE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REPHRASE_ALLOWED_ORIGIN"); v != "" {
		cfg.Server.AllowedOrigin = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_MODEL"); v != "" {
		cfg.Upstream.Model = v
	}
	cfg.Upstream.APIKey = os.Getenv("UPSTREAM_API_KEY")
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_QUOTA"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RateLimit.Quota = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_STORE"); v != "" {
		cfg.RateLimit.Store = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
}

func (c *Config) validate() error {
	if c.Upstream.Model == "" {
		return fmt.Errorf("upstream.model is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if c.RateLimit.Quota <= 0 {
		return fmt.Errorf("rate_limit.quota must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("rate_limit.redis_addr is required when store is %q", StoreRedis)
		}
	default:
		return fmt.Errorf("rate_limit.store must be %q or %q, got %q", StoreMemory, StoreRedis, c.RateLimit.Store)
	}
	if len(c.Styles) == 0 {
		return fmt.Errorf("at least one style is required")
	}
	seen := make(map[string]struct{}, len(c.Styles))
	for _, s := range c.Styles {
		if s.ID == "" {
			return fmt.Errorf("style id cannot be empty")
		}
		if s.Instruction == "" {
			return fmt.Errorf("style %q has no instruction", s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate style id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
