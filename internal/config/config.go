// Package config defines the application configuration tree and its viper
// loading, defaulting and validation logic. Configuration comes from an
// optional YAML file, COMET_* environment variables, and flag bindings, in
// ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LLMProvider enumerates the supported completion backends.
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOllama    LLMProvider = "ollama"
	ProviderGemini    LLMProvider = "gemini"
)

// ParseProvider normalizes a provider name, rejecting unknown values.
func ParseProvider(name string) (LLMProvider, error) {
	switch LLMProvider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown llm provider %q", name)
	}
}

// Config is the root configuration object.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	Colors      bool   `mapstructure:"colors" yaml:"colors"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chromium allocator and per-page behavior.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// AgentConfig bounds a single agent run.
type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	RunTimeout    time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	LLM           LLMConfig     `mapstructure:"llm" yaml:"llm"`
}

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr            string          `mapstructure:"addr" yaml:"addr"`
	MaxConns        int             `mapstructure:"max_conns" yaml:"max_conns"`
	MaxSessions     int             `mapstructure:"max_sessions" yaml:"max_sessions"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig bounds request rates per client IP.
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`
	PerMinute int  `mapstructure:"per_minute" yaml:"per_minute"`
}

// CacheConfig controls the Redis result cache. An empty RedisURL disables
// caching.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// DatabaseConfig selects the task store backend. An empty URL keeps tasks
// in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults registers the default value for every key so that viper can
// unmarshal a complete Config even with no file or environment present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.colors", true)
	v.SetDefault("logger.service_name", "comet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.operation_timeout", 30*time.Second)
	v.SetDefault("browser.post_load_wait", 1500*time.Millisecond)
	v.SetDefault("browser.screenshot_dir", "screenshots")
	v.SetDefault("browser.args", []string{})

	v.SetDefault("agent.max_iterations", 15)
	v.SetDefault("agent.run_timeout", 5*time.Minute)
	v.SetDefault("agent.llm.provider", string(ProviderOllama))
	v.SetDefault("agent.llm.model", "mistral")
	v.SetDefault("agent.llm.endpoint", "")
	v.SetDefault("agent.llm.api_timeout", 60*time.Second)
	v.SetDefault("agent.llm.temperature", 0.7)
	v.SetDefault("agent.llm.top_p", 0.0)
	v.SetDefault("agent.llm.top_k", 0)
	v.SetDefault("agent.llm.max_tokens", 2000)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.max_conns", 256)
	v.SetDefault("server.max_sessions", 4)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 11*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.per_minute", 60)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("database.url", "")
}

// NewDefaultConfig returns a Config populated purely from defaults.
func NewDefaultConfig() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
// Secret-bearing keys are explicitly bound to their environment variables so
// they resolve even when no other source mentions them.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// AutomaticEnv only sees keys it knows about; explicit binds cover the
	// secrets that usually arrive via environment alone.
	_ = v.BindEnv("agent.llm.api_key", "COMET_AGENT_LLM_API_KEY", "COMET_LLM_API_KEY")
	_ = v.BindEnv("cache.redis_url", "COMET_CACHE_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("database.url", "COMET_DATABASE_URL", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves home-relative paths in file-bearing settings.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Browser.ScreenshotDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks cross-field consistency and bounds.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.RunTimeout < 0 {
		return fmt.Errorf("agent.run_timeout must not be negative")
	}
	if _, err := ParseProvider(string(c.Agent.LLM.Provider)); err != nil {
		return err
	}
	if c.Agent.LLM.Model == "" {
		return fmt.Errorf("agent.llm.model must be set")
	}
	if c.Agent.LLM.APITimeout <= 0 {
		return fmt.Errorf("agent.llm.api_timeout must be positive")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive, got %dx%d",
			c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.ScreenshotDir == "" {
		return fmt.Errorf("browser.screenshot_dir must be set")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.PerMinute < 1 {
		return fmt.Errorf("server.rate_limit.per_minute must be at least 1 when enabled")
	}
	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("server.max_sessions must be at least 1, got %d", c.Server.MaxSessions)
	}
	if c.Cache.RedisURL != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when caching is enabled")
	}
	return nil
}
