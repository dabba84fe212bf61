// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Oracle   OracleConfig   `mapstructure:"oracle" yaml:"oracle"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Mappings MappingsConfig `mapstructure:"mappings" yaml:"mappings"`
	Profiles ProfilesConfig `mapstructure:"profiles" yaml:"profiles"`
}

// LoggerConfig controls the zap logger and its file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// OracleConfig configures the language-model boundary used for dropdown
// classification and failure analysis.
type OracleConfig struct {
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	// HTMLSnippetLimit caps how many bytes of element HTML are embedded
	// in a prompt and fingerprinted for the cache.
	HTMLSnippetLimit int `mapstructure:"html_snippet_limit" yaml:"html_snippet_limit"`
}

// BrowserConfig configures the chromedp session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// RunConfig holds the per-run timing and retry knobs of the fill loop.
type RunConfig struct {
	FieldTimeout      time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	FillTimeout       time.Duration `mapstructure:"fill_timeout" yaml:"fill_timeout"`
	InterFieldDelay   time.Duration `mapstructure:"inter_field_delay" yaml:"inter_field_delay"`
	PostFillDelay     time.Duration `mapstructure:"post_fill_delay" yaml:"post_fill_delay"`
	SelectionAttempts int           `mapstructure:"selection_attempts" yaml:"selection_attempts"`
}

// MappingsConfig points at the directory of site-mapping documents.
type MappingsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ProfilesConfig points at the directory of profile documents.
type ProfilesConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Default string `mapstructure:"default" yaml:"default"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autoform")
	v.SetDefault("logger.log_file", "autoform.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Oracle --
	v.SetDefault("oracle.endpoint", "https://openrouter.ai/api/v1")
	v.SetDefault("oracle.model", "openai/gpt-4o-mini")
	v.SetDefault("oracle.api_timeout", "30s")
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("oracle.html_snippet_limit", 3000)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.ignore_tls_errors", false)

	// -- Run --
	v.SetDefault("run.field_timeout", "10s")
	v.SetDefault("run.fill_timeout", "5s")
	v.SetDefault("run.inter_field_delay", "50ms")
	v.SetDefault("run.post_fill_delay", "100ms")
	v.SetDefault("run.selection_attempts", 3)

	// -- Data directories --
	v.SetDefault("mappings.dir", "mappings")
	v.SetDefault("profiles.dir", "profiles")
	v.SetDefault("profiles.default", "default")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that already has defaults, file, and env sources attached.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The oracle key is sensitive; it normally arrives via env.
	v.BindEnv("oracle.api_key", "AUTOFORM_ORACLE_API_KEY", "OPENROUTER_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle.model is required")
	}
	if c.Oracle.HTMLSnippetLimit <= 0 {
		return fmt.Errorf("oracle.html_snippet_limit must be positive")
	}
	if c.Run.FieldTimeout <= 0 {
		return fmt.Errorf("run.field_timeout must be positive")
	}
	if c.Run.FillTimeout <= 0 {
		return fmt.Errorf("run.fill_timeout must be positive")
	}
	if c.Run.SelectionAttempts <= 0 {
		return fmt.Errorf("run.selection_attempts must be positive")
	}
	if c.Mappings.Dir == "" {
		return fmt.Errorf("mappings.dir is required")
	}
	return nil
}
