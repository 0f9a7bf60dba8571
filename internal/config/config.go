// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLAN_FETCH_COOKIES.
const EnvPrefix = "PLAN"

// Config is the full application configuration. Every field can come from a
// YAML/JSON file, a PLAN_* environment variable or a default.
type Config struct {
	Verbose  bool           `mapstructure:"verbose"`
	Log      LogConfig      `mapstructure:"log"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Reviews  ReviewsConfig  `mapstructure:"reviews"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig selects the zap logger flavor.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format      string `mapstructure:"format" validate:"oneof=json console"`
	Development bool   `mapstructure:"development"`
}

// FetchConfig configures plan page retrieval.
type FetchConfig struct {
	LearnBaseURL string `mapstructure:"learn_base_url" validate:"required,url"`
	EduBaseURL   string `mapstructure:"edu_base_url" validate:"required,url"`
	// Cookies is a Cookie header from a logged-in learning-site session
	Cookies     string        `mapstructure:"cookies"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	UseBrowser  bool          `mapstructure:"use_browser"`
	Headless    bool          `mapstructure:"headless"`
	SkipRefresh bool          `mapstructure:"skip_refresh"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// ReviewsConfig configures the course review crawler.
type ReviewsConfig struct {
	APIURL       string        `mapstructure:"api_url" validate:"required,url"`
	PageSize     int           `mapstructure:"page_size" validate:"gt=0,lte=100"`
	RequestDelay time.Duration `mapstructure:"request_delay" validate:"gte=0"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=1"`
	Concurrency  int           `mapstructure:"concurrency" validate:"gte=1,lte=16"`
	// RatingsFile is where rating snapshots are kept when no database is configured
	RatingsFile string `mapstructure:"ratings_file"`
}

// DatabaseConfig configures PostgreSQL. An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig configures the cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// ExportConfig configures report files.
type ExportConfig struct {
	Formats   []string `mapstructure:"formats" validate:"dive,oneof=json yaml txt md csv pdf"`
	OutputDir string   `mapstructure:"output_dir" validate:"required"`
	FontPath  string   `mapstructure:"font_path"`
	Template  string   `mapstructure:"template"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int             `mapstructure:"port" validate:"min=1,max=65535"`
	MaxUploadBytes int64           `mapstructure:"max_upload_bytes" validate:"gt=0"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles API clients by address.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// AnalyzePerHour limits POST /analyze per client
	AnalyzePerHour int `mapstructure:"analyze_per_hour" validate:"gte=0"`
	AnalyzeBurst   int `mapstructure:"analyze_burst" validate:"gte=0"`
	// DefaultPerMinute limits every other route
	DefaultPerMinute int      `mapstructure:"default_per_minute" validate:"gte=0"`
	Whitelist        []string `mapstructure:"whitelist"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("fetch.learn_base_url", "https://learn.tsinghua.edu.cn")
	v.SetDefault("fetch.edu_base_url", "http://zhjw.cic.tsinghua.edu.cn")
	v.SetDefault("fetch.cookies", "")
	v.SetDefault("fetch.username", "")
	v.SetDefault("fetch.password", "")
	v.SetDefault("fetch.use_browser", false)
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.skip_refresh", false)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.cache_ttl", "6h")

	v.SetDefault("reviews.api_url", "https://yourschool.cc/thucourse_api/api/review/")
	v.SetDefault("reviews.page_size", 20)
	v.SetDefault("reviews.request_delay", "400ms")
	v.SetDefault("reviews.retry_delay", "1s")
	v.SetDefault("reviews.max_retries", 3)
	v.SetDefault("reviews.concurrency", 2)
	v.SetDefault("reviews.ratings_file", "")

	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("export.formats", []string{"json", "txt"})
	v.SetDefault("export.output_dir", "output")
	v.SetDefault("export.font_path", "")
	v.SetDefault("export.template", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 10*1024*1024)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.analyze_per_hour", 60)
	v.SetDefault("server.rate_limit.analyze_burst", 5)
	v.SetDefault("server.rate_limit.default_per_minute", 300)
	v.SetDefault("server.rate_limit.whitelist", []string{})
}

// Load reads configuration from path (YAML or JSON, chosen by extension),
// then applies PLAN_* environment overrides. With an empty path it looks for
// plan_auditor.{yaml,json} in the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plan_auditor")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Export.Formats = normalizeFormats(cfg.Export.Formats)
	return &cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	cfg.Export.Formats = normalizeFormats(cfg.Export.Formats)
	return &cfg
}

var validate = validator.New()

// Validate checks field ranges and combinations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' check", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Fetch.Password != "" && c.Fetch.Username == "" {
		return fmt.Errorf("config error: 'fetch.password' requires 'fetch.username'")
	}
	if c.Fetch.UseBrowser && c.Fetch.Headless && c.Fetch.Username == "" {
		return fmt.Errorf("config error: headless browser login needs 'fetch.username'; disable headless to log in by hand")
	}

	// Validate file paths exist (if specified)
	if c.Export.FontPath != "" {
		if _, err := os.Stat(c.Export.FontPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: font file not found: %s", c.Export.FontPath)
		}
	}
	if c.Export.Template != "" {
		if _, err := os.Stat(c.Export.Template); os.IsNotExist(err) {
			return fmt.Errorf("config error: template file not found: %s", c.Export.Template)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty string and zero numeric
// fields filled from defaults. This is used to apply config file values as
// defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Fetch.LearnBaseURL == "" {
		result.Fetch.LearnBaseURL = defaults.Fetch.LearnBaseURL
	}
	if result.Fetch.EduBaseURL == "" {
		result.Fetch.EduBaseURL = defaults.Fetch.EduBaseURL
	}
	if result.Fetch.Cookies == "" {
		result.Fetch.Cookies = defaults.Fetch.Cookies
	}
	if result.Fetch.Username == "" {
		result.Fetch.Username = defaults.Fetch.Username
	}
	if result.Fetch.Password == "" {
		result.Fetch.Password = defaults.Fetch.Password
	}
	if result.Reviews.APIURL == "" {
		result.Reviews.APIURL = defaults.Reviews.APIURL
	}
	if result.Reviews.RatingsFile == "" {
		result.Reviews.RatingsFile = defaults.Reviews.RatingsFile
	}
	if result.Database.URL == "" {
		result.Database.URL = defaults.Database.URL
	}
	if result.Redis.Addr == "" {
		result.Redis.Addr = defaults.Redis.Addr
	}
	if result.Export.OutputDir == "" {
		result.Export.OutputDir = defaults.Export.OutputDir
	}
	if result.Export.FontPath == "" {
		result.Export.FontPath = defaults.Export.FontPath
	}
	if result.Export.Template == "" {
		result.Export.Template = defaults.Export.Template
	}
	if len(result.Export.Formats) == 0 {
		result.Export.Formats = append([]string(nil), defaults.Export.Formats...)
	}
	if result.Log.Level == "" {
		result.Log.Level = defaults.Log.Level
	}
	if result.Log.Format == "" {
		result.Log.Format = defaults.Log.Format
	}

	// Numeric fields: use default if zero
	if result.Fetch.Timeout == 0 {
		result.Fetch.Timeout = defaults.Fetch.Timeout
	}
	if result.Reviews.PageSize == 0 {
		result.Reviews.PageSize = defaults.Reviews.PageSize
	}
	if result.Reviews.MaxRetries == 0 {
		result.Reviews.MaxRetries = defaults.Reviews.MaxRetries
	}
	if result.Reviews.Concurrency == 0 {
		result.Reviews.Concurrency = defaults.Reviews.Concurrency
	}
	if result.Server.Port == 0 {
		result.Server.Port = defaults.Server.Port
	}
	if result.Server.MaxUploadBytes == 0 {
		result.Server.MaxUploadBytes = defaults.Server.MaxUploadBytes
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		for _, part := range strings.Split(f, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
