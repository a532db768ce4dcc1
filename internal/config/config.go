package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PostgresConfig describes where the API token table lives.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the full service configuration as read from YAML.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`

	Limits struct {
		MaxDocumentBytes int `yaml:"max_document_bytes"`
		MaxPages         int `yaml:"max_pages"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost        string        `yaml:"redis_host"`
		RateLimitDB      int           `yaml:"redis_rate_db"`
		PageCacheDB      int           `yaml:"redis_page_db"`
		PageCacheEnabled bool          `yaml:"page_cache_enabled"`
		PageCacheTTL     time.Duration `yaml:"page_cache_ttl"`
	} `yaml:"cache"`

	Auth struct {
		Enabled        bool           `yaml:"enabled"`
		Postgres       PostgresConfig `yaml:"postgres"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		UserLimit         int           `yaml:"user_limit"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`

	Render struct {
		Engine             string  `yaml:"engine"`
		Concurrency        int     `yaml:"concurrency"`
		PoolSize           int     `yaml:"pool_size"`
		DefaultDPI         float64 `yaml:"default_dpi"`
		MaxDPI             float64 `yaml:"max_dpi"`
		MaxPixels          int64   `yaml:"max_pixels"`
		TimeoutSecs        int     `yaml:"timeout_secs"`
		AcquireTimeoutSecs int     `yaml:"acquire_timeout_secs"`
		PdftoppmPath       string  `yaml:"pdftoppm_path"`
	} `yaml:"render"`
}

// Supported render engines.
const (
	EngineFitz    = "fitz"
	EnginePDFium  = "pdfium"
	EnginePoppler = "poppler"
)

// Load reads the configuration file named by CONFIG_PATH (config.yaml by default).
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads, defaults and validates the configuration at path.
// It panics when the file cannot be read or holds invalid values.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}

	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PDF2PNG_ENGINE"); v != "" {
		cfg.Render.Engine = v
	}
	if cfg.Render.PdftoppmPath == "" {
		if v := os.Getenv("PDFTOPPM_BIN"); v != "" {
			cfg.Render.PdftoppmPath = v
		}
	}
}

// DefaultConcurrency is the per-request render bound used when none is configured.
func DefaultConcurrency() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = 64
	}
	if cfg.Limits.MaxDocumentBytes == 0 {
		cfg.Limits.MaxDocumentBytes = 50 * 1024 * 1024
	}
	if cfg.Limits.MaxPages == 0 {
		cfg.Limits.MaxPages = 500
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Cache.PageCacheTTL == 0 {
		cfg.Cache.PageCacheTTL = 10 * time.Minute
	}
	if cfg.Auth.ReloadInterval == 0 {
		cfg.Auth.ReloadInterval = time.Minute
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if cfg.Render.Engine == "" {
		cfg.Render.Engine = EngineFitz
	}
	cfg.Render.Engine = strings.ToLower(cfg.Render.Engine)
	if cfg.Render.Concurrency == 0 {
		cfg.Render.Concurrency = DefaultConcurrency()
	}
	if cfg.Render.PoolSize == 0 {
		cfg.Render.PoolSize = runtime.NumCPU()
	}
	if cfg.Render.DefaultDPI == 0 {
		cfg.Render.DefaultDPI = 200
	}
	if cfg.Render.MaxDPI == 0 {
		cfg.Render.MaxDPI = 600
	}
	if cfg.Render.MaxPixels == 0 {
		cfg.Render.MaxPixels = 64 * 1024 * 1024
	}
	if cfg.Render.TimeoutSecs == 0 {
		cfg.Render.TimeoutSecs = 60
	}
	if cfg.Render.AcquireTimeoutSecs == 0 {
		cfg.Render.AcquireTimeoutSecs = 30
	}
	if cfg.Render.PdftoppmPath == "" {
		cfg.Render.PdftoppmPath = "pdftoppm"
	}
}

// Validate reports the first invalid value in cfg.
func (cfg Config) Validate() error {
	switch cfg.Render.Engine {
	case EngineFitz, EnginePDFium, EnginePoppler:
	default:
		return fmt.Errorf("render.engine %q is not supported", cfg.Render.Engine)
	}
	if cfg.Render.Concurrency < 1 {
		return fmt.Errorf("render.concurrency must be positive, got %d", cfg.Render.Concurrency)
	}
	if cfg.Render.PoolSize < 1 {
		return fmt.Errorf("render.pool_size must be positive, got %d", cfg.Render.PoolSize)
	}
	if cfg.Render.DefaultDPI < 1 || cfg.Render.DefaultDPI > cfg.Render.MaxDPI {
		return fmt.Errorf("render.default_dpi must be between 1 and max_dpi (%v), got %v", cfg.Render.MaxDPI, cfg.Render.DefaultDPI)
	}
	if cfg.Render.TimeoutSecs < 0 || cfg.Render.AcquireTimeoutSecs < 0 {
		return fmt.Errorf("render timeouts must not be negative")
	}
	if cfg.Limits.MaxPages < 0 || cfg.Limits.MaxDocumentBytes < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative, got %d", cfg.RateLimiter.UserLimit)
	}
	if cfg.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if cfg.Auth.Enabled {
		if cfg.Auth.Postgres.Host == "" {
			return fmt.Errorf("auth.postgres.host is required when auth is enabled")
		}
		if cfg.Auth.ReloadInterval <= 0 {
			return fmt.Errorf("auth.reload_interval must be positive")
		}
	}
	return nil
}

// RenderTimeout is the per-request deadline for a conversion.
func (cfg Config) RenderTimeout() time.Duration {
	return time.Duration(cfg.Render.TimeoutSecs) * time.Second
}

// AcquireTimeout bounds how long a task waits for a free render slot.
func (cfg Config) AcquireTimeout() time.Duration {
	return time.Duration(cfg.Render.AcquireTimeoutSecs) * time.Second
}
