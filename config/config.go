package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/arcane-translator/arcane-reader/pagination"
)

// Config holds reader configuration.
type Config struct {
	APIBaseURL       string        `yaml:"api_base_url" env:"READER_API_URL"`
	Timeout          time.Duration `yaml:"timeout" env:"READER_TIMEOUT"`
	TranslateTimeout time.Duration `yaml:"translate_timeout" env:"READER_TRANSLATE_TIMEOUT"`
	MaxRetries       int           `yaml:"max_retries" env:"READER_MAX_RETRIES"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" env:"READER_RETRY_BACKOFF"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max" env:"READER_RETRY_BACKOFF_MAX"`
	UserAgent        string        `yaml:"user_agent" env:"READER_USER_AGENT"`

	ItemsPerPage     int           `yaml:"items_per_page" env:"READER_ITEMS_PER_PAGE"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" env:"READER_AUTOSAVE_INTERVAL"`
	ChapterCacheSize int           `yaml:"chapter_cache_size" env:"READER_CHAPTER_CACHE_SIZE"`
	WrapWidth        int           `yaml:"wrap_width" env:"READER_WRAP_WIDTH"`

	StorageDriver string `yaml:"storage_driver" env:"READER_STORAGE_DRIVER"` // file or sqlite
	StoragePath   string `yaml:"storage_path" env:"READER_STORAGE_PATH"`

	ExportWorkers   int     `yaml:"export_workers" env:"READER_EXPORT_WORKERS"`
	ExportBatchSize int     `yaml:"export_batch_size" env:"READER_EXPORT_BATCH_SIZE"`
	ExportRate      float64 `yaml:"export_rate" env:"READER_EXPORT_RATE"` // listing requests per second
	DedupeMaxSize   int     `yaml:"dedupe_max_size" env:"READER_DEDUPE_MAX_SIZE"`

	MetricsAddr string `yaml:"metrics_addr" env:"READER_METRICS_ADDR"`
	Verbose     bool   `yaml:"verbose" env:"READER_VERBOSE"`
}

// DefaultConfig returns defaults for a backend running on localhost.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:       "http://localhost:8000",
		Timeout:          10 * time.Second,
		TranslateTimeout: 2 * time.Minute,
		MaxRetries:       2,
		RetryBackoff:     200 * time.Millisecond,
		RetryBackoffMax:  2 * time.Second,
		UserAgent:        "arcane-reader/" + Version,
		ItemsPerPage:     20,
		AutosaveInterval: time.Second,
		ChapterCacheSize: 64,
		WrapWidth:        80,
		StorageDriver:    "file",
		StoragePath:      defaultStoragePath(),
		ExportWorkers:    4,
		ExportBatchSize:  50,
		ExportRate:       5,
		DedupeMaxSize:    100000,
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Version is stamped at build time.
var Version = "dev"

// Load reads .env, then the optional YAML file at path, then READER_*
// environment variables, on top of DefaultConfig.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
			return cfg, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %q: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("api base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.TranslateTimeout <= 0 {
		return fmt.Errorf("translate timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if !pagination.ValidItemsPerPage(c.ItemsPerPage) {
		return fmt.Errorf("items per page must be one of %v", pagination.ItemsPerPageOptions)
	}
	if c.AutosaveInterval <= 0 {
		return fmt.Errorf("autosave interval must be positive")
	}
	if c.ChapterCacheSize <= 0 {
		return fmt.Errorf("chapter cache size must be positive")
	}
	if c.WrapWidth < 20 {
		return fmt.Errorf("wrap width must be at least 20")
	}
	if c.StorageDriver != "file" && c.StorageDriver != "sqlite" {
		return fmt.Errorf("storage driver must be file or sqlite")
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	if c.ExportWorkers <= 0 {
		return fmt.Errorf("export workers must be positive")
	}
	if c.ExportBatchSize <= 0 {
		return fmt.Errorf("export batch size must be positive")
	}
	if c.ExportRate <= 0 {
		return fmt.Errorf("export rate must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".arcane-reader"
	}
	return dir + string(os.PathSeparator) + "arcane-reader"
}
