package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Marketplace
	BaseURL string

	// Rendering
	Renderer           string // "rod", "browserless" or "http"
	BrowserlessAddr    string
	ChromeBin          string
	Headless           bool
	ProxyURLs          []string // comma-separated PROXY_URL; the fastest reachable one is used
	WaitTimeout        time.Duration
	FallbackSleep      time.Duration
	ScrollSteps        int
	NavigationInterval time.Duration
	NavigationTimeout  time.Duration
	RenderBlockTime    time.Duration

	// Price record store
	StoreDriver string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresDSN string

	// Per-card scrape lock
	LockBackend string // "file" or "redis"
	LockDir     string
	LockTimeout time.Duration // how long a query waits for the lock
	LockTTL     time.Duration // how long a redis lock lives if never released

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int
	PublishResults       bool

	// Memcache configuration
	MemcacheAddr string

	// Diagnostics
	DebugDir string

	// HTTP bridge
	HTTPAddr            string
	AllowedOrigins      []string
	PSAAPIURL           string
	PSAAPIToken         string
	PriceChartingCSVURL string

	// Environment
	Environment string
}

var (
	renderers    = []string{"rod", "browserless", "http"}
	storeDrivers = []string{"sqlite", "postgres"}
	lockBackends = []string{"file", "redis"}
)

// LoadConfig loads the configuration from environment variables, an optional
// psa10.yaml and defaults, in that order of precedence
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("psa10")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &Config{
		BaseURL:              strings.TrimRight(v.GetString("snkrdunk_base_url"), "/"),
		Renderer:             strings.ToLower(v.GetString("renderer")),
		BrowserlessAddr:      strings.TrimRight(v.GetString("browserless_addr"), "/"),
		ChromeBin:            v.GetString("chrome_bin"),
		Headless:             v.GetBool("headless"),
		ProxyURLs:            splitList(v.GetString("proxy_url")),
		WaitTimeout:          seconds(v, "wait_timeout_seconds"),
		FallbackSleep:        seconds(v, "fallback_sleep_seconds"),
		ScrollSteps:          v.GetInt("scroll_steps"),
		NavigationInterval:   time.Duration(v.GetInt("navigation_interval_ms")) * time.Millisecond,
		NavigationTimeout:    seconds(v, "navigation_timeout_seconds"),
		RenderBlockTime:      seconds(v, "render_block_seconds"),
		StoreDriver:          strings.ToLower(v.GetString("store_driver")),
		SQLitePath:           v.GetString("sqlite_path"),
		PostgresDSN:          v.GetString("postgres_dsn"),
		LockBackend:          strings.ToLower(v.GetString("lock_backend")),
		LockDir:              v.GetString("lock_dir"),
		LockTimeout:          seconds(v, "lock_timeout_seconds"),
		LockTTL:              seconds(v, "lock_ttl_seconds"),
		RedisAddr:            v.GetString("redis_addr"),
		RedisDB:              v.GetInt("redis_db"),
		RedisStream:          v.GetString("redis_stream"),
		RedisStreamMaxLength: v.GetInt("redis_stream_max_length"),
		PublishResults:       v.GetBool("publish_results"),
		MemcacheAddr:         v.GetString("memcache_addr"),
		DebugDir:             v.GetString("debug_dir"),
		HTTPAddr:             v.GetString("http_addr"),
		AllowedOrigins:       splitList(v.GetString("allowed_origins")),
		PSAAPIURL:            v.GetString("psa_api_url"),
		PSAAPIToken:          v.GetString("psa_api_token"),
		PriceChartingCSVURL:  v.GetString("pricecharting_csv_url"),
		Environment:          v.GetString("psa10_environment"),
	}, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("snkrdunk_base_url", "https://snkrdunk.com")

	v.SetDefault("renderer", "rod")
	v.SetDefault("browserless_addr", "http://localhost:3000")
	v.SetDefault("headless", true)
	v.SetDefault("wait_timeout_seconds", 10)
	v.SetDefault("fallback_sleep_seconds", 3)
	v.SetDefault("scroll_steps", 5)
	v.SetDefault("navigation_interval_ms", 2000)
	v.SetDefault("navigation_timeout_seconds", 45)
	v.SetDefault("render_block_seconds", 300)

	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("sqlite_path", "snkrdunk.db")

	v.SetDefault("lock_backend", "file")
	v.SetDefault("lock_dir", ".locks")
	v.SetDefault("lock_timeout_seconds", 180)
	v.SetDefault("lock_ttl_seconds", 600)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_stream", "psa10:prices")
	v.SetDefault("redis_stream_max_length", 1000)
	v.SetDefault("publish_results", false)

	v.SetDefault("memcache_addr", "")
	v.SetDefault("debug_dir", ".")
	v.SetDefault("http_addr", ":3000")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("psa_api_url", "https://api.psacard.com/publicapi")
	v.SetDefault("psa_api_token", "")
	v.SetDefault("pricecharting_csv_url", "")
	v.SetDefault("psa10_environment", "development")
}

// Validate checks the configuration for unknown modes and missing settings
func (c *Config) Validate() error {
	if !contains(renderers, c.Renderer) {
		return fmt.Errorf("RENDERER must be one of %v, got: %q", renderers, c.Renderer)
	}
	if c.Renderer == "browserless" && c.BrowserlessAddr == "" {
		return fmt.Errorf("BROWSERLESS_ADDR is required when RENDERER is browserless")
	}
	if !contains(storeDrivers, c.StoreDriver) {
		return fmt.Errorf("STORE_DRIVER must be one of %v, got: %q", storeDrivers, c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER is postgres")
	}
	if c.StoreDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
	}
	if !contains(lockBackends, c.LockBackend) {
		return fmt.Errorf("LOCK_BACKEND must be one of %v, got: %q", lockBackends, c.LockBackend)
	}
	if c.LockBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND is redis")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("SNKRDUNK_BASE_URL must not be empty")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("WAIT_TIMEOUT_SECONDS must be positive")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("NAVIGATION_TIMEOUT_SECONDS must be positive")
	}
	if c.LockBackend == "redis" && c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive when LOCK_BACKEND is redis")
	}
	return nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
