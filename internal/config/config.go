package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string
	DatabaseURL string

	// CatalogPath is the JSON catalog used when no database is configured.
	CatalogPath string
	StaticDir   string

	CookieHashKey  []byte
	CookieBlockKey []byte

	LogLevel  string
	LogFormat string

	// Shared upstream request budget.
	RateLimitRPS   float64
	RateLimitBurst float64 // 0 means 2x rps
	LimiterWait    time.Duration

	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration

	// RefreshInterval re-scrapes the restaurant catalog; 0 disables.
	RefreshInterval time.Duration

	ResyAPIBase       string
	ResyAPIKey        string
	OpenTableAPIBase  string
	OpenTableQuerySHA string

	ScrapeAPIURL string
	ScrapeAPIKey string
}

// fileConfig mirrors Config for the optional YAML file. Env always wins
// over file values; file values win over defaults.
type fileConfig struct {
	ListenAddr        string  `yaml:"listen_addr"`
	DatabaseURL       string  `yaml:"database_url"`
	CatalogPath       string  `yaml:"catalog_path"`
	StaticDir         string  `yaml:"static_dir"`
	CookieHashKey     string  `yaml:"cookie_hash_key"`
	CookieBlockKey    string  `yaml:"cookie_block_key"`
	LogLevel          string  `yaml:"log_level"`
	LogFormat         string  `yaml:"log_format"`
	RateLimitRPS      float64 `yaml:"rate_limit_rps"`
	RateLimitBurst    float64 `yaml:"rate_limit_burst"`
	LimiterWaitSec    int     `yaml:"limiter_wait_seconds"`
	UpstreamTimeout   int     `yaml:"upstream_timeout_seconds"`
	RequestTimeout    int     `yaml:"request_timeout_seconds"`
	RefreshIntervalHr int     `yaml:"refresh_interval_hours"`
	ResyAPIBase       string  `yaml:"resy_api_base"`
	ResyAPIKey        string  `yaml:"resy_api_key"`
	OpenTableAPIBase  string  `yaml:"opentable_api_base"`
	OpenTableQuerySHA string  `yaml:"opentable_query_sha"`
	ScrapeAPIURL      string  `yaml:"scrape_api_url"`
	ScrapeAPIKey      string  `yaml:"scrape_api_key"`
}

// Load builds the config from defaults, then the optional YAML file at
// path, then the environment.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddr:      ":8080",
		CatalogPath:     "restaurant_week_data.json",
		LogLevel:        "info",
		LogFormat:       "json",
		RateLimitRPS:    2,
		LimiterWait:     30 * time.Second,
		UpstreamTimeout: 10 * time.Second,
		RequestTimeout:  90 * time.Second,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if cfg.RateLimitRPS <= 0 {
		return Config{}, fmt.Errorf("rate limit rps must be > 0")
	}
	// Admin sessions need both cookie keys once a database is configured.
	if cfg.DatabaseURL != "" && (len(cfg.CookieHashKey) == 0 || len(cfg.CookieBlockKey) == 0) {
		return Config{}, fmt.Errorf("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required when DATABASE_URL is set (base64, see 'restweek keys')")
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	setStr(&c.ListenAddr, f.ListenAddr)
	setStr(&c.DatabaseURL, f.DatabaseURL)
	setStr(&c.CatalogPath, f.CatalogPath)
	setStr(&c.StaticDir, f.StaticDir)
	setStr(&c.LogLevel, f.LogLevel)
	setStr(&c.LogFormat, f.LogFormat)
	setStr(&c.ResyAPIBase, f.ResyAPIBase)
	setStr(&c.ResyAPIKey, f.ResyAPIKey)
	setStr(&c.OpenTableAPIBase, f.OpenTableAPIBase)
	setStr(&c.OpenTableQuerySHA, f.OpenTableQuerySHA)
	setStr(&c.ScrapeAPIURL, f.ScrapeAPIURL)
	setStr(&c.ScrapeAPIKey, f.ScrapeAPIKey)
	if f.RateLimitRPS > 0 {
		c.RateLimitRPS = f.RateLimitRPS
	}
	if f.RateLimitBurst > 0 {
		c.RateLimitBurst = f.RateLimitBurst
	}
	if f.LimiterWaitSec > 0 {
		c.LimiterWait = time.Duration(f.LimiterWaitSec) * time.Second
	}
	if f.UpstreamTimeout > 0 {
		c.UpstreamTimeout = time.Duration(f.UpstreamTimeout) * time.Second
	}
	if f.RequestTimeout > 0 {
		c.RequestTimeout = time.Duration(f.RequestTimeout) * time.Second
	}
	if f.RefreshIntervalHr > 0 {
		c.RefreshInterval = time.Duration(f.RefreshIntervalHr) * time.Hour
	}

	var derr error
	if f.CookieHashKey != "" {
		if c.CookieHashKey, derr = decodeB64(f.CookieHashKey); derr != nil {
			return fmt.Errorf("cookie_hash_key: %w", derr)
		}
	}
	if f.CookieBlockKey != "" {
		if c.CookieBlockKey, derr = decodeB64(f.CookieBlockKey); derr != nil {
			return fmt.Errorf("cookie_block_key: %w", derr)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setStr(&c.ListenAddr, os.Getenv("LISTEN_ADDR"))
	setStr(&c.DatabaseURL, os.Getenv("DATABASE_URL"))
	setStr(&c.CatalogPath, os.Getenv("CATALOG_PATH"))
	setStr(&c.StaticDir, os.Getenv("STATIC_DIR"))
	setStr(&c.LogLevel, os.Getenv("LOG_LEVEL"))
	setStr(&c.LogFormat, os.Getenv("LOG_FORMAT"))
	setStr(&c.ResyAPIBase, os.Getenv("RESY_API_BASE"))
	setStr(&c.ResyAPIKey, os.Getenv("RESY_API_KEY"))
	setStr(&c.OpenTableAPIBase, os.Getenv("OPENTABLE_API_BASE"))
	setStr(&c.OpenTableQuerySHA, os.Getenv("OPENTABLE_QUERY_SHA"))
	setStr(&c.ScrapeAPIURL, os.Getenv("SCRAPE_API_URL"))
	setStr(&c.ScrapeAPIKey, os.Getenv("SCRAPE_API_KEY"))

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		c.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		c.RateLimitBurst = f
	}
	if err := envSeconds("LIMITER_WAIT_SECONDS", &c.LimiterWait); err != nil {
		return err
	}
	if err := envSeconds("UPSTREAM_TIMEOUT_SECONDS", &c.UpstreamTimeout); err != nil {
		return err
	}
	if err := envSeconds("REQUEST_TIMEOUT_SECONDS", &c.RequestTimeout); err != nil {
		return err
	}
	if v := os.Getenv("REFRESH_INTERVAL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid REFRESH_INTERVAL_HOURS %q", v)
		}
		c.RefreshInterval = time.Duration(n) * time.Hour
	}

	var derr error
	if v := os.Getenv("COOKIE_HASH_KEY"); v != "" {
		if c.CookieHashKey, derr = decodeB64(v); derr != nil {
			return fmt.Errorf("COOKIE_HASH_KEY: %w", derr)
		}
	}
	if v := os.Getenv("COOKIE_BLOCK_KEY"); v != "" {
		if c.CookieBlockKey, derr = decodeB64(v); derr != nil {
			return fmt.Errorf("COOKIE_BLOCK_KEY: %w", derr)
		}
	}
	return nil
}

func envSeconds(key string, d *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid %s %q", key, v)
	}
	*d = time.Duration(n) * time.Second
	return nil
}

func setStr(dst *string, v string) {
	v = strings.TrimSpace(v)
	if v != "" {
		*dst = v
	}
}

func decodeB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
