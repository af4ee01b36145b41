package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Search   SearchConfig
	Browser  BrowserConfig
	Captcha  CaptchaConfig
	Report   ReportConfig
	Scraper  ScraperConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type SearchConfig struct {
	Query       string
	Sites       []string
	ResultLimit int
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type CaptchaConfig struct {
	MaxAttempts int
	SettleDelay time.Duration
	TessdataDir string
	Languages   []string
	Operator    string
}

type ReportConfig struct {
	Dir          string
	LogPath      string
	HistoryPath  string
	HistoryLimit int
}

type ScraperConfig struct {
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig is optional: solves are persisted only when Host is set.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// RedisConfig is optional: events are published only when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	OperatorConsole = "console"
	OperatorHTTP    = "http"
)

func Load() (*Config, error) {
	reportDir := getEnvOrDefault("REPORT_DIR", "Reports")

	cfg := &Config{
		Search: SearchConfig{
			Query:       getEnvOrDefault("SEARCH_QUERY", "iPhone 16"),
			Sites:       getStringSliceOrDefault("SEARCH_SITES", []string{"amazon", "ebay"}),
			ResultLimit: getIntOrDefault("SEARCH_RESULT_LIMIT", 5),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Captcha: CaptchaConfig{
			MaxAttempts: getIntOrDefault("CAPTCHA_MAX_ATTEMPTS", 3),
			SettleDelay: getDurationOrDefault("CAPTCHA_SETTLE_DELAY", 2*time.Second),
			TessdataDir: getEnvOrDefault("CAPTCHA_TESSDATA_DIR", "/usr/share/tesseract-ocr/5/tessdata"),
			Languages:   getStringSliceOrDefault("CAPTCHA_LANGUAGES", []string{"eng"}),
			Operator:    strings.ToLower(getEnvOrDefault("CAPTCHA_OPERATOR", OperatorConsole)),
		},
		Report: ReportConfig{
			Dir:          reportDir,
			LogPath:      getEnvOrDefault("REPORT_LOG_PATH", filepath.Join(reportDir, "products.log")),
			HistoryPath:  getEnvOrDefault("REPORT_HISTORY_PATH", filepath.Join(reportDir, "runs.json")),
			HistoryLimit: getIntOrDefault("REPORT_HISTORY_LIMIT", 20),
		},
		Scraper: ScraperConfig{
			RateLimitMin: getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax: getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 5*time.Second),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "shop_compare"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Search.Query) == "" {
		return fmt.Errorf("SEARCH_QUERY is required")
	}

	if len(c.Search.Sites) == 0 {
		return fmt.Errorf("SEARCH_SITES must name at least one site")
	}

	if c.Search.ResultLimit < 1 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be at least 1")
	}

	if c.Captcha.MaxAttempts < 1 {
		return fmt.Errorf("CAPTCHA_MAX_ATTEMPTS must be at least 1")
	}

	if c.Captcha.SettleDelay < 0 {
		return fmt.Errorf("CAPTCHA_SETTLE_DELAY cannot be negative")
	}

	if c.Captcha.Operator != OperatorConsole && c.Captcha.Operator != OperatorHTTP {
		return fmt.Errorf("CAPTCHA_OPERATOR must be %q or %q", OperatorConsole, OperatorHTTP)
	}

	if c.Report.LogPath == "" {
		return fmt.Errorf("REPORT_LOG_PATH is required")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
