package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultListingURL = "https://guide.michelin.com/th/en/selection/thailand/restaurants"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds all application configuration loaded from environment variables.
// Components receive the values they need at construction time.
type Config struct {
	ListingURL string
	Headless   bool
	ChromeBin  string
	UserAgent  string

	MaxPages       int
	StartIndex     int
	MaxRestaurants int

	RequestTimeout time.Duration
	SettleDelay    time.Duration
	RateLimitMs    int
	MaxRetries     int

	ListingOutput  string
	DetailOutput   string
	CheckpointPath string
	Resume         bool
	SelectorsPath  string

	LogLevel string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		ListingURL: getEnv("LISTING_URL", DefaultListingURL),
		Headless:   getEnvBool("HEADLESS", true),
		ChromeBin:  getEnv("CHROME_BIN", ""),
		UserAgent:  getEnv("USER_AGENT", DefaultUserAgent),

		MaxPages:       getEnvInt("MAX_PAGES", 20),
		StartIndex:     getEnvInt("START_INDEX", 0),
		MaxRestaurants: getEnvInt("MAX_RESTAURANTS", 0),

		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 15)) * time.Second,
		SettleDelay:    time.Duration(getEnvInt("SETTLE_DELAY_MS", 2000)) * time.Millisecond,
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 1),

		ListingOutput:  getEnv("LISTING_OUTPUT", "./output/michelin_thailand"),
		DetailOutput:   getEnv("DETAIL_OUTPUT", "./output/michelin_thailand_details"),
		CheckpointPath: getEnv("CHECKPOINT_PATH", "./output/checkpoint.json"),
		Resume:         getEnvBool("RESUME", false),
		SelectorsPath:  getEnv("SELECTORS_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "michelin"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// Validate rejects values no run could work with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ListingURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("LISTING_URL %q is not an absolute URL", c.ListingURL))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be >= 1, got %d", c.MaxPages))
	}
	if c.StartIndex < 0 {
		errs = append(errs, fmt.Errorf("START_INDEX must be >= 0, got %d", c.StartIndex))
	}
	if c.MaxRestaurants < 0 {
		errs = append(errs, fmt.Errorf("MAX_RESTAURANTS must be >= 0, got %d", c.MaxRestaurants))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT_SEC must be positive"))
	}
	if c.RateLimitMs < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MS must be >= 0, got %d", c.RateLimitMs))
	}
	if strings.TrimSpace(c.ListingOutput) == "" || strings.TrimSpace(c.DetailOutput) == "" {
		errs = append(errs, errors.New("LISTING_OUTPUT and DETAIL_OUTPUT must be set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
