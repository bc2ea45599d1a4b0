package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"willhaben-monitor/models"
)

// Config holds everything the monitor needs for a run: secrets and paths from
// the environment, search criteria and scraper tuning from the YAML file.
type Config struct {
	TelegramToken  string
	TelegramChatID string
	CursorPath     string
	MetricsPort    string
	Debug          bool

	Search SearchConfig
}

// SearchConfig mirrors the search-criteria YAML file.
type SearchConfig struct {
	Category  string        `yaml:"category"`
	States    []string      `yaml:"states"`
	Rows      int           `yaml:"rows"`
	Filters   FilterBounds  `yaml:"filters"`
	Locations []string      `yaml:"locations"`
	Scraper   ScraperConfig `yaml:"scraper"`
}

// FilterBounds are the configured price and room-count limits. A zero value
// means "no bound".
type FilterBounds struct {
	MinPrice float64 `yaml:"min_price"`
	MaxPrice float64 `yaml:"max_price"`
	MinRooms float64 `yaml:"min_rooms"`
	MaxRooms float64 `yaml:"max_rooms"`
}

// ScraperConfig tunes the poll loop and the fetcher.
type ScraperConfig struct {
	IntervalSec   int    `yaml:"interval_sec"`
	MaxRetries    int    `yaml:"max_retries"`
	RetryDelaySec int    `yaml:"retry_delay_sec"`
	PolitenessSec int    `yaml:"politeness_sec"`
	UserAgent     string `yaml:"user_agent"`
}

func (s ScraperConfig) Interval() time.Duration   { return time.Duration(s.IntervalSec) * time.Second }
func (s ScraperConfig) RetryDelay() time.Duration { return time.Duration(s.RetryDelaySec) * time.Second }
func (s ScraperConfig) Politeness() time.Duration { return time.Duration(s.PolitenessSec) * time.Second }

// Load reads the .env file, the environment, and the search YAML file, and
// returns a populated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		CursorPath:     getEnv("CURSOR_PATH", "data/last_seen_listing.json"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		Debug:          os.Getenv("DEBUG") == "1",
	}

	search, err := LoadSearchConfig(getEnv("SEARCH_CONFIG_PATH", "config/search.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Search = *search
	return cfg, nil
}

// LoadSearchConfig reads the YAML criteria file over the defaults. A missing
// file is not an error: the defaults alone apply.
func LoadSearchConfig(path string) (*SearchConfig, error) {
	cfg := defaultSearchConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[config] No search config at %s, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

func defaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		Category: "mietwohnungen",
		States:   []string{"vienna"},
		Rows:     1000,
		Filters: FilterBounds{
			MinPrice: 500,
			MaxPrice: 1200,
			MinRooms: 2,
			MaxRooms: 5,
		},
		Scraper: ScraperConfig{
			IntervalSec:   180,
			MaxRetries:    3,
			RetryDelaySec: 30,
			PolitenessSec: 12,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
	}
}

// FilterSpec converts the configured bounds into the engine's filter spec.
func (s *SearchConfig) FilterSpec() models.FilterSpec {
	spec := models.FilterSpec{}
	if v := s.Filters.MinPrice; v > 0 {
		spec.MinPrice = &v
	}
	if v := s.Filters.MaxPrice; v > 0 {
		spec.MaxPrice = &v
	}
	if v := s.Filters.MinRooms; v > 0 {
		spec.MinRooms = &v
	}
	if v := s.Filters.MaxRooms; v > 0 {
		spec.MaxRooms = &v
	}
	return spec
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
