package pricewatch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables of the price monitor. Zero values are replaced
// with production defaults by applyDefaults, so a partial YAML file is fine.
type Config struct {
	// IntervalMinutes is the pause between scheduled monitoring cycles.
	IntervalMinutes int `yaml:"interval_minutes"`

	// RequestTimeout bounds a single page download.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxAttempts is the per-product download attempt budget.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelayMin/Max bound the randomized pause before a retry.
	RetryDelayMin time.Duration `yaml:"retry_delay_min"`
	RetryDelayMax time.Duration `yaml:"retry_delay_max"`

	// RequestDelayMin/Max bound the randomized pacing between products
	// within one cycle.
	RequestDelayMin time.Duration `yaml:"request_delay_min"`
	RequestDelayMax time.Duration `yaml:"request_delay_max"`

	// SaveHTML keeps the downloaded markup of successful fetches on disk
	// and in the database for debugging extraction failures.
	SaveHTML bool `yaml:"save_html"`

	// Headless controls the browser used for session warm-up.
	Headless bool `yaml:"headless"`

	// AutoCleanupDays prunes database rows and saved pages older than this
	// many days. 0 disables the cleanup task.
	AutoCleanupDays int `yaml:"auto_cleanup_days"`

	// DataDir is the root for all files the monitor writes.
	DataDir string `yaml:"data_dir"`

	// HistoryFile, ChangesFile and PagesFile are file names inside DataDir.
	HistoryFile string `yaml:"history_file"`
	ChangesFile string `yaml:"changes_file"`
	PagesFile   string `yaml:"pages_file"`

	// Listen is the HTTP API address. Empty disables the API server.
	Listen string `yaml:"listen"`

	DB   DBConfig   `yaml:"db"`
	Site SiteConfig `yaml:"site"`
}

// DBConfig configures the SQLite sink. An empty Path runs the monitor
// file-only.
type DBConfig struct {
	Path string `yaml:"path"`
}

// SiteConfig identifies the monitored site.
type SiteConfig struct {
	HomeURL string `yaml:"home_url"`
}

// LoadConfig reads a YAML config file and fills in defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("pricewatch: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("pricewatch: parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var cfg Config
	cfg.SaveHTML = true
	cfg.Headless = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 30
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelayMin <= 0 {
		c.RetryDelayMin = 3 * time.Second
	}
	if c.RetryDelayMax <= c.RetryDelayMin {
		c.RetryDelayMax = 8 * time.Second
	}
	if c.RequestDelayMin <= 0 {
		c.RequestDelayMin = 2 * time.Second
	}
	if c.RequestDelayMax <= c.RequestDelayMin {
		c.RequestDelayMax = 5 * time.Second
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.HistoryFile == "" {
		c.HistoryFile = "price_history.json"
	}
	if c.ChangesFile == "" {
		c.ChangesFile = "price_changes.csv"
	}
	if c.PagesFile == "" {
		c.PagesFile = "pages.json"
	}
	if c.Site.HomeURL == "" {
		c.Site.HomeURL = "https://www.ozon.ru"
	}
}

// HistoryPath, ChangesPath and PagesPath resolve the data files under DataDir.
func (c *Config) HistoryPath() string { return filepath.Join(c.DataDir, c.HistoryFile) }

func (c *Config) ChangesPath() string { return filepath.Join(c.DataDir, c.ChangesFile) }

func (c *Config) PagesPath() string { return filepath.Join(c.DataDir, c.PagesFile) }

// PagesDir is where saved HTML snapshots live.
func (c *Config) PagesDir() string { return filepath.Join(c.DataDir, "pages") }

// Interval returns the cycle interval as a Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
