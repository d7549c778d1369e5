package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Africa/Nairobi"
	defaultRefresh      = "*/30 * * * *"
	defaultHorizonDays  = 90
	defaultCalendarName = "Nyumbanii Calendar"
	defaultExportPath   = "./var/nyumbanii-calendar.ics"
	defaultPreviewPath  = "./var/preview.png"
	defaultFeedCacheDir = "./var/feed-cache"
	defaultLogLevel     = "info"
	defaultDBDriver     = "sqlite"
	defaultDBDSN        = "./var/nyumbacal.db"
	defaultRedisTTL     = 10 * time.Minute
)

// FeedConfig is an external booking feed whose events become viewings.
type FeedConfig struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
	// Landlord owns the imported viewings.
	Landlord string `yaml:"landlord" json:"landlord"`
	// Property is used for occurrences without a LOCATION.
	Property string `yaml:"property,omitempty" json:"property,omitempty"`
}

// DatabaseConfig selects the GORM dialect.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// RedisConfig enables the onboarding status cache when URL is set.
type RedisConfig struct {
	URL string        `yaml:"url" json:"url"`
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials. PasswordHash is an
// Argon2id hash produced by the hash-password subcommand.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone wall-clock times are derived and shown in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron schedules feed refresh and export regeneration.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds how far ahead feed occurrences are imported.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// ExportPath is where the full calendar file is written; empty disables it.
	ExportPath string `yaml:"export_path" json:"export_path"`

	// PreviewPath is the month grid PNG served at /preview.png.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	// CaptureOnRefresh re-renders PreviewPath after every scheduled run.
	// Requires a Chromium binary on the host.
	CaptureOnRefresh bool `yaml:"capture_on_refresh" json:"capture_on_refresh"`

	FeedCacheDir string `yaml:"feed_cache_dir" json:"feed_cache_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, guards every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    "monday",
		RefreshCron:  defaultRefresh,
		HorizonDays:  defaultHorizonDays,
		CalendarName: defaultCalendarName,
		ExportPath:   defaultExportPath,
		PreviewPath:  defaultPreviewPath,
		FeedCacheDir: defaultFeedCacheDir,
		LogLevel:     defaultLogLevel,
		Database:     DatabaseConfig{Driver: defaultDBDriver, DSN: defaultDBDSN},
		Redis:        RedisConfig{TTL: defaultRedisTTL},
		Feeds:        []FeedConfig{},
	}
}

// Normalize fills in missing values so partially-filled files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "sunday":
		c.WeekStart = "sunday"
	default:
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.CalendarName == "" {
		c.CalendarName = defaultCalendarName
	}
	if c.FeedCacheDir == "" {
		c.FeedCacheDir = defaultFeedCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDBDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == defaultDBDriver {
		c.Database.DSN = defaultDBDSN
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = defaultRedisTTL
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is empty"))
	}
	seen := map[string]bool{}
	for i, f := range c.Feeds {
		if f.ID == "" || f.URL == "" {
			errs = append(errs, fmt.Errorf("feeds[%d]: id and url are required", i))
			continue
		}
		if seen[f.ID] {
			errs = append(errs, fmt.Errorf("feeds[%d]: duplicate id %q", i, f.ID))
		}
		seen[f.ID] = true
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FirstWeekday maps WeekStart onto time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Horizon is HorizonDays as a duration.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// Load reads the YAML config at path. A missing file is created with
// defaults (0600). Environment overrides are applied after reading and are
// never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		cfg.ApplyEnv()
		return cfg, nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()
	return &cfg, nil
}

// ApplyEnv overrides fields from NYUMBA_* environment variables.
func (c *Config) ApplyEnv() {
	c.Listen = getEnv("NYUMBA_LISTEN", c.Listen)
	c.Database.Driver = getEnv("NYUMBA_DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("NYUMBA_DATABASE_DSN", c.Database.DSN)
	c.Redis.URL = getEnv("NYUMBA_REDIS_URL", c.Redis.URL)
	c.LogLevel = getEnv("NYUMBA_LOG_LEVEL", c.LogLevel)
	c.Timezone = getEnv("NYUMBA_TIMEZONE", c.Timezone)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".nyumbacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
