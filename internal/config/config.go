package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen      = "127.0.0.1:8080"
	DefaultSchedule    = "/etc/timegate/schedule.json"
	DefaultEvaluate    = "@every 1m"
	DefaultRefreshCron = "*/15 * * * *"
	DefaultHorizonDays = 30
	DefaultCacheDir    = "/var/lib/timegate/ics-cache"

	// RefreshDisabled as the refresh spec turns periodic reloading off.
	RefreshDisabled = "-"
)

// ICSConfig describes a calendar whose events are merged into the schedule
// as one-off windows.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging and window listings.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API in serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for "now" and for schedule timestamps
	// that carry no offset. Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Schedule is the path of the schedule definition (.json, .yaml or .yml).
	Schedule string `yaml:"schedule" json:"schedule"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Evaluate is the cron spec on which the watcher re-checks the gate and
	// reports open/close transitions.
	Evaluate string `yaml:"evaluate" json:"evaluate"`

	// RefreshCron is the cron spec on which the schedule file is reloaded and
	// calendars are re-fetched. "-" disables periodic reloading.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds how far ahead calendar recurrences are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// CacheDir holds the HTTP cache for calendar sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of calendar sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		Schedule:    DefaultSchedule,
		LogLevel:    "info",
		Evaluate:    DefaultEvaluate,
		RefreshCron: DefaultRefreshCron,
		HorizonDays: DefaultHorizonDays,
		CacheDir:    DefaultCacheDir,
		ICS:         []ICSConfig{},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Evaluate == "" {
		c.Evaluate = DefaultEvaluate
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate checks values that Normalize cannot repair: the timezone and the
// two cron specs.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Evaluate); err != nil {
		return fmt.Errorf("invalid evaluate spec %q: %w", c.Evaluate, err)
	}
	if c.RefreshCron != RefreshDisabled {
		if _, err := parser.Parse(c.RefreshCron); err != nil {
			return fmt.Errorf("invalid refresh spec %q: %w", c.RefreshCron, err)
		}
	}
	for i, src := range c.ICS {
		if src.URL == "" {
			return fmt.Errorf("ics[%d]: url is empty", i)
		}
	}
	return nil
}

// Location resolves Timezone. The zone is read once at startup and passed
// explicitly to everything that needs "now".
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and defaults are filled in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory with 0700 if needed.
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

	tmp, err := os.CreateTemp(dir, ".timegate-config-*.tmp")
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
