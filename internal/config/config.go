// Package config loads the deckforge TOML configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
)

// Config represents the application configuration.
type Config struct {
	Log       LogConfig           `toml:"log"`
	Storage   StorageConfig       `toml:"storage"`
	Server    ServerConfig        `toml:"server"`
	Cache     CacheConfig         `toml:"cache"`
	Prices    PricesConfig        `toml:"prices"`
	Catalog   CatalogConfig       `toml:"catalog"`
	Assembly  deckbuilder.Options `toml:"assembly"`
	Analytics AnalyticsConfig     `toml:"analytics"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// StorageConfig contains database settings.
type StorageConfig struct {
	Path string `toml:"path"` // SQLite database file
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	ReadTimeout    string   `toml:"read_timeout"`
	WriteTimeout   string   `toml:"write_timeout"`
	RequestTimeout string   `toml:"request_timeout"` // per-request engine deadline
	AllowedOrigins []string `toml:"allowed_origins"`
}

// CacheConfig contains price cache settings.
type CacheConfig struct {
	TTL             string `toml:"ttl"`
	UpstreamTimeout string `toml:"upstream_timeout"`
	MaxEntries      int    `toml:"max_entries"`
}

// PricesConfig contains price source and refresh settings.
type PricesConfig struct {
	Source    string `toml:"source"`   // "scryfall" or "store" (offline)
	Currency  string `toml:"currency"` // usd, usd_foil, eur
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
	RateDelay string `toml:"rate_delay"` // minimum delay between upstream requests
	Schedule  string `toml:"schedule"`   // cron expression for the daily refresh
	Workers   int    `toml:"workers"`
}

// CatalogConfig contains card catalog settings.
type CatalogConfig struct {
	BulkPath string `toml:"bulk_path"` // Scryfall bulk data JSON
	Watch    bool   `toml:"watch"`     // reload when the file changes
}

// AnalyticsConfig contains analytics engine settings.
type AnalyticsConfig struct {
	Workers       int     `toml:"workers"`
	MinWindow     int     `toml:"min_window"`
	DefaultWindow int     `toml:"default_window"`
	SpikeMultiple float64 `toml:"spike_multiple"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Path: filepath.Join(defaultDir(), "deckforge.db"),
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			ReadTimeout:    "15s",
			WriteTimeout:   "60s",
			RequestTimeout: "30s",
			AllowedOrigins: []string{"*"},
		},
		Cache: CacheConfig{
			TTL:             "6h",
			UpstreamTimeout: "10s",
			MaxEntries:      50000,
		},
		Prices: PricesConfig{
			Source:    "scryfall",
			Currency:  "usd",
			RateDelay: "100ms",
			Schedule:  "0 6 * * *",
			Workers:   4,
		},
		Catalog: CatalogConfig{
			BulkPath: filepath.Join(defaultDir(), "default-cards.json"),
			Watch:    true,
		},
		Assembly: deckbuilder.DefaultOptions(),
		Analytics: AnalyticsConfig{
			Workers:       8,
			MinWindow:     2,
			DefaultWindow: 30,
			SpikeMultiple: 2,
		},
	}
}

// defaultDir is ~/.deckforge, or the working directory when the home
// directory is unknown.
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deckforge"
	}
	return filepath.Join(home, ".deckforge")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.toml")
}

// Load reads the configuration at path over the defaults. An empty path
// means DefaultPath; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: want text or json", c.Log.Format)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}

	durations := map[string]string{
		"server read timeout":    c.Server.ReadTimeout,
		"server write timeout":   c.Server.WriteTimeout,
		"server request timeout": c.Server.RequestTimeout,
		"cache TTL":              c.Cache.TTL,
		"cache upstream timeout": c.Cache.UpstreamTimeout,
		"prices rate delay":      c.Prices.RateDelay,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max entries cannot be negative: %d", c.Cache.MaxEntries)
	}

	switch c.Prices.Source {
	case "scryfall", "store":
	default:
		return fmt.Errorf("invalid price source %q: want scryfall or store", c.Prices.Source)
	}
	switch c.Prices.Currency {
	case "usd", "usd_foil", "eur":
	default:
		return fmt.Errorf("invalid price currency %q", c.Prices.Currency)
	}
	if _, err := cron.ParseStandard(c.Prices.Schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", c.Prices.Schedule, err)
	}
	if c.Prices.Workers < 1 {
		return fmt.Errorf("price workers must be at least 1: %d", c.Prices.Workers)
	}

	if err := c.Assembly.Validate(); err != nil {
		return fmt.Errorf("invalid assembly options: %w", err)
	}

	if c.Analytics.Workers < 1 {
		return fmt.Errorf("analytics workers must be at least 1: %d", c.Analytics.Workers)
	}
	if c.Analytics.MinWindow < 2 {
		return fmt.Errorf("analytics min window must be at least 2: %d", c.Analytics.MinWindow)
	}
	if c.Analytics.DefaultWindow < c.Analytics.MinWindow {
		return fmt.Errorf("analytics default window %d is below min window %d", c.Analytics.DefaultWindow, c.Analytics.MinWindow)
	}
	if c.Analytics.SpikeMultiple <= 0 {
		return fmt.Errorf("analytics spike multiple must be positive: %v", c.Analytics.SpikeMultiple)
	}

	return nil
}

// Duration parses one of the validated duration strings. It panics on an
// invalid value, so call it only after Validate.
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("config: unvalidated duration %q", value))
	}
	return d
}

// SlogLevel maps the configured level to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
