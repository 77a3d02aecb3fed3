// Package config loads and saves the roundup TOML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// TokenEnv overrides the stored access token when set.
const TokenEnv = "ROUNDUP_ACCESS_TOKEN"

// Config holds all roundup configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Transfer   TransferConfig   `toml:"transfer"`
	Appearance AppearanceConfig `toml:"appearance"`
	Journal    JournalConfig    `toml:"journal"`
	Watch      WatchConfig      `toml:"watch"`
}

// APIConfig holds the banking API connection settings.
type APIConfig struct {
	BaseURL     string `toml:"base_url,omitempty"`
	ClientID    string `toml:"client_id,omitempty"`
	TimeoutSec  int    `toml:"timeout_sec"`
	AccessToken string `toml:"access_token,omitempty"`
}

// TransferConfig holds transfer defaults.
type TransferConfig struct {
	// DefaultCurrency is used when the account reports no currency.
	DefaultCurrency string `toml:"default_currency"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// JournalConfig controls the transfer journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path,omitempty"`
}

// WatchConfig holds settings for the watch service.
type WatchConfig struct {
	IntervalSec int    `toml:"interval_sec"`
	Addr        string `toml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			TimeoutSec: 10,
		},
		Transfer: TransferConfig{
			DefaultCurrency: "GBP",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			IntervalSec: 300,
			Addr:        "127.0.0.1:8787",
		},
	}
}

// Timeout returns the per-call API timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// WatchInterval returns the watch refresh interval.
func (c Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalSec) * time.Second
}

// JournalPath returns the configured journal path, or the default under the
// cache directory.
func (c Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(CacheDir(), "journal.db")
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return fmt.Errorf("api.base_url: unsupported scheme %q", u.Scheme)
		}
	}
	if c.API.TimeoutSec <= 0 {
		return errors.New("api.timeout_sec must be positive")
	}
	if _, ok := LookupCurrency(c.Transfer.DefaultCurrency); !ok {
		return fmt.Errorf("transfer.default_currency: unknown currency %q", c.Transfer.DefaultCurrency)
	}
	if c.Watch.IntervalSec <= 0 {
		return errors.New("watch.interval_sec must be positive")
	}
	return nil
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "roundup")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "roundup")
}

// CacheDir returns the XDG-compliant cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "roundup")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "roundup")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk. The file holds the access token, so it is
// created 0600.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// GetAccessToken returns the access token from env var or config, in that order.
func GetAccessToken(cfg Config) string {
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok
	}
	return cfg.API.AccessToken
}

// MaskToken hides all but the last four characters of tok.
func MaskToken(tok string) string {
	if tok == "" {
		return "(not set)"
	}
	if len(tok) <= 8 {
		return "****"
	}
	return "****" + tok[len(tok)-4:]
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
