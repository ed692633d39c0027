// Package config loads runtime settings for the echofeed CLI.
package config

import "time"

// Config holds runtime settings for the echofeed CLI.
//
// Fields:
//   - APIBaseURL: base URL of the feed API, without a trailing slash.
//   - RequestTimeout: per-request HTTP timeout.
//   - LocalStoreDSN: sqlite DSN of the local durable store.
//   - PageSize: number of posts requested per feed page.
type Config struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	LocalStoreDSN  string
	PageSize       int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "https://api.echofeed.example"
	c.RequestTimeout = 10 * time.Second
	c.LocalStoreDSN = "echofeed.db"
	c.PageSize = 20
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
